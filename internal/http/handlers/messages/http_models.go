package messages

import "time"

type SendRequest struct {
	Sender      string `json:"sender" validate:"omitempty,max=256"`
	Recipient   string `json:"recipient" validate:"required,max=256"`
	PayloadType string `json:"payloadType" validate:"omitempty,max=256"`
	Payload     string `json:"payload"`
	Encoding    string `json:"encoding" validate:"omitempty,oneof=text base64"`
}

type SendResponse struct {
	CorrelationID string    `json:"correlationId"`
	TimeSent      time.Time `json:"timeSent"`
}
