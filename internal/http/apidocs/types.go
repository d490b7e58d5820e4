// Package apidocs holds the response shapes referenced by swagger annotations.
package apidocs

import "time"

// HealthResponse is the shape of /health.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Redis  string `json:"redis" example:"ok"`
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	Sender      string `json:"sender,omitempty" example:"ops-console"`
	Recipient   string `json:"recipient" example:"billing"`
	PayloadType string `json:"payloadType,omitempty" example:"InvoiceRequested"`
	Payload     string `json:"payload" example:"{\"invoiceId\":42}"`
	Encoding    string `json:"encoding,omitempty" example:"text" enums:"text,base64"`
}

// SendMessageResponse is returned once the envelope is published.
type SendMessageResponse struct {
	CorrelationID string    `json:"correlationId" example:"6f1c1c7e-2d4b-4c35-9d7e-3f9b6a0c2a11"`
	TimeSent      time.Time `json:"timeSent"`
}

// ReplyResponse is a received envelope.
type ReplyResponse struct {
	CorrelationID string    `json:"correlationId" example:"6f1c1c7e-2d4b-4c35-9d7e-3f9b6a0c2a11"`
	Sender        string    `json:"sender" example:"billing"`
	Recipient     string    `json:"recipient" example:"relay"`
	PayloadType   string    `json:"payloadType,omitempty" example:"InvoiceCreated"`
	Payload       *string   `json:"payload"`
	Encoding      string    `json:"encoding,omitempty" example:"text" enums:"text,base64"`
	TimeSent      time.Time `json:"timeSent"`
}

// ErrorResponse matches responses.WriteError.
type ErrorResponse struct {
	Error string `json:"error" example:"reply not found"`
}
