package relay

import (
	"encoding/base64"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"busrelay/internal/envelope"
)

// Payload encodings accepted and produced by the relay.
const (
	EncodingText   = "text"
	EncodingBase64 = "base64"
)

type SendInput struct {
	// Sender defaults to the relay's own name.
	Sender    string
	Recipient string
	// PayloadType defaults to text or binary depending on Encoding.
	PayloadType string
	Payload     string
	Encoding    string
}

type SendResult struct {
	CorrelationID uuid.UUID
	TimeSent      time.Time
}

// ReplyDto is a received envelope in a form fit for JSON clients. Binary
// or non UTF-8 payloads are base64 encoded, everything else is passed as is.
type ReplyDto struct {
	CorrelationID string    `json:"correlationId"`
	Sender        string    `json:"sender"`
	Recipient     string    `json:"recipient"`
	PayloadType   string    `json:"payloadType,omitempty"`
	Payload       *string   `json:"payload"`
	Encoding      string    `json:"encoding,omitempty"`
	TimeSent      time.Time `json:"timeSent"`
}

func toReplyDto(env envelope.Envelope) *ReplyDto {
	dto := &ReplyDto{
		CorrelationID: env.CorrelationID().String(),
		Sender:        env.Sender(),
		Recipient:     env.Recipient(),
		PayloadType:   env.PayloadType(),
		TimeSent:      env.TimeSent(),
	}

	raw, ok := env.Payload()
	if !ok {
		return dto
	}
	var s string
	if env.PayloadType() != envelope.TypeBinary && utf8.Valid(raw) {
		s = string(raw)
		dto.Encoding = EncodingText
	} else {
		s = base64.StdEncoding.EncodeToString(raw)
		dto.Encoding = EncodingBase64
	}
	dto.Payload = &s
	return dto
}
