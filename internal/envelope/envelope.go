// Package envelope defines the routable message exchanged over the bus.
//
// An Envelope names its sender and recipient, carries an opaque payload with
// a type tag, and a correlation id shared by a request and all of its
// responses. Envelopes are immutable values: every accessor returns a copy
// and responses are new envelopes.
//
// On the wire an Envelope is a JSON object with fixed field names:
//
//	{
//	  "Sender": "billing",
//	  "Recipient": "shipping",
//	  "PayloadType": "text",
//	  "_Payload": "cGluZw==",
//	  "CorrelationId": "6f1c8a4e-3d0b-4a57-9a5e-2a8f1b0c9d11",
//	  "TimeSent": "2026-10-19T10:15:00.123456789+02:00"
//	}
//
// _Payload is always base64 so binary content and nested JSON travel without
// double encoding.
package envelope

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Payload type tags for the built-in content kinds. Any other tag names a
// JSON document, usually the Go type name of the value that produced it.
const (
	TypeText   = "text"
	TypeBinary = "binary"
)

type Envelope struct {
	sender        string
	recipient     string
	payloadType   string
	payload       []byte
	hasPayload    bool
	correlationID uuid.UUID
	timeSent      time.Time
}

// New builds a fresh envelope around raw bytes with a new correlation id.
func New(payload []byte, payloadType, sender, recipient string) Envelope {
	return defaultFactory.New(payload, payloadType, sender, recipient)
}

// NewText builds a fresh envelope around UTF-8 text.
func NewText(text, sender, recipient string) Envelope {
	return defaultFactory.New([]byte(text), TypeText, sender, recipient)
}

func (e Envelope) Sender() string           { return e.sender }
func (e Envelope) Recipient() string        { return e.recipient }
func (e Envelope) PayloadType() string      { return e.payloadType }
func (e Envelope) CorrelationID() uuid.UUID { return e.correlationID }
func (e Envelope) TimeSent() time.Time      { return e.timeSent }

// HasPayload reports whether a payload was ever set. An empty payload is
// still a payload.
func (e Envelope) HasPayload() bool { return e.hasPayload }

// Payload returns a copy of the raw payload bytes, and false when no payload
// was set.
func (e Envelope) Payload() ([]byte, bool) {
	if !e.hasPayload {
		return nil, false
	}
	return bytes.Clone(e.payload), true
}

// Text returns the payload interpreted as UTF-8 text.
func (e Envelope) Text() (string, bool) {
	if !e.hasPayload {
		return "", false
	}
	return string(e.payload), true
}

// CreateResponse builds the reply to e: sender and recipient are swapped,
// the correlation id is carried over and the timestamp is fresh.
func (e Envelope) CreateResponse(payload any) (Envelope, error) {
	return defaultFactory.CreateResponse(e, payload)
}

// CreateResponseBytes is CreateResponse for raw bytes with an explicit tag.
func (e Envelope) CreateResponseBytes(payload []byte, payloadType string) Envelope {
	return defaultFactory.respond(e, payload, payloadType, true)
}

// String renders the wire form, for logs.
func (e Envelope) String() string {
	b, err := Encode(e)
	if err != nil {
		return "<invalid envelope: " + err.Error() + ">"
	}
	return string(b)
}
