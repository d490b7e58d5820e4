package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// wireEnvelope pins the JSON field names shared with other producers.
type wireEnvelope struct {
	Sender        string   `json:"Sender"`
	Recipient     string   `json:"Recipient"`
	PayloadType   string   `json:"PayloadType"`
	Payload       *string  `json:"_Payload"`
	CorrelationID string   `json:"CorrelationId"`
	TimeSent      wireTime `json:"TimeSent"`
}

// Producers that serialize local time often omit the offset; those values
// are read in the local zone.
var offsetlessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

type wireTime time.Time

func (t wireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = wireTime(parsed)
		return nil
	}
	for _, layout := range offsetlessLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		Sender:        e.sender,
		Recipient:     e.recipient,
		PayloadType:   e.payloadType,
		CorrelationID: e.correlationID.String(),
		TimeSent:      wireTime(e.timeSent),
	}
	if e.hasPayload {
		encoded := base64.StdEncoding.EncodeToString(e.payload)
		w.Payload = &encoded
	}
	return json.Marshal(w)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := uuid.Parse(w.CorrelationID)
	if err != nil {
		return fmt.Errorf("CorrelationId: %w", err)
	}

	out := Envelope{
		sender:        w.Sender,
		recipient:     w.Recipient,
		payloadType:   w.PayloadType,
		correlationID: id,
		timeSent:      time.Time(w.TimeSent),
	}
	if w.Payload != nil {
		raw, err := base64.StdEncoding.DecodeString(*w.Payload)
		if err != nil {
			return fmt.Errorf("_Payload: %w", err)
		}
		out.payload = raw
		out.hasPayload = true
	}

	*e = out
	return nil
}

// Encode renders e in the wire format.
func Encode(e Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, &SerializationError{Op: "encode", Type: e.payloadType, Err: err}
	}
	return b, nil
}

// Decode parses the wire format. Unknown fields are ignored.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		var se *SerializationError
		if errors.As(err, &se) {
			return Envelope{}, err
		}
		return Envelope{}, &SerializationError{Op: "decode", Type: "envelope", Err: err}
	}
	return e, nil
}
