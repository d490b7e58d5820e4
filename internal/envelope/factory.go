package envelope

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Typed lets a payload choose its own type tag instead of its Go type name.
type Typed interface {
	PayloadType() string
}

// Publisher is the part of a bus the factory needs.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Factory builds envelopes. The zero value uses the wall clock and random
// v4 ids.
type Factory struct {
	Now   func() time.Time
	NewID func() uuid.UUID
}

var defaultFactory Factory

func (f Factory) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f Factory) newID() uuid.UUID {
	if f.NewID != nil {
		return f.NewID()
	}
	return uuid.New()
}

func (f Factory) New(payload []byte, payloadType, sender, recipient string) Envelope {
	return Envelope{
		sender:        sender,
		recipient:     recipient,
		payloadType:   payloadType,
		payload:       bytes.Clone(payload),
		hasPayload:    true,
		correlationID: f.newID(),
		timeSent:      f.now(),
	}
}

// CreateMessage serializes payload and wraps it in a fresh envelope.
// Strings become text, byte slices become binary, Content values keep their
// kind and anything else is encoded as JSON. A nil payload produces an
// envelope without payload.
func (f Factory) CreateMessage(payload any, sender, recipient string) (Envelope, error) {
	raw, payloadType, ok, err := encodePayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	env := f.New(raw, payloadType, sender, recipient)
	env.hasPayload = ok
	return env, nil
}

// CreateResponse builds the reply to original with a serialized payload.
func (f Factory) CreateResponse(original Envelope, payload any) (Envelope, error) {
	raw, payloadType, ok, err := encodePayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return f.respond(original, raw, payloadType, ok), nil
}

func (f Factory) respond(original Envelope, raw []byte, payloadType string, hasPayload bool) Envelope {
	return Envelope{
		sender:        original.recipient,
		recipient:     original.sender,
		payloadType:   payloadType,
		payload:       bytes.Clone(raw),
		hasPayload:    hasPayload,
		correlationID: original.correlationID,
		timeSent:      f.now(),
	}
}

// Publish builds an envelope from payload and hands it to p. Errors from p
// are returned unchanged.
func (f Factory) Publish(ctx context.Context, payload any, p Publisher, sender, recipient string) error {
	env, err := f.CreateMessage(payload, sender, recipient)
	if err != nil {
		return err
	}
	return p.Publish(ctx, env)
}

func CreateMessage(payload any, sender, recipient string) (Envelope, error) {
	return defaultFactory.CreateMessage(payload, sender, recipient)
}

func Publish(ctx context.Context, payload any, p Publisher, sender, recipient string) error {
	return defaultFactory.Publish(ctx, payload, p, sender, recipient)
}

func encodePayload(payload any) ([]byte, string, bool, error) {
	switch v := payload.(type) {
	case nil:
		return nil, "", false, nil
	case string:
		return []byte(v), TypeText, true, nil
	case []byte:
		return v, TypeBinary, true, nil
	case Text:
		return []byte(v), TypeText, true, nil
	case Binary:
		return v, TypeBinary, true, nil
	case Object:
		return v.Data, v.Type, true, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", false, &SerializationError{Op: "encode", Type: TypeName(payload), Err: err}
	}
	return raw, TypeName(payload), true, nil
}

// TypeName is the tag CreateMessage uses for a JSON payload: the value's own
// PayloadType when it is Typed, otherwise its package-qualified Go type
// name with pointers stripped.
func TypeName(v any) string {
	if t, ok := v.(Typed); ok {
		return t.PayloadType()
	}
	rt := reflect.TypeOf(v)
	if rt == nil {
		return ""
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt.String()
}
