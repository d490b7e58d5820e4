package envelope

import (
	"encoding/json"
)

// Content is the decoded payload. It is one of Text, Binary or Object.
type Content interface {
	Kind() string
	content()
}

type Text string

type Binary []byte

// Object is a JSON document tagged with its type name. It is the fallback
// for payload kinds the receiver does not know at compile time.
type Object struct {
	Type string
	Data json.RawMessage
}

func (Text) Kind() string     { return TypeText }
func (Binary) Kind() string   { return TypeBinary }
func (o Object) Kind() string { return o.Type }

func (Text) content()   {}
func (Binary) content() {}
func (Object) content() {}

// Decode unmarshals the document into v.
func (o Object) Decode(v any) error {
	if err := json.Unmarshal(o.Data, v); err != nil {
		return &SerializationError{Op: "decode", Type: o.Type, Err: err}
	}
	return nil
}

// Content returns the payload as its tagged variant.
func (e Envelope) Content() (Content, error) {
	raw, ok := e.Payload()
	if !ok {
		return nil, ErrNoPayload
	}
	switch e.payloadType {
	case TypeText:
		return Text(raw), nil
	case TypeBinary:
		return Binary(raw), nil
	default:
		return Object{Type: e.payloadType, Data: raw}, nil
	}
}

// PayloadAs decodes the payload into T. Unlike a zero-value fallback it
// tells "absent" (ErrNoPayload) apart from "malformed" (*SerializationError).
// Text and binary payloads are assigned directly to string and []byte
// targets; everything else goes through JSON.
func PayloadAs[T any](e Envelope) (T, error) {
	var out T
	raw, ok := e.Payload()
	if !ok {
		return out, ErrNoPayload
	}

	if e.payloadType == TypeText || e.payloadType == TypeBinary {
		switch p := any(&out).(type) {
		case *string:
			*p = string(raw)
			return out, nil
		case *[]byte:
			*p = raw
			return out, nil
		}
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, &SerializationError{Op: "decode", Type: e.payloadType, Err: err}
	}
	return out, nil
}
