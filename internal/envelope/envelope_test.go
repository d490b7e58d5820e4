package envelope

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	ID    int    `json:"id"`
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type invoice struct {
	Number string `json:"number"`
}

func (invoice) PayloadType() string { return "billing.invoice.v1" }

func fixedFactory(t *testing.T) (Factory, *time.Time) {
	t.Helper()
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	return Factory{Now: func() time.Time { return now }}, &now
}

func TestRoundTripPayloads(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cases := [][]byte{
		{},
		[]byte("ping"),
		[]byte(`{"nested":"json","quote":"\""}`),
		{0x00, 0xff, 0x10, 0x80},
		[]byte("héllo wörld ✓"),
	}
	for i := 0; i < 50; i++ {
		b := make([]byte, rng.Intn(512))
		rng.Read(b)
		cases = append(cases, b)
	}

	for i, payload := range cases {
		tag := []string{TypeText, TypeBinary, "custom.Type"}[i%3]
		env := New(payload, tag, "a", "b")

		wire, err := Encode(env)
		require.NoError(t, err)
		got, err := Decode(wire)
		require.NoError(t, err)

		raw, ok := got.Payload()
		require.True(t, ok)
		assert.Equal(t, payload, raw, "case %d", i)
		assert.Equal(t, tag, got.PayloadType())
		assert.Equal(t, env.CorrelationID(), got.CorrelationID())
		assert.Equal(t, "a", got.Sender())
		assert.Equal(t, "b", got.Recipient())
		assert.True(t, env.TimeSent().Equal(got.TimeSent()))
	}
}

func TestWireFieldNames(t *testing.T) {
	env := NewText("ping", "A", "B")

	wire, err := Encode(env)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"Sender": "A",
		"Recipient": "B",
		"PayloadType": "text",
		"_Payload": "cGluZw==",
		"CorrelationId": "`+env.CorrelationID().String()+`",
		"TimeSent": "`+env.TimeSent().Format(time.RFC3339Nano)+`"
	}`, string(wire))
}

func TestDecodeIgnoresUnknownFieldsAndOffsetlessTime(t *testing.T) {
	wire := `{
		"Sender": "A",
		"Recipient": "B",
		"PayloadType": "System.String",
		"_Payload": "InBpbmci",
		"CorrelationId": "6f1c8a4e-3d0b-4a57-9a5e-2a8f1b0c9d11",
		"TimeSent": "2020-03-01T10:15:30.1234567",
		"Priority": 3
	}`

	env, err := Decode([]byte(wire))
	require.NoError(t, err)

	assert.Equal(t, "6f1c8a4e-3d0b-4a57-9a5e-2a8f1b0c9d11", env.CorrelationID().String())
	assert.Equal(t, 2020, env.TimeSent().Year())
	assert.Equal(t, time.Local, env.TimeSent().Location())

	s, err := PayloadAs[string](env)
	require.NoError(t, err)
	assert.Equal(t, "ping", s)
}

func TestDecodeMissingPayload(t *testing.T) {
	wire := `{"Sender":"A","Recipient":"B","PayloadType":"","_Payload":null,
		"CorrelationId":"6f1c8a4e-3d0b-4a57-9a5e-2a8f1b0c9d11","TimeSent":"2020-03-01T10:15:30Z"}`

	env, err := Decode([]byte(wire))
	require.NoError(t, err)

	_, ok := env.Payload()
	assert.False(t, ok)
	_, err = PayloadAs[order](env)
	assert.ErrorIs(t, err, ErrNoPayload)
	_, err = env.Content()
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"not json":    `{"Sender":`,
		"bad base64":  `{"_Payload":"%%%","CorrelationId":"6f1c8a4e-3d0b-4a57-9a5e-2a8f1b0c9d11","TimeSent":"2020-03-01T10:15:30Z"}`,
		"bad uuid":    `{"_Payload":"","CorrelationId":"nope","TimeSent":"2020-03-01T10:15:30Z"}`,
		"bad time":    `{"_Payload":"","CorrelationId":"6f1c8a4e-3d0b-4a57-9a5e-2a8f1b0c9d11","TimeSent":"yesterday"}`,
		"missing ids": `{}`,
	}
	for name, wire := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(wire))
			require.Error(t, err)
			assert.True(t, IsSerialization(err))
		})
	}
}

func TestCreateMessageKinds(t *testing.T) {
	f, now := fixedFactory(t)

	text, err := f.CreateMessage("ping", "A", "B")
	require.NoError(t, err)
	assert.Equal(t, TypeText, text.PayloadType())
	assert.Equal(t, *now, text.TimeSent())

	bin, err := f.CreateMessage([]byte{1, 2, 3}, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, TypeBinary, bin.PayloadType())

	obj, err := f.CreateMessage(&order{ID: 7, Item: "widget", Count: 2}, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "envelope.order", obj.PayloadType())
	got, err := PayloadAs[order](obj)
	require.NoError(t, err)
	assert.Equal(t, order{ID: 7, Item: "widget", Count: 2}, got)

	typed, err := f.CreateMessage(invoice{Number: "INV-1"}, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "billing.invoice.v1", typed.PayloadType())

	empty, err := f.CreateMessage(nil, "A", "B")
	require.NoError(t, err)
	assert.False(t, empty.HasPayload())

	assert.NotEqual(t, text.CorrelationID(), bin.CorrelationID())
}

func TestCreateMessageSerializationError(t *testing.T) {
	_, err := CreateMessage(map[string]any{"ch": make(chan int)}, "A", "B")
	require.Error(t, err)
	assert.True(t, IsSerialization(err))
}

func TestCreateResponse(t *testing.T) {
	f, now := fixedFactory(t)
	req, err := f.CreateMessage("ping", "A", "B")
	require.NoError(t, err)

	*now = now.Add(time.Second)
	resp, err := f.CreateResponse(req, "pong")
	require.NoError(t, err)

	assert.Equal(t, "B", resp.Sender())
	assert.Equal(t, "A", resp.Recipient())
	assert.Equal(t, req.CorrelationID(), resp.CorrelationID())
	assert.True(t, resp.TimeSent().After(req.TimeSent()))
	text, ok := resp.Text()
	require.True(t, ok)
	assert.Equal(t, "pong", text)
}

func TestCorrelationSurvivesResponseChain(t *testing.T) {
	env := NewText("0", "A", "B")
	id := env.CorrelationID()

	for i := 0; i < 10; i++ {
		next, err := env.CreateResponse(i)
		require.NoError(t, err)
		assert.Equal(t, id, next.CorrelationID())
		assert.Equal(t, env.Recipient(), next.Sender())
		assert.Equal(t, env.Sender(), next.Recipient())
		env = next
	}

	bin := env.CreateResponseBytes([]byte{9}, "blob")
	assert.Equal(t, id, bin.CorrelationID())
	assert.Equal(t, "blob", bin.PayloadType())
}

func TestPayloadIsCopied(t *testing.T) {
	src := []byte("abc")
	env := New(src, TypeBinary, "A", "B")
	src[0] = 'x'

	raw, _ := env.Payload()
	assert.Equal(t, []byte("abc"), raw)

	raw[1] = 'y'
	again, _ := env.Payload()
	assert.Equal(t, []byte("abc"), again)
}

func TestPayloadAsMalformed(t *testing.T) {
	env := New([]byte("{not json"), "envelope.order", "A", "B")

	got, err := PayloadAs[order](env)
	require.Error(t, err)
	assert.True(t, IsSerialization(err))
	assert.Equal(t, order{}, got)
}

func TestContentVariants(t *testing.T) {
	cases := []struct {
		env  Envelope
		want Content
	}{
		{NewText("hi", "A", "B"), Text("hi")},
		{New([]byte{1}, TypeBinary, "A", "B"), Binary{1}},
		{New([]byte(`{"number":"9"}`), "billing.invoice.v1", "A", "B"), Object{Type: "billing.invoice.v1", Data: []byte(`{"number":"9"}`)}},
	}
	for _, tc := range cases {
		got, err := tc.env.Content()
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.env.PayloadType(), got.Kind())
	}

	obj, err := cases[2].env.Content()
	require.NoError(t, err)
	var inv invoice
	require.NoError(t, obj.(Object).Decode(&inv))
	assert.Equal(t, "9", inv.Number)

	// Content values round-trip through CreateMessage with their kind intact.
	again, err := CreateMessage(obj, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "billing.invoice.v1", again.PayloadType())
}

type recordingPublisher struct {
	got []Envelope
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, env Envelope) error {
	p.got = append(p.got, env)
	return p.err
}

func TestPublish(t *testing.T) {
	p := &recordingPublisher{}
	require.NoError(t, Publish(context.Background(), order{ID: 1}, p, "A", "B"))
	require.Len(t, p.got, 1)
	assert.Equal(t, "B", p.got[0].Recipient())

	boom := errors.New("broker down")
	p.err = boom
	err := Publish(context.Background(), "x", p, "A", "B")
	assert.Same(t, boom, err)
}

func TestFactoryIDSource(t *testing.T) {
	id := uuid.MustParse("00000000-0000-4000-8000-000000000001")
	f := Factory{NewID: func() uuid.UUID { return id }}

	env := f.New(nil, TypeBinary, "A", "B")
	assert.Equal(t, id, env.CorrelationID())
	assert.True(t, env.HasPayload())
}
