package bus

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "busrelay/internal/bus"

type instruments struct {
	tracer    trace.Tracer
	received  metric.Int64Counter
	acked     metric.Int64Counter
	abandoned metric.Int64Counter
	errors    metric.Int64Counter
	published metric.Int64Counter
}

// newInstruments binds to the global providers, which are no-ops until
// telemetry.Setup installs real ones.
func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName)
	return &instruments{
		tracer:    otel.Tracer(instrumentationName),
		received:  counter(meter, "bus.messages.received", "Messages taken off a subscription."),
		acked:     counter(meter, "bus.messages.acked", "Messages acknowledged after the handler returned."),
		abandoned: counter(meter, "bus.messages.abandoned", "Messages left for redelivery after a handler error."),
		errors:    counter(meter, "bus.errors", "Errors routed to subscription error handlers."),
		published: counter(meter, "bus.messages.published", "Envelopes handed to a broker."),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
