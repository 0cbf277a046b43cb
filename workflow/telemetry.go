package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/teranos/hireflow/workflow"

// instruments holds the engine's tracer and counters. Providers default to the
// otel globals, which are no-ops until the binary installs an SDK.
type instruments struct {
	tracer      trace.Tracer
	transitions metric.Int64Counter
	denials     metric.Int64Counter
	conflicts   metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) instruments {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	in := instruments{tracer: tp.Tracer(instrumentationName)}
	// Instrument creation only fails on invalid names; fall back to no-op counters
	var err error
	if in.transitions, err = meter.Int64Counter("workflow.transitions",
		metric.WithDescription("Applied workflow transitions")); err != nil {
		otel.Handle(err)
	}
	if in.denials, err = meter.Int64Counter("workflow.denials",
		metric.WithDescription("Workflow requests denied by the permission gate")); err != nil {
		otel.Handle(err)
	}
	if in.conflicts, err = meter.Int64Counter("workflow.conflicts",
		metric.WithDescription("Workflow requests that lost a compare-and-swap race")); err != nil {
		otel.Handle(err)
	}
	return in
}

func (in instruments) count(ctx context.Context, c metric.Int64Counter, action Action, role Role) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("role", string(role)),
	))
}
