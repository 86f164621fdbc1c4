package kernel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type AppDiagnostic struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	RequestCounter  metric.Int64Counter
	CallbackCounter metric.Int64Counter
}

func (diag *AppDiagnostic) BeginTracing(ctx context.Context, spanName string) (trace.Span, context.Context) {
	ctx, span := diag.Tracer.Start(ctx, spanName)
	return span, ctx
}

// CountCallback records one inbound gateway notification, tagged with how
// reconciliation classified it.
func (diag *AppDiagnostic) CountCallback(ctx context.Context, outcome string) {
	if diag.CallbackCounter == nil {
		return
	}
	diag.CallbackCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("callback.outcome", outcome)))
}
