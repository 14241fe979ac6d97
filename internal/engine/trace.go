package engine

import (
	"context"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/resilix/resilix/pkg/tracing"
)

// trace is a nil-safe handle on the execution span. All methods are
// no-ops when tracing is disabled.
type trace struct {
	span oteltrace.Span
}

func (t trace) addAttempt(tracer *tracing.Service, attempt int, err error) {
	if tracer != nil && t.span != nil {
		tracer.AddAttemptEvent(t.span, attempt, err)
	}
}

func (t trace) recordError(tracer *tracing.Service, err error) {
	if tracer != nil && t.span != nil {
		tracer.RecordError(t.span, err)
	}
}

func (t trace) markOK(tracer *tracing.Service) {
	if tracer != nil && t.span != nil {
		tracer.MarkOK(t.span)
	}
}

func (t trace) markCancelled(tracer *tracing.Service) {
	if tracer != nil && t.span != nil {
		tracer.RecordError(t.span, context.Canceled)
	}
}
