package observability

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// LoggerWithTrace derives a logger carrying the active span's trace_id and
// span_id, so one ingestion run or chat turn can be followed across the
// webhook handler, the worker pipeline, and the chat service.
func LoggerWithTrace(ctx context.Context) *zerolog.Logger {
	l := log.Logger
	if ctx == nil {
		return &l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return &l
	}
	lc := l.With().Str("trace_id", sc.TraceID().String())
	if sc.HasSpanID() {
		lc = lc.Str("span_id", sc.SpanID().String())
	}
	l = lc.Logger()
	return &l
}
