package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/calmora/voice-backend/internal/logger"
)

// Sink records structured turn events: turn start, intent received,
// transition, reply sent, fault. Fire-and-forget from the caller's
// perspective; a sink failure never fails a turn.
type Sink struct {
	log *logger.Logger
}

func NewSink(baseLog *logger.Logger) *Sink {
	return &Sink{log: baseLog.With("service", "Telemetry")}
}

// Emit implements dialog.EventSink. Events land in the structured log and,
// when the context carries a recording span, as span events.
func (s *Sink) Emit(ctx context.Context, event string, keysAndValues ...interface{}) {
	s.log.Info(event, keysAndValues...)

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, attribute.String(key, fmt.Sprintf("%v", keysAndValues[i+1])))
	}
	span.AddEvent(event, trace.WithAttributes(attrs...))
}
