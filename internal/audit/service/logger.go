package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/errolitolopez/user-access-manager/internal/audit/domain"
)

// Logger is a Publisher that writes events to the structured log.
// Swap for a queue or table-backed sink in deployments that need one.
type Logger struct{ log zerolog.Logger }

func NewLogger(log zerolog.Logger) *Logger { return &Logger{log: log} }

func (l *Logger) Publish(ctx context.Context, e domain.Event) error {
	ev := l.log.Info().
		Str("type", e.Type).
		Time("ts", e.Time)
	if e.Actor != "" {
		ev = ev.Str("actor", e.Actor)
	}
	if e.SourceAddr != "" {
		ev = ev.Str("source_addr", e.SourceAddr)
	}
	if len(e.Meta) > 0 {
		ev = ev.Fields(map[string]any{"meta": e.Meta})
	}
	ev.Msg("audit event")
	return nil
}

func (l *Logger) PublishBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]map[string]string, 0, len(events))
	for _, e := range events {
		records = append(records, e.Meta)
	}
	l.log.Info().
		Str("type", events[0].Type).
		Int("count", len(events)).
		Fields(map[string]any{"records": records}).
		Time("ts", events[0].Time).
		Msg("audit batch")
	return nil
}
