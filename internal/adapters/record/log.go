// Package record holds RecordSink adapters. The durable store for call
// history lives in the surrounding application; these sinks are what a
// standalone deployment of the signaling core runs with.
package record

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/domain"
)

// LogSink writes each terminal call record to the structured log.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (*LogSink) Save(_ context.Context, rec domain.CallRecord) error {
	log.Info().
		Str("module", "record").
		Str("from", string(rec.From)).
		Str("to", string(rec.To)).
		Str("call_type", string(rec.Media)).
		Int("duration_s", rec.DurationSeconds).
		Str("outcome", string(rec.Outcome)).
		Msg("call record")
	return nil
}
