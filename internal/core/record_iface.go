package core

import (
	"context"

	"github.com/avrek/huddle/internal/domain"
)

// RecordSink persists a terminal call summary. The durable store is
// provided by the surrounding application; failures here must never
// abort call teardown.
type RecordSink interface {
	Save(ctx context.Context, rec domain.CallRecord) error
}
