package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// RecordSink persists replay records. Implementations are append-only:
// records are never rewritten or reordered.
type RecordSink interface {
	// Append adds a record to the end of its session's script.
	Append(ctx context.Context, record domain.Record) error

	// Load returns the records of a session in append order.
	// A session with no records yields an empty slice and no error.
	Load(ctx context.Context, sessionID string) ([]domain.Record, error)

	// Sessions lists the session IDs that have at least one record.
	Sessions(ctx context.Context) ([]string, error)
}
