package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// RecordSink implements ports.RecordSink in memory.
// Safe for concurrent use.
type RecordSink struct {
	data map[string][]domain.Record
	mu   sync.RWMutex
}

// NewRecordSink creates a new in-memory sink.
func NewRecordSink() *RecordSink {
	return &RecordSink{
		data: make(map[string][]domain.Record),
	}
}

// Append stores a copy of the record.
func (s *RecordSink) Append(ctx context.Context, rec domain.Record) error {
	rec.Args = append([]domain.Arg(nil), rec.Args...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.SessionID] = append(s.data[rec.SessionID], rec)
	return nil
}

// Load returns a copy of the session's records.
func (s *RecordSink) Load(ctx context.Context, sessionID string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Record(nil), s.data[sessionID]...), nil
}

// Sessions returns the sessions with at least one record, sorted.
func (s *RecordSink) Sessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
