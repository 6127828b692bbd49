// Package recorder appends executed calls to the replay sinks.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Recorder stamps calls with a sequence number and fans them out to sinks.
type Recorder struct {
	sinks []ports.RecordSink
	seq   atomic.Uint64
	now   func() time.Time
}

// New creates a recorder writing to sinks. With no sinks Record is a no-op.
func New(sinks ...ports.RecordSink) *Recorder {
	return &Recorder{sinks: sinks, now: time.Now}
}

// Enabled reports whether any sink is configured.
func (r *Recorder) Enabled() bool {
	return r != nil && len(r.sinks) > 0
}

// Record appends one call to every sink. Sinks are all attempted; their
// failures are joined.
func (r *Recorder) Record(ctx context.Context, sessionID, command string, args []domain.Arg) error {
	if !r.Enabled() {
		return nil
	}
	rec := domain.Record{
		Seq:       r.seq.Add(1),
		SessionID: sessionID,
		Command:   command,
		Args:      args,
		Time:      r.now(),
	}

	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("append %s #%d: %w", command, rec.Seq, err))
		}
	}
	return errors.Join(errs...)
}
