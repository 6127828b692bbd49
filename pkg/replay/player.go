package replay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
)

// Executor runs a single request. The dispatcher satisfies it.
type Executor interface {
	Do(ctx context.Context, req domain.Request) domain.Response
}

// Step is the outcome of one replayed statement.
type Step struct {
	Record   domain.Record
	Response domain.Response
	Duration time.Duration
}

// StepError reports the statement that stopped a replay.
type StepError struct {
	Index   int
	Command string
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.Index+1, e.Command, e.Message)
}

// Player replays recorded calls against a session.
type Player struct {
	exec     Executor
	logger   *slog.Logger
	delay    time.Duration
	observer func(Step)
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithLogger sets the player logger.
func WithLogger(logger *slog.Logger) PlayerOption {
	return func(p *Player) { p.logger = logger }
}

// WithDelay pauses between statements.
func WithDelay(d time.Duration) PlayerOption {
	return func(p *Player) { p.delay = d }
}

// WithObserver is called after every statement, successful or not.
func WithObserver(fn func(Step)) PlayerOption {
	return func(p *Player) { p.observer = fn }
}

// NewPlayer creates a player that executes through exec.
func NewPlayer(exec Executor, opts ...PlayerOption) *Player {
	p := &Player{exec: exec, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play executes records in order under sessionID and stops at the first
// error response, which is returned as a *StepError.
func (p *Player) Play(ctx context.Context, sessionID string, records []domain.Record) ([]Step, error) {
	steps := make([]Step, 0, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		if i > 0 && p.delay > 0 {
			select {
			case <-ctx.Done():
				return steps, ctx.Err()
			case <-time.After(p.delay):
			}
		}

		kwargs := rec.Kwargs()
		kwargs[domain.SessionParam] = sessionID

		start := time.Now()
		resp := p.exec.Do(ctx, domain.Request{Function: rec.Command, Kwargs: kwargs})
		step := Step{Record: rec, Response: resp, Duration: time.Since(start)}
		steps = append(steps, step)
		if p.observer != nil {
			p.observer(step)
		}

		if !resp.OK() {
			p.logger.Warn("replay stopped", "step", i+1, "command", rec.Command, "error", resp.Error)
			return steps, &StepError{Index: i, Command: rec.Command, Message: resp.Error}
		}
		p.logger.Debug("replayed", "step", i+1, "command", rec.Command)
	}
	return steps, nil
}

// PlayScript parses a script from r and plays it.
func (p *Player) PlayScript(ctx context.Context, sessionID string, r io.Reader) ([]Step, error) {
	records, err := ReadScript(r)
	if err != nil {
		return nil, err
	}
	return p.Play(ctx, sessionID, records)
}
