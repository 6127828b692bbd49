package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// State is the lifecycle state of a registered session.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

type entry struct {
	driver ports.Driver
	state  State
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Teardown is the outcome of releasing one session's driver.
type Teardown struct {
	ID  string
	Err error
}

// CloseReport collects the outcome of CloseAll.
type CloseReport struct {
	Closed   []string
	Failures []Teardown
}

// Err joins the teardown failures, or returns nil.
func (r CloseReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("session %q: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}

// Registry maps session IDs to their driver handles.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	locks    map[string]*lockEntry

	logger   *slog.Logger
	onChange func(active int)
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithOnChange registers a callback invoked with the number of sessions
// whenever a session is added or removed.
func WithOnChange(fn func(active int)) Option {
	return func(r *Registry) {
		r.onChange = fn
	}
}

// NewRegistry creates an empty session registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		locks:    make(map[string]*lockEntry),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (r *Registry) acquire(id string) *lockEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, exists := r.locks[id]
	if !exists {
		l = &lockEntry{}
		r.locks[id] = l
	}
	l.refs++
	return l
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (r *Registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, exists := r.locks[id]
	if !exists {
		return
	}
	l.refs--
	if l.refs <= 0 {
		delete(r.locks, id)
	}
}

// Create stores driver as the active handle of id.
func (r *Registry) Create(id string, driver ports.Driver) error {
	if driver == nil {
		return errors.New("driver cannot be nil")
	}

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: session %q already has an active driver", domain.ErrSessionConflict, id)
	}
	r.sessions[id] = &entry{driver: driver, state: StateActive}
	n := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("Session created", "session_id", id)
	r.changed(n)
	return nil
}

// Get returns the active handle of id.
func (r *Registry) Get(id string) (ports.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked(id)
}

func (r *Registry) activeLocked(id string) (ports.Driver, error) {
	e, ok := r.sessions[id]
	if !ok || e.state != StateActive {
		return nil, fmt.Errorf("%w: no active driver for session %q", domain.ErrSessionNotFound, id)
	}
	return e.driver, nil
}

// Has reports whether id is registered, active or closing.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// State returns the lifecycle state of id.
func (r *Registry) State(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		return e.state
	}
	return StateUninitialized
}

// List returns the registered session IDs, sorted.
func (r *Registry) List() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// With executes fn with the handle of id while holding the session's lock,
// so a handle is never driven by two callers at once.
func (r *Registry) With(ctx context.Context, id string, fn func(context.Context, ports.Driver) error) error {
	l := r.acquire(id)
	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		r.release(id)
	}()

	r.mu.Lock()
	driver, err := r.activeLocked(id)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(ctx, driver)
}

// Close releases the handle of id and removes the entry. A failure of the
// driver's Quit is logged and reported in the Teardown, never returned:
// the entry is removed regardless.
func (r *Registry) Close(ctx context.Context, id string) (Teardown, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok || e.state != StateActive {
		r.mu.Unlock()
		return Teardown{ID: id}, fmt.Errorf("%w: no active driver for session %q", domain.ErrSessionNotFound, id)
	}
	e.state = StateClosed
	r.mu.Unlock()

	// Wait for in-flight operations on this session.
	l := r.acquire(id)
	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		r.release(id)
	}()

	td := Teardown{ID: id, Err: quit(ctx, e.driver)}

	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if td.Err != nil {
		r.logger.Warn("Driver teardown failed, session removed anyway", "session_id", id, "err", td.Err)
	} else {
		r.logger.Info("Session closed", "session_id", id)
	}
	r.changed(n)
	return td, nil
}

// CloseAll closes every session, including sessions created while the
// teardown is in progress. The registry is empty when it returns, whatever
// the individual teardowns reported.
func (r *Registry) CloseAll(ctx context.Context) CloseReport {
	var report CloseReport
	for {
		ids, swept := r.activeOrSweep()
		if len(ids) == 0 {
			if swept {
				r.changed(0)
			}
			return report
		}
		for _, id := range ids {
			td, err := r.Close(ctx, id)
			if err != nil {
				// Closed concurrently by someone else.
				continue
			}
			report.Closed = append(report.Closed, id)
			if td.Err != nil {
				report.Failures = append(report.Failures, td)
			}
		}
	}
}

// activeOrSweep returns the sorted active IDs. When there are none it
// drops the entries still being closed elsewhere and reports whether any
// were dropped.
func (r *Registry) activeOrSweep() ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, e := range r.sessions {
		if e.state == StateActive {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		sort.Strings(ids)
		return ids, false
	}
	swept := len(r.sessions) > 0
	for id := range r.sessions {
		delete(r.sessions, id)
	}
	return nil, swept
}

// quit calls driver.Quit, turning a panic into an error.
func quit(ctx context.Context, driver ports.Driver) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("quit panicked: %v", rec)
		}
	}()
	return driver.Quit(ctx)
}

func (r *Registry) changed(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}
