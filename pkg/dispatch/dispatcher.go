package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/pipe"
	"github.com/aretw0/tendril/pkg/recorder"
	"github.com/aretw0/tendril/pkg/registry"
)

// Dispatcher executes requests against a command registry.
type Dispatcher struct {
	registry *registry.Registry
	pipe     *pipe.Pipe
	recorder *recorder.Recorder
	logger   *slog.Logger
	hooks    domain.Hooks
	now      func() time.Time
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithPipe sets the implicit value pipe. The default is a session-scoped pipe.
func WithPipe(p *pipe.Pipe) Option {
	return func(d *Dispatcher) { d.pipe = p }
}

// WithRecorder sets the call recorder. The default records nothing.
func WithRecorder(r *recorder.Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithHooks adds lifecycle hooks. Repeated calls are merged.
func WithHooks(h domain.Hooks) Option {
	return func(d *Dispatcher) { d.hooks = d.hooks.Merge(h) }
}

// New creates a dispatcher over reg.
func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		pipe:     pipe.New(pipe.ScopeSession),
		recorder: recorder.New(),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Describe returns the introspection listing.
func (d *Dispatcher) Describe() []domain.MethodInfo {
	return d.registry.Describe()
}

// Pipe returns the implicit value pipe.
func (d *Dispatcher) Pipe() *pipe.Pipe {
	return d.pipe
}

// Dispatch handles one raw envelope and returns the encoded response.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) []byte {
	return d.Encode(d.Handle(ctx, raw))
}

// Encode serializes resp. A result that cannot be encoded becomes an error response.
func (d *Dispatcher) Encode(resp domain.Response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		d.logger.Error("encode response", "error", err)
		out, _ = json.Marshal(domain.Failure(fmt.Errorf("%w: result cannot be encoded: %v", domain.ErrDriverOperationFailed, err)))
	}
	return out
}

// Handle decodes raw and executes it.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) domain.Response {
	if len(bytes.TrimSpace(raw)) == 0 {
		return d.reject(ctx, "", fmt.Errorf("%w: received an empty or invalid message", domain.ErrMalformedRequest))
	}
	var req domain.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		d.logger.Debug("undecodable request", "error", err)
		return d.reject(ctx, "", fmt.Errorf("%w: invalid JSON received", domain.ErrInvalidEncoding))
	}
	return d.Do(ctx, req)
}

// Do executes a decoded request.
func (d *Dispatcher) Do(ctx context.Context, req domain.Request) (resp domain.Response) {
	start := d.now()
	event := &domain.DispatchEvent{Timestamp: start, Function: req.Function}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command panicked", "function", req.Function, "panic", r)
			resp = domain.Failure(fmt.Errorf("%w: %s panicked: %v", domain.ErrDriverOperationFailed, req.Function, r))
		}
		event.Status = resp.Status
		event.Error = resp.Error
		event.Duration = d.now().Sub(start)
		d.observe(ctx, event)
	}()

	if req.Function == "" {
		return domain.Failure(fmt.Errorf("%w: missing function name", domain.ErrMalformedRequest))
	}

	if req.Function == domain.IntrospectionFunction {
		if _, err := d.registry.Resolve(req.Function); err != nil {
			event.Resolved = true
			return domain.Methods(d.registry.Describe())
		}
	}

	cmd, err := d.registry.Resolve(req.Function)
	if err != nil {
		return domain.Failure(err)
	}
	event.Resolved = true

	sessionID, kwargs := splitSession(req.Kwargs)
	event.SessionID = sessionID

	args, err := bind(cmd, d.pipe, sessionID, req.Args, kwargs)
	if err != nil {
		return domain.Failure(err)
	}

	call := registry.NewCall(cmd, sessionID, args)
	result, err := cmd.Handler(ctx, call)
	if err != nil {
		return domain.Failure(err)
	}

	if cmd.Produces {
		if v, ok := call.Yielded(); ok {
			d.pipe.Set(sessionID, v)
		} else {
			d.pipe.Set(sessionID, result)
		}
	}
	if !cmd.Unrecorded {
		if err := d.recorder.Record(ctx, sessionID, cmd.Name, call.Ordered()); err != nil {
			d.logger.Warn("recording failed", "function", cmd.Name, "session", sessionID, "error", err)
		}
	}
	return domain.Success(result)
}

func (d *Dispatcher) reject(ctx context.Context, fn string, err error) domain.Response {
	resp := domain.Failure(err)
	d.observe(ctx, &domain.DispatchEvent{
		Timestamp: d.now(),
		Function:  fn,
		Status:    resp.Status,
		Error:     resp.Error,
	})
	return resp
}

func (d *Dispatcher) observe(ctx context.Context, e *domain.DispatchEvent) {
	if e.Status == domain.StatusError {
		d.logger.Info("dispatch failed", "function", e.Function, "session", e.SessionID, "error", e.Error)
	} else {
		d.logger.Debug("dispatched", "function", e.Function, "session", e.SessionID, "duration", e.Duration)
	}
	if d.hooks.OnDispatch != nil {
		d.hooks.OnDispatch(ctx, e)
	}
}

// splitSession extracts the session routing parameter from kwargs and
// returns the remaining arguments in a fresh map.
func splitSession(kwargs map[string]any) (string, map[string]any) {
	rest := make(map[string]any, len(kwargs))
	sessionID := domain.DefaultSessionID
	for k, v := range kwargs {
		if k != domain.SessionParam {
			rest[k] = v
			continue
		}
		switch id := v.(type) {
		case nil:
		case string:
			if id != "" {
				sessionID = id
			}
		case float64:
			sessionID = fmt.Sprintf("%g", id)
		default:
			sessionID = fmt.Sprint(id)
		}
	}
	return sessionID, rest
}
