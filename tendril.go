package tendril

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/adapters/websocket"
	"github.com/aretw0/tendril/pkg/commands"
	"github.com/aretw0/tendril/pkg/dispatch"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/pipe"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/recorder"
	"github.com/aretw0/tendril/pkg/registry"
	"github.com/aretw0/tendril/pkg/replay"
	"github.com/aretw0/tendril/pkg/session"
)

// Version is overridden at build time with -ldflags "-X github.com/aretw0/tendril.Version=...".
var Version = "dev"

// Agent is the high-level entry point of the library. It owns the session
// registry, the command set and the dispatcher that serves them.
type Agent struct {
	factory    ports.DriverFactory
	driver     domain.DriverConfig
	scope      pipe.Scope
	sinks      []ports.RecordSink
	hooks      domain.Hooks
	metrics    *observability.Metrics
	logger     *slog.Logger
	extra      []registry.Command
	sessions   *session.Registry
	dispatcher *dispatch.Dispatcher
}

// Option defines a functional option for configuring the Agent.
type Option func(*Agent)

// WithDriverFactory sets the factory create_driver uses to open sessions.
func WithDriverFactory(f ports.DriverFactory) Option {
	return func(a *Agent) {
		a.factory = f
	}
}

// WithDriverConfig sets the configuration handed to the driver factory.
func WithDriverConfig(cfg domain.DriverConfig) Option {
	return func(a *Agent) {
		a.driver = cfg
	}
}

// WithPipeScope selects whether the implicit value is shared across sessions.
func WithPipeScope(scope pipe.Scope) Option {
	return func(a *Agent) {
		a.scope = scope
	}
}

// WithRecordSinks enables call recording into the given sinks.
func WithRecordSinks(sinks ...ports.RecordSink) Option {
	return func(a *Agent) {
		a.sinks = append(a.sinks, sinks...)
	}
}

// WithHooks registers dispatch observability hooks.
func WithHooks(h domain.Hooks) Option {
	return func(a *Agent) {
		a.hooks = a.hooks.Merge(h)
	}
}

// WithMetrics wires Prometheus collectors into the dispatcher and session registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// WithCommands registers additional commands next to the automation set.
func WithCommands(cmds ...registry.Command) Option {
	return func(a *Agent) {
		a.extra = append(a.extra, cmds...)
	}
}

// WithLogger sets a custom structured logger for the agent.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New assembles an Agent. A driver factory is required.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	if a.factory == nil {
		return nil, fmt.Errorf("a driver factory is required")
	}

	sessionOpts := []session.Option{session.WithLogger(a.logger)}
	if a.metrics != nil {
		sessionOpts = append(sessionOpts, session.WithOnChange(a.metrics.SetSessions))
		a.hooks = a.hooks.Merge(a.metrics.Hooks())
	}
	a.sessions = session.NewRegistry(sessionOpts...)

	reg := registry.New()
	if err := commands.Register(reg, commands.Deps{
		Sessions: a.sessions,
		Factory:  a.factory,
		Driver:   a.driver,
		Logger:   a.logger,
	}); err != nil {
		return nil, err
	}
	for _, cmd := range a.extra {
		if err := reg.Register(cmd); err != nil {
			return nil, err
		}
	}
	reg.Seal()

	a.dispatcher = dispatch.New(reg,
		dispatch.WithPipe(pipe.New(a.scope)),
		dispatch.WithRecorder(recorder.New(a.sinks...)),
		dispatch.WithHooks(a.hooks),
		dispatch.WithLogger(a.logger),
	)
	return a, nil
}

// Dispatcher returns the request dispatcher shared by every transport.
func (a *Agent) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Sessions returns the live driver sessions.
func (a *Agent) Sessions() *session.Registry {
	return a.sessions
}

// Describe lists the invocable commands.
func (a *Agent) Describe() []domain.MethodInfo {
	return a.dispatcher.Describe()
}

// Dispatch handles one raw request envelope and returns the encoded response.
func (a *Agent) Dispatch(ctx context.Context, raw []byte) []byte {
	return a.dispatcher.Dispatch(ctx, raw)
}

// Do handles one decoded request.
func (a *Agent) Do(ctx context.Context, req domain.Request) domain.Response {
	return a.dispatcher.Do(ctx, req)
}

// NewClient builds the reconnecting backend client for url. The client
// answers requests with the agent's dispatcher.
func (a *Agent) NewClient(url string, opts ...websocket.Option) *websocket.Client {
	base := []websocket.Option{websocket.WithLogger(a.logger)}
	if a.metrics != nil {
		m := a.metrics
		base = append(base, websocket.WithStateHook(func(s websocket.State) {
			m.ObserveTransport(int(s))
		}))
	}
	return websocket.New(url, a.dispatcher, append(base, opts...)...)
}

// Connect runs client until ctx is cancelled. Open sessions are closed on
// return.
func (a *Agent) Connect(ctx context.Context, client *websocket.Client) error {
	a.logger.Info("connecting to backend", "url", client.URL())
	err := client.Run(ctx)
	a.Shutdown(context.WithoutCancel(ctx))
	return err
}

// Replay runs a recorded script against sessionID.
func (a *Agent) Replay(ctx context.Context, sessionID string, script io.Reader, opts ...replay.PlayerOption) ([]replay.Step, error) {
	return a.player(opts).PlayScript(ctx, sessionID, script)
}

// Play runs already parsed records against sessionID.
func (a *Agent) Play(ctx context.Context, sessionID string, records []domain.Record, opts ...replay.PlayerOption) ([]replay.Step, error) {
	return a.player(opts).Play(ctx, sessionID, records)
}

func (a *Agent) player(opts []replay.PlayerOption) *replay.Player {
	opts = append([]replay.PlayerOption{replay.WithLogger(a.logger)}, opts...)
	return replay.NewPlayer(a.dispatcher, opts...)
}

// Shutdown closes every open session.
func (a *Agent) Shutdown(ctx context.Context) session.CloseReport {
	report := a.sessions.CloseAll(ctx)
	if len(report.Closed) > 0 {
		a.logger.Info("sessions closed", "count", len(report.Closed), "failures", len(report.Failures))
	}
	return report
}
