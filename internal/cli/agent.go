package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/adapters/webdriver"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/pipe"
	"github.com/aretw0/tendril/pkg/ports"
)

// Runtime is an Agent plus the resources built alongside it.
type Runtime struct {
	Agent   *tendril.Agent
	Metrics *observability.Metrics
	Sinks   []ports.RecordSink
	closers []io.Closer
}

// Close releases sink connections.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// newDriverFactory selects the driver adapter for cfg.Kind.
func newDriverFactory(cfg domain.DriverConfig, logger *slog.Logger) (ports.DriverFactory, error) {
	switch cfg.Kind {
	case "", domain.DriverWebDriver:
		return webdriver.NewFactory(webdriver.WithLogger(logger)), nil
	case domain.DriverMemory:
		return memory.NewFactory(func(d *memory.Driver) { d.SetLenient(true) }), nil
	}
	return nil, fmt.Errorf("unknown driver kind %q", cfg.Kind)
}

// newSinks opens the record sinks named by the recorder section.
func newSinks(ctx context.Context, cfg config.RecorderConfig) ([]ports.RecordSink, []io.Closer, error) {
	if cfg.Disabled {
		return nil, nil, nil
	}
	var sinks []ports.RecordSink
	var closers []io.Closer
	if cfg.Dir != "" {
		sinks = append(sinks, file.NewSink(cfg.Dir))
	}
	if cfg.Redis.URL != "" {
		sink, err := newRedisSink(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sink)
		closers = append(closers, sink)
	}
	return sinks, closers, nil
}

func newRedisSink(ctx context.Context, cfg config.RedisConfig) (*redis.Sink, error) {
	var opts []redis.Option
	if cfg.Prefix != "" {
		opts = append(opts, redis.WithPrefix(cfg.Prefix))
	}
	if cfg.TTL > 0 {
		opts = append(opts, redis.WithTTL(cfg.TTL))
	}
	sink, err := redis.New(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	if err := sink.Ping(ctx); err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	return sink, nil
}

// NewRuntime builds an Agent from cfg.
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	factory, err := newDriverFactory(cfg.Driver, logger)
	if err != nil {
		return nil, err
	}
	scope, err := pipe.ParseScope(cfg.Pipe.Scope)
	if err != nil {
		return nil, err
	}
	sinks, closers, err := newSinks(ctx, cfg.Recorder)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Metrics: observability.NewMetrics(), Sinks: sinks, closers: closers}
	rt.Agent, err = tendril.New(
		tendril.WithDriverFactory(factory),
		tendril.WithDriverConfig(cfg.Driver),
		tendril.WithPipeScope(scope),
		tendril.WithRecordSinks(sinks...),
		tendril.WithMetrics(rt.Metrics),
		tendril.WithLogger(logger),
	)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("error initializing agent: %w", err)
	}
	return rt, nil
}
