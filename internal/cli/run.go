package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/internal/presentation/tui"
	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/adapters/websocket"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Config config.Config
	Quiet  bool      // Suppress the banner and system messages.
	Out    io.Writer // Human-facing output (banner, system messages).
	Logger *slog.Logger
}

// Run connects to the backend and serves requests until ctx is cancelled.
// When a status address is configured the HTTP status server runs alongside.
func Run(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	if !opts.Quiet {
		tui.PrintBanner(out, tendril.Version)
	}

	rt, err := NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("closing record sinks", "err", err)
		}
	}()

	client := rt.Agent.NewClient(cfg.Backend.Endpoint(),
		websocket.WithReconnectDelay(cfg.Backend.ReconnectDelay),
		websocket.WithWriteTimeout(cfg.Backend.WriteTimeout),
		websocket.WithHeader(cfg.Backend.Header()),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	statusErr := make(chan error, 1)
	if cfg.Status.Addr != "" {
		srv := newStatusServer(rt, client, logger)
		go func() {
			err := srv.ListenAndServe(ctx, cfg.Status.Addr)
			if err != nil {
				// A status port that cannot be bound stops the agent.
				logger.Error("status server failed", "err", err)
				cancel()
			}
			statusErr <- err
		}()
		if !opts.Quiet {
			printSystemMessage(out, "Status server on %s", cfg.Status.Addr)
		}
	} else {
		statusErr <- nil
	}

	if !opts.Quiet {
		printSystemMessage(out, "Connecting to %s (driver: %s, %d commands)", client.URL(), cfg.Driver.Kind, len(rt.Agent.Describe()))
	}
	runErr := rt.Agent.Connect(ctx, client)
	cancel()

	if err := <-statusErr; err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	if !opts.Quiet {
		printSystemMessage(out, "Agent stopped.")
	}
	return runErr
}

func newStatusServer(rt *Runtime, client *websocket.Client, logger *slog.Logger) *httpAdapter.Server {
	return httpAdapter.NewServer(rt.Agent.Dispatcher(),
		httpAdapter.WithSessions(rt.Agent.Sessions()),
		httpAdapter.WithMetrics(rt.Metrics.Handler()),
		httpAdapter.WithVersion(tendril.Version),
		httpAdapter.WithLogger(logger),
		httpAdapter.WithTransport(func() httpAdapter.TransportStatus {
			return httpAdapter.TransportStatus{
				State:        client.State().String(),
				URL:          client.URL(),
				ConnectionID: client.ConnectionID(),
				Reconnects:   client.Reconnects(),
			}
		}),
	)
}
