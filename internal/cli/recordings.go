package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/replay"
)

// OpenRecordings returns the sink recordings are read from: Redis when
// fromRedis is set, the replay directory otherwise. The closer may be nil.
func OpenRecordings(ctx context.Context, cfg config.RecorderConfig, fromRedis bool) (ports.RecordSink, io.Closer, error) {
	if !fromRedis {
		return file.NewSink(cfg.Dir), nil, nil
	}
	if cfg.Redis.URL == "" {
		return nil, nil, fmt.Errorf("no redis url configured (recorder.redis.url or TENDRIL_REDIS_URL)")
	}
	sink, err := newRedisSink(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return sink, sink, nil
}

// ListRecordings prints the session ids that have recordings.
func ListRecordings(ctx context.Context, w io.Writer, sink ports.RecordSink) error {
	ids, err := sink.Sessions(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		recs, err := sink.Load(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d calls\n", id, len(recs))
	}
	return nil
}

// ShowRecording prints the replay script of one session.
func ShowRecording(ctx context.Context, w io.Writer, sink ports.RecordSink, sessionID string) error {
	recs, err := sink.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no recording for session %q", sessionID)
	}
	return replay.WriteScript(w, recs)
}

// ReplayOptions configures Replay.
type ReplayOptions struct {
	Source    string // Script path, or a session id when Sink is set.
	Sink      ports.RecordSink
	SessionID string
	Delay     time.Duration
	KeepOpen  bool // Leave the driver session open after the last step.
	Out       io.Writer
}

// Replay runs a recording against a fresh session of rt's agent.
func Replay(ctx context.Context, rt *Runtime, opts ReplayOptions) error {
	records, err := loadRecords(ctx, opts)
	if err != nil {
		return err
	}
	id := opts.SessionID
	if id == "" {
		id = domain.DefaultSessionID
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	agent := rt.Agent
	if !opts.KeepOpen {
		defer agent.Shutdown(context.WithoutCancel(ctx))
	}

	steps, err := agent.Play(ctx, id, records,
		replay.WithDelay(opts.Delay),
		replay.WithObserver(func(s replay.Step) {
			status := "ok"
			if !s.Response.OK() {
				status = "FAIL " + s.Response.Error
			}
			line, _ := replay.Format(s.Record)
			fmt.Fprintf(opts.Out, "%-60s %s (%s)\n", line, status, s.Duration.Round(time.Millisecond))
		}),
	)
	if err != nil {
		return err
	}
	printSystemMessage(opts.Out, "Replayed %d calls on session %q.", len(steps), id)
	return nil
}

func loadRecords(ctx context.Context, opts ReplayOptions) ([]domain.Record, error) {
	if opts.Sink == nil {
		f, err := os.Open(opts.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		return replay.ReadScript(f)
	}
	recs, err := opts.Sink.Load(ctx, opts.Source)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no recording for session %q", opts.Source)
	}
	return recs, nil
}
