package tendril_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/adapters/websocket"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/pipe"
	"github.com/aretw0/tendril/pkg/registry"
	"github.com/aretw0/tendril/pkg/replay"
	gorilla "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScreen(d *memory.Driver) {
	d.Put("id", "user", &memory.Widget{Attributes: map[string]string{"hint": "alice"}})
	d.Put("id", "field", &memory.Widget{})
}

func TestNew_RequiresFactory(t *testing.T) {
	_, err := tendril.New()
	assert.Error(t, err)
}

func TestAgent_EndToEnd(t *testing.T) {
	factory := memory.NewFactory(newScreen)
	sink := memory.NewRecordSink()
	agent, err := tendril.New(
		tendril.WithDriverFactory(factory),
		tendril.WithRecordSinks(sink),
	)
	require.NoError(t, err)
	ctx := context.Background()

	methods := agent.Describe()
	require.NotEmpty(t, methods)
	names := make([]string, 0, len(methods))
	for _, m := range methods {
		names = append(names, m.Name)
		assert.NotContains(t, m.Args, domain.SessionParam)
	}
	assert.Contains(t, names, "list_available_methods")
	assert.Contains(t, names, "send_keys")

	resp := agent.Do(ctx, domain.Request{Function: "create_driver"})
	require.True(t, resp.OK(), resp.Error)

	resp = agent.Do(ctx, domain.Request{Function: "get_attribute", Args: []any{"id", "user", "hint"}})
	require.True(t, resp.OK(), resp.Error)
	assert.Equal(t, "alice", resp.Result)

	resp = agent.Do(ctx, domain.Request{Function: "send_keys", Args: []any{"id", "field"}})
	require.True(t, resp.OK(), resp.Error)
	assert.Equal(t, "alice", factory.Last().Widget("id", "field").Text)

	recs, err := sink.Load(ctx, domain.DefaultSessionID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "send_keys", recs[2].Command)

	report := agent.Shutdown(ctx)
	assert.Equal(t, []string{domain.DefaultSessionID}, report.Closed)
	assert.Zero(t, agent.Sessions().Len())
	assert.True(t, factory.Last().Quitted())
}

func TestAgent_GlobalPipe(t *testing.T) {
	factory := memory.NewFactory(newScreen)
	agent, err := tendril.New(
		tendril.WithDriverFactory(factory),
		tendril.WithPipeScope(pipe.ScopeGlobal),
	)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		resp := agent.Do(ctx, domain.Request{Function: "create_driver", Kwargs: map[string]any{domain.SessionParam: id}})
		require.True(t, resp.OK(), resp.Error)
	}
	resp := agent.Do(ctx, domain.Request{Function: "get_attribute", Args: []any{"id", "user", "hint"}, Kwargs: map[string]any{domain.SessionParam: "a"}})
	require.True(t, resp.OK(), resp.Error)
	resp = agent.Do(ctx, domain.Request{Function: "send_keys", Args: []any{"id", "field"}, Kwargs: map[string]any{domain.SessionParam: "b"}})
	require.True(t, resp.OK(), resp.Error)

	drivers := factory.Drivers()
	require.Len(t, drivers, 2)
	assert.Equal(t, "alice", drivers[1].Widget("id", "field").Text)
}

func TestAgent_ExtraCommands(t *testing.T) {
	agent, err := tendril.New(
		tendril.WithDriverFactory(memory.NewFactory(nil)),
		tendril.WithCommands(registry.Command{
			Name: "ping",
			Doc:  "Answers pong.",
			Handler: func(ctx context.Context, call *registry.Call) (any, error) {
				return "pong", nil
			},
		}),
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","result":"pong"}`, string(agent.Dispatch(context.Background(), []byte(`{"function":"ping"}`))))

	_, err = tendril.New(
		tendril.WithDriverFactory(memory.NewFactory(nil)),
		tendril.WithCommands(registry.Command{Name: "click", Handler: func(context.Context, *registry.Call) (any, error) { return nil, nil }}),
	)
	assert.Error(t, err, "duplicate names are rejected")
}

func TestAgent_Replay(t *testing.T) {
	factory := memory.NewFactory(newScreen)
	agent, err := tendril.New(tendril.WithDriverFactory(factory))
	require.NoError(t, err)

	script := strings.Join([]string{
		`driver.create_driver()`,
		`driver.send_keys(locator_type="id", locator="field", value="bob")`,
		`driver.click(locator_type="id", locator="field")`,
	}, "\n")
	steps, err := agent.Replay(context.Background(), "r1", strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, steps, 3)

	w := factory.Last().Widget("id", "field")
	assert.Equal(t, "bob", w.Text)
	assert.Equal(t, 1, w.Clicks)

	_, err = agent.Replay(context.Background(), "r1", strings.NewReader(`driver.click(locator_type="id", locator="missing")`))
	var stepErr *replay.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "click", stepErr.Command)
}

func TestAgent_Connect(t *testing.T) {
	upgrader := gorilla.Upgrader{}
	replies := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		for _, req := range []string{`{"function":"create_driver"}`, `{"function":"click","args":["id","field"]}`} {
			if !assert.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte(req))) {
				return
			}
			_, msg, err := conn.ReadMessage()
			if !assert.NoError(t, err) {
				return
			}
			replies <- string(msg)
		}
	}))
	defer srv.Close()

	metrics := observability.NewMetrics()
	factory := memory.NewFactory(newScreen)
	agent, err := tendril.New(tendril.WithDriverFactory(factory), tendril.WithMetrics(metrics))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	client := agent.NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), websocket.WithReconnectDelay(time.Hour))
	done := make(chan error, 1)
	go func() { done <- agent.Connect(ctx, client) }()

	for _, want := range []string{
		`{"status":"success","result":"success"}`,
		`{"status":"success","result":"clicked successfully"}`,
	} {
		select {
		case got := <-replies:
			assert.JSONEq(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatal("no reply from agent")
		}
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Sessions))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop")
	}
	assert.Equal(t, websocket.StateStopped, client.State())
	assert.Zero(t, agent.Sessions().Len(), "sessions are closed on stop")
	assert.True(t, factory.Last().Quitted())
}
