package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Driver.Kind = domain.DriverMemory
	cfg.Recorder.Dir = t.TempDir()
	return cfg
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LogConfig{Level: "debug", JSON: true}, &buf)
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = NewLogger(config.LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}

func TestNewRuntime_Memory(t *testing.T) {
	cfg := memoryConfig(t)
	rt, err := NewRuntime(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	ctx := context.Background()
	for _, raw := range []string{
		`{"function":"create_driver"}`,
		`{"function":"send_keys","args":["id","field","hi"]}`,
	} {
		var resp domain.Response
		require.NoError(t, json.Unmarshal(rt.Agent.Dispatch(ctx, []byte(raw)), &resp))
		require.True(t, resp.OK(), resp.Error)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Recorder.Dir, "function_calls1.replay"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `driver.send_keys(locator_type="id", locator="field", value="hi")`)
}

func TestNewRuntime_Errors(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Driver.Kind = "selenium"
	_, err := NewRuntime(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)

	cfg = memoryConfig(t)
	cfg.Pipe.Scope = "thread"
	_, err = NewRuntime(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)

	cfg = memoryConfig(t)
	cfg.Recorder.Redis.URL = "redis://127.0.0.1:1/0"
	_, err = NewRuntime(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "redis unreachable")
}

func TestNewRuntime_RecorderDisabled(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Recorder.Disabled = true
	rt, err := NewRuntime(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	assert.Empty(t, rt.Sinks)
}

func TestRecordings_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig(t)
	cfg.Recorder.Dir = ""
	cfg.Recorder.Redis.URL = "redis://" + mr.Addr()

	ctx := context.Background()
	rt, err := NewRuntime(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	require.Len(t, rt.Sinks, 1)
	rt.Agent.Dispatch(ctx, []byte(`{"function":"create_driver","kwargs":{"_run_test_id":"r7"}}`))
	rt.Agent.Dispatch(ctx, []byte(`{"function":"click","args":["id","ok"],"kwargs":{"_run_test_id":"r7"}}`))
	require.NoError(t, rt.Close())

	sink, closer, err := OpenRecordings(ctx, cfg.Recorder, true)
	require.NoError(t, err)
	defer closer.Close()

	var list bytes.Buffer
	require.NoError(t, ListRecordings(ctx, &list, sink))
	assert.Equal(t, "r7\t2 calls\n", list.String())

	var show bytes.Buffer
	require.NoError(t, ShowRecording(ctx, &show, sink, "r7"))
	assert.Equal(t, "driver.create_driver()\ndriver.click(locator_type=\"id\", locator=\"ok\")\n", show.String())

	assert.Error(t, ShowRecording(ctx, &show, sink, "missing"))

	_, _, err = OpenRecordings(ctx, config.RecorderConfig{}, true)
	assert.Error(t, err)
}

func TestReplay_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "login.replay")
	script := "# login flow\ndriver.create_driver()\ndriver.send_keys(locator_type=\"id\", locator=\"user\", value=\"alice\")\ndriver.exists(locator_type=\"id\", locator=\"user\", timeout=1)\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	cfg := memoryConfig(t)
	cfg.Recorder.Disabled = true
	rt, err := NewRuntime(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)

	var out bytes.Buffer
	err = Replay(context.Background(), rt, ReplayOptions{Source: path, SessionID: "replay", Out: &out})
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out.String(), " ok ("))
	assert.Contains(t, out.String(), `>>> Replayed 3 calls on session "replay".`)
	assert.Zero(t, rt.Agent.Sessions().Len(), "session closed after replay")

	err = Replay(context.Background(), rt, ReplayOptions{Source: filepath.Join(dir, "none.replay")})
	assert.Error(t, err)
}

func TestPrintMethods(t *testing.T) {
	methods := []domain.MethodInfo{{Name: "click", Args: []string{"locator_type", "locator"}, Doc: "Clicks."}}

	var buf bytes.Buffer
	require.NoError(t, PrintMethods(&buf, methods, FormatJSON))
	assert.JSONEq(t, `{"status":"success","methods":[{"name":"click","args":["locator_type","locator"],"doc":"Clicks."}]}`, buf.String())

	buf.Reset()
	require.NoError(t, PrintMethods(&buf, methods, FormatMarkdown))
	assert.Contains(t, buf.String(), "| `click` |")

	buf.Reset()
	require.NoError(t, PrintMethods(&buf, methods, FormatText))
	assert.Contains(t, buf.String(), "click")

	assert.Error(t, PrintMethods(&buf, methods, "yaml"))
}

func TestRun(t *testing.T) {
	replies := make(chan string, 1)
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case auth <- r.Header.Get("Authorization"):
		default:
		}
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		if !assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"function":"list_available_methods"}`))) {
			return
		}
		_, msg, err := conn.ReadMessage()
		if assert.NoError(t, err) {
			replies <- string(msg)
		}
		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	cfg := memoryConfig(t)
	cfg.Backend.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Backend.Headers = map[string]string{"Authorization": "Bearer t0ken"}

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- Run(ctx, RunOptions{Config: cfg, Quiet: true, Out: &out}) }()

	select {
	case got := <-replies:
		assert.Contains(t, got, `"list_available_methods"`)
	case <-time.After(5 * time.Second):
		t.Fatal("agent never answered")
	}
	assert.Equal(t, "Bearer t0ken", <-auth, "configured headers reach the handshake")
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, out.String(), "quiet mode prints nothing")
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := memoryConfig(t)
	err := Run(context.Background(), RunOptions{Config: cfg})
	assert.ErrorIs(t, err, config.ErrInvalid)
}
