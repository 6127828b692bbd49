package webdriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// DefaultURL is the Appium endpoint used when none is configured.
const DefaultURL = "http://127.0.0.1:4723"

// ErrTimeout is returned when a wait elapses.
var ErrTimeout = errors.New("timed out waiting for element")

// Factory opens WebDriver sessions.
type Factory struct {
	http   *http.Client
	poll   time.Duration
	logger *slog.Logger
}

// Option configures the Factory.
type Option func(*Factory)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Factory) { f.http = c }
}

// WithPollInterval sets how often waits re-check the element.
func WithPollInterval(d time.Duration) Option {
	return func(f *Factory) { f.poll = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// NewFactory creates a WebDriver factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		http:   &http.Client{Timeout: 2 * time.Minute},
		poll:   250 * time.Millisecond,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewDriver implements ports.DriverFactory by creating a new remote session.
func (f *Factory) NewDriver(ctx context.Context, cfg domain.DriverConfig) (ports.Driver, error) {
	base := cfg.URL
	if base == "" {
		base = DefaultURL
	}
	c := &client{http: f.http, baseURL: base}

	var created struct {
		SessionID string `json:"sessionId"`
	}
	body := map[string]any{
		"capabilities": map[string]any{"alwaysMatch": Capabilities(cfg)},
	}
	if err := c.do(ctx, http.MethodPost, "/session", body, &created); err != nil {
		return nil, fmt.Errorf("new session at %s: %w", base, err)
	}
	if created.SessionID == "" {
		return nil, fmt.Errorf("new session at %s: no session id returned", base)
	}

	d := &Driver{c: c, id: created.SessionID, poll: f.poll}
	if cfg.ImplicitWait > 0 {
		if err := d.post(ctx, "/timeouts", map[string]any{"implicit": cfg.ImplicitWait.Milliseconds()}, nil); err != nil {
			f.logger.Warn("set implicit wait", "session", d.id, "error", err)
		}
	}
	f.logger.Info("webdriver session created", "url", base, "webdriver_session", d.id)
	return d, nil
}

// Driver is one remote WebDriver session.
type Driver struct {
	c    *client
	id   string
	poll time.Duration
}

// SessionID returns the remote session id.
func (d *Driver) SessionID() string {
	return d.id
}

func (d *Driver) path(suffix string) string {
	return "/session/" + url.PathEscape(d.id) + suffix
}

func (d *Driver) post(ctx context.Context, suffix string, body, out any) error {
	if body == nil {
		body = map[string]any{}
	}
	return d.c.do(ctx, http.MethodPost, d.path(suffix), body, out)
}

func (d *Driver) get(ctx context.Context, suffix string, out any) error {
	return d.c.do(ctx, http.MethodGet, d.path(suffix), nil, out)
}

// Locate implements ports.Driver. The element is looked up on every operation.
func (d *Driver) Locate(locatorType, locator string) ports.Element {
	return &element{d: d, using: Strategy(locatorType), value: locator}
}

// PageSource implements ports.Driver.
func (d *Driver) PageSource(ctx context.Context) (string, error) {
	var src string
	err := d.get(ctx, "/source", &src)
	return src, err
}

// Back implements ports.Driver.
func (d *Driver) Back(ctx context.Context) error {
	return d.post(ctx, "/back", nil, nil)
}

// BackgroundApp implements ports.Driver.
func (d *Driver) BackgroundApp(ctx context.Context, dur time.Duration) error {
	secs := dur.Seconds()
	if dur < 0 {
		secs = -1
	}
	return d.post(ctx, "/appium/app/background", map[string]any{"seconds": secs}, nil)
}

// ActivateApp implements ports.Driver.
func (d *Driver) ActivateApp(ctx context.Context, appID string) error {
	return d.post(ctx, "/appium/device/activate_app", map[string]any{"appId": appID, "bundleId": appID}, nil)
}

// Quit implements ports.Driver.
func (d *Driver) Quit(ctx context.Context) error {
	return d.c.do(ctx, http.MethodDelete, d.path(""), nil, nil)
}

type element struct {
	d     *Driver
	using string
	value string
}

func (e *element) find(ctx context.Context) (string, error) {
	var ref map[string]string
	err := e.d.post(ctx, "/element", map[string]any{"using": e.using, "value": e.value}, &ref)
	if err != nil {
		return "", err
	}
	id := ref[elementKey]
	if id == "" {
		return "", fmt.Errorf("element reference missing for %s=%q", e.using, e.value)
	}
	return id, nil
}

func (e *element) act(ctx context.Context, suffix string, body any) error {
	id, err := e.find(ctx)
	if err != nil {
		return err
	}
	return e.d.post(ctx, "/element/"+url.PathEscape(id)+suffix, body, nil)
}

func (e *element) Click(ctx context.Context) error {
	return e.act(ctx, "/click", nil)
}

func (e *element) Clear(ctx context.Context) error {
	return e.act(ctx, "/clear", nil)
}

func (e *element) SendKeys(ctx context.Context, value string) error {
	return e.act(ctx, "/value", map[string]any{"text": value})
}

func (e *element) PressHold(ctx context.Context, dur time.Duration) error {
	id, err := e.find(ctx)
	if err != nil {
		return err
	}
	origin := map[string]any{elementKey: id}
	actions := map[string]any{"actions": []any{map[string]any{
		"type":       "pointer",
		"id":         "finger1",
		"parameters": map[string]any{"pointerType": "touch"},
		"actions": []any{
			map[string]any{"type": "pointerMove", "duration": 0, "origin": origin, "x": 0, "y": 0},
			map[string]any{"type": "pointerDown", "button": 0},
			map[string]any{"type": "pause", "duration": dur.Milliseconds()},
			map[string]any{"type": "pointerUp", "button": 0},
		},
	}}}
	return e.d.post(ctx, "/actions", actions, nil)
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	id, err := e.find(ctx)
	if err != nil {
		return "", err
	}
	var v any
	if err := e.d.get(ctx, "/element/"+url.PathEscape(id)+"/attribute/"+url.PathEscape(name), &v); err != nil {
		return "", err
	}
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		return fmt.Sprint(val), nil
	}
}

// displayed returns (found, visible).
func (e *element) displayed(ctx context.Context) (bool, bool, error) {
	id, err := e.find(ctx)
	if IsNoSuchElement(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	var shown any
	if err := e.d.get(ctx, "/element/"+url.PathEscape(id)+"/displayed", &shown); err != nil {
		if IsNoSuchElement(err) {
			return false, false, nil
		}
		return true, false, err
	}
	switch v := shown.(type) {
	case bool:
		return true, v, nil
	case string:
		return true, v == "true", nil
	}
	return true, false, nil
}

func (e *element) WaitVisible(ctx context.Context, timeout time.Duration) error {
	return e.wait(ctx, timeout, func(found, visible bool) bool { return found && visible })
}

func (e *element) WaitAbsent(ctx context.Context, timeout time.Duration) error {
	return e.wait(ctx, timeout, func(found, visible bool) bool { return !found || !visible })
}

func (e *element) wait(ctx context.Context, timeout time.Duration, done func(found, visible bool) bool) error {
	deadline := time.Now().Add(timeout)
	for {
		found, visible, err := e.displayed(ctx)
		if err != nil {
			return err
		}
		if done(found, visible) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s=%q after %s", ErrTimeout, e.using, e.value, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.d.poll):
		}
	}
}
