// Package websocket connects the agent to its backend over a persistent,
// self-healing WebSocket.
//
// The backend drives the conversation: it sends one request envelope, the
// client answers with exactly one response, and only then reads the next
// request. Connection loss of any kind leads back to a fixed-delay redial.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultReconnectDelay is the fixed pause between connection attempts.
	DefaultReconnectDelay = 10 * time.Second

	// DefaultWriteTimeout bounds every response write.
	DefaultWriteTimeout = 10 * time.Second
)

// State is the connection state of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStopped:
		return "stopped"
	default:
		return "disconnected"
	}
}

// Handler answers one request payload with one response payload.
// The dispatcher satisfies it through its Dispatch method.
type Handler interface {
	Dispatch(ctx context.Context, raw []byte) []byte
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, raw []byte) []byte

// Dispatch calls f.
func (f HandlerFunc) Dispatch(ctx context.Context, raw []byte) []byte {
	return f(ctx, raw)
}

// Client is a reconnecting WebSocket client.
type Client struct {
	url          string
	header       http.Header
	dialer       *websocket.Dialer
	handler      Handler
	delay        time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
	onState      func(State)

	state      atomic.Int32
	reconnects atomic.Uint64
	connID     atomic.Value // string
}

// Option configures the Client.
type Option func(*Client)

// WithReconnectDelay overrides DefaultReconnectDelay. Non-positive values
// keep the default.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithWriteTimeout overrides DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.writeTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithStateHook is called on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(c *Client) { c.onState = fn }
}

// WithHeader adds headers to the opening handshake.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

// WithHandshakeTimeout bounds the opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialer.HandshakeTimeout = d }
}

// New creates a client for url that answers requests with h.
func New(url string, h Handler, opts ...Option) *Client {
	c := &Client{
		url:          url,
		dialer:       &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 45 * time.Second},
		handler:      h,
		delay:        DefaultReconnectDelay,
		writeTimeout: DefaultWriteTimeout,
		logger:       logging.NewNop(),
	}
	c.connID.Store("")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the backend URL.
func (c *Client) URL() string {
	return c.url
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Reconnects returns how many times the client re-entered Connecting after a failure.
func (c *Client) Reconnects() uint64 {
	return c.reconnects.Load()
}

// ConnectionID returns the id of the live connection, or "".
func (c *Client) ConnectionID() string {
	return c.connID.Load().(string)
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.logger.Debug("transport state", "state", s.String())
	if c.onState != nil {
		c.onState(s)
	}
}

// Run connects and serves requests until ctx is canceled. It only returns
// once the client has stopped, and always returns nil.
func (c *Client) Run(ctx context.Context) error {
	defer c.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			return nil
		}
		c.setState(StateConnecting)
		err := c.serve(ctx)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("connection lost, reconnecting", "url", c.url, "delay", c.delay, "error", err)

		timer := time.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		c.reconnects.Add(1)
	}
}

// serve dials once and runs the read, dispatch, write cycle until the
// connection fails. It always returns a non-nil error.
func (c *Client) serve(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: dial %s: %v (HTTP %d)", domain.ErrTransportFailure, c.url, err, resp.StatusCode)
		}
		return fmt.Errorf("%w: dial %s: %v", domain.ErrTransportFailure, c.url, err)
	}
	defer conn.Close()

	id := uuid.NewString()
	c.connID.Store(id)
	defer c.connID.Store("")
	logger := c.logger.With("conn_id", id)

	// A blocked read only returns once the connection is closed.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.setState(StateConnected)
	logger.Info("connected to backend", "url", c.url)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read: %v", domain.ErrTransportFailure, err)
		}
		logger.Debug("request received", "bytes", len(msg))

		out, herr := c.dispatch(ctx, msg)
		if herr != nil {
			logger.Error("request handling failed", "error", herr)
			c.sendClientError(conn, logger, herr)
			return herr
		}

		if err := c.write(conn, out); err != nil {
			return fmt.Errorf("%w: write: %v", domain.ErrTransportFailure, err)
		}
		logger.Debug("response sent", "bytes", len(out))
	}
}

// dispatch runs the handler, converting a panic into an error.
func (c *Client) dispatch(ctx context.Context, msg []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return c.handler.Dispatch(ctx, msg), nil
}

// sendClientError makes a best-effort attempt to report a mid-cycle fault.
func (c *Client) sendClientError(conn *websocket.Conn, logger *slog.Logger, cause error) {
	payload, err := json.Marshal(domain.Response{
		Status: domain.StatusError,
		Error:  "Client-side error: " + cause.Error(),
	})
	if err == nil {
		err = c.write(conn, payload)
	}
	if err != nil {
		logger.Error("failed to send error before closing", "error", err)
	}
}

func (c *Client) write(conn *websocket.Conn, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
