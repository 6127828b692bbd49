// Package config loads the agent configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/pipe"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the backend endpoint the client id is appended to.
const DefaultBaseURL = "wss://beta.barkoagent.com/ws/"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full agent configuration.
type Config struct {
	Backend  BackendConfig       `mapstructure:"backend"`
	Driver   domain.DriverConfig `mapstructure:"driver"`
	Pipe     PipeConfig          `mapstructure:"pipe"`
	Recorder RecorderConfig      `mapstructure:"recorder"`
	Status   StatusConfig        `mapstructure:"status"`
	Log      LogConfig           `mapstructure:"log"`
}

// BackendConfig describes the outbound WebSocket channel.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ClientID       string        `mapstructure:"client_id"`
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`

	// Headers are sent with every opening handshake.
	Headers map[string]string `mapstructure:"headers"`
}

// Header returns Headers as handshake headers, or nil when none are set.
func (b BackendConfig) Header() http.Header {
	if len(b.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(b.Headers))
	for k, v := range b.Headers {
		h.Set(k, v)
	}
	return h
}

// Endpoint returns the URL the transport dials.
func (b BackendConfig) Endpoint() string {
	if b.URL != "" {
		return b.URL
	}
	if b.ClientID == "" {
		return ""
	}
	return b.BaseURL + b.ClientID
}

type PipeConfig struct {
	Scope string `mapstructure:"scope"`
}

// RecorderConfig selects the replay sinks. Both may be active.
type RecorderConfig struct {
	Disabled bool        `mapstructure:"disabled"`
	Dir      string      `mapstructure:"dir"`
	Redis    RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	URL    string        `mapstructure:"url"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// StatusConfig enables the local HTTP status server when Addr is set.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:        DefaultBaseURL,
			ReconnectDelay: 10 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		Driver: domain.DriverConfig{
			Kind: domain.DriverWebDriver,
			URL:  "http://127.0.0.1:4723",
		},
		Pipe:     PipeConfig{Scope: pipe.ScopeSession.String()},
		Recorder: RecorderConfig{Dir: "tests", Redis: RedisConfig{Prefix: "tendril:recordings:"}},
		Log:      LogConfig{Level: "info"},
	}
}

// Load builds a Config from defaults, the optional YAML file at path and
// the process environment, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return cfg, err
		}
	}
	ApplyEnv(&cfg, os.LookupEnv)
	return cfg, nil
}

// Decode overlays YAML data onto cfg. Keys absent from data keep their
// current value.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(durationHook, mapstructure.StringToTimeDurationHookFunc()),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// durationHook reads bare numbers as seconds.
func durationHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays the environment variables the agent honours.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("BACKEND_WS_URI", &cfg.Backend.ClientID)
	set("TENDRIL_BACKEND_URL", &cfg.Backend.URL)
	set("TENDRIL_LOG_LEVEL", &cfg.Log.Level)
	set("TENDRIL_REDIS_URL", &cfg.Recorder.Redis.URL)
	set("APPIUM_URL", &cfg.Driver.URL)
	set("UDID_ANDROID", &cfg.Driver.UDIDAndroid)
	set("UDID_IOS", &cfg.Driver.UDIDIOS)
	set("APP_PACKAGE", &cfg.Driver.AppPackage)
	set("APP_ACTIVITY", &cfg.Driver.AppActivity)
	set("APP_PATH", &cfg.Driver.AppPath)
	set("BUNDLE_ID", &cfg.Driver.BundleID)
}

// Validate checks the settings needed to connect to a backend.
func (c Config) Validate() error {
	var errs []error

	url := c.Backend.Endpoint()
	switch {
	case url == "":
		errs = append(errs, fmt.Errorf("%w: backend url is empty (set BACKEND_WS_URI or backend.url)", ErrInvalid))
	case !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://"):
		errs = append(errs, fmt.Errorf("%w: backend url %q must use ws:// or wss://", ErrInvalid, url))
	}

	if _, err := pipe.ParseScope(c.Pipe.Scope); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalid, err))
	}

	switch c.Driver.Kind {
	case domain.DriverWebDriver, domain.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown driver kind %q", ErrInvalid, c.Driver.Kind))
	}

	if c.Backend.ReconnectDelay <= 0 {
		errs = append(errs, fmt.Errorf("%w: reconnect_delay must be positive", ErrInvalid))
	}

	return errors.Join(errs...)
}
