// Package webdriver drives Appium (or any W3C WebDriver endpoint) over HTTP.
package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// elementKey is the W3C web element identifier key.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// Error is a WebDriver error response.
type Error struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("webdriver %s (HTTP %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("webdriver %s: %s", e.Code, e.Message)
}

// IsNoSuchElement reports whether err is a "no such element" response.
func IsNoSuchElement(err error) bool {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Code == "no such element" || werr.Code == "stale element reference"
	}
	return false
}

// client performs JSON requests against one WebDriver endpoint.
type client struct {
	http    *http.Client
	baseURL string
}

// do sends body (if not nil) and decodes the "value" member of the reply into out (if not nil).
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("decode %s %s (HTTP %d): %w", method, path, resp.StatusCode, err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		werr := &Error{Status: resp.StatusCode}
		if len(envelope.Value) > 0 {
			_ = json.Unmarshal(envelope.Value, werr)
		}
		if werr.Code == "" {
			werr.Code = http.StatusText(resp.StatusCode)
		}
		return werr
	}

	if out != nil && len(envelope.Value) > 0 {
		if err := json.Unmarshal(envelope.Value, out); err != nil {
			return fmt.Errorf("decode %s %s value: %w", method, path, err)
		}
	}
	return nil
}
