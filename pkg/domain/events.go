package domain

import (
	"context"
	"time"
)

// DispatchEvent describes one completed dispatch.
type DispatchEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Function  string        `json:"function"`
	Resolved  bool          `json:"resolved"` // Function named a registered command or introspection.
	SessionID string        `json:"session_id,omitempty"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Hooks defines callbacks for dispatcher observability.
type Hooks struct {
	OnDispatch func(context.Context, *DispatchEvent)
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	if h.OnDispatch == nil {
		return other
	}
	if other.OnDispatch == nil {
		return h
	}
	first, second := h.OnDispatch, other.OnDispatch
	return Hooks{OnDispatch: func(ctx context.Context, e *DispatchEvent) {
		first(ctx, e)
		second(ctx, e)
	}}
}
