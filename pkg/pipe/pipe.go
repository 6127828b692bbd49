// Package pipe carries the most recent command result into the next command's
// omitted value parameter.
package pipe

import (
	"fmt"
	"sync"
)

// Scope selects whether sessions share the slot.
type Scope int

const (
	// ScopeSession keeps one slot per session ID.
	ScopeSession Scope = iota
	// ScopeGlobal keeps a single process-wide slot: concurrent sessions
	// observe each other's last value.
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "session"
}

// ParseScope parses "session" or "global". The empty string means ScopeSession.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "session":
		return ScopeSession, nil
	case "global":
		return ScopeGlobal, nil
	}
	return ScopeSession, fmt.Errorf("unknown pipe scope %q (want session or global)", s)
}

// Pipe is the implicit value slot. It is safe for concurrent use.
type Pipe struct {
	mu     sync.Mutex
	scope  Scope
	values map[string]any
}

// New creates an empty pipe.
func New(scope Scope) *Pipe {
	return &Pipe{scope: scope, values: make(map[string]any)}
}

// Scope returns the pipe's scope.
func (p *Pipe) Scope() Scope {
	return p.scope
}

func (p *Pipe) key(session string) string {
	if p.scope == ScopeGlobal {
		return ""
	}
	return session
}

// Set stores value as the current content for session.
func (p *Pipe) Set(session string, value any) {
	p.mu.Lock()
	p.values[p.key(session)] = value
	p.mu.Unlock()
}

// Get returns the current content for session.
func (p *Pipe) Get(session string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[p.key(session)]
	return v, ok
}

// GetOrDefault returns supplied unless it is nil or the empty string,
// in which case the current content (or supplied, if the pipe is empty) is returned.
func (p *Pipe) GetOrDefault(session string, supplied any) any {
	if !absent(supplied) {
		return supplied
	}
	if v, ok := p.Get(session); ok {
		return v
	}
	return supplied
}

// Reset clears the slot of session. With ScopeGlobal it clears the shared slot.
func (p *Pipe) Reset(session string) {
	p.mu.Lock()
	delete(p.values, p.key(session))
	p.mu.Unlock()
}

func absent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
