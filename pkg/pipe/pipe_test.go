package pipe_test

import (
	"testing"

	"github.com/aretw0/tendril/pkg/pipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe_GetOrDefault(t *testing.T) {
	p := pipe.New(pipe.ScopeSession)

	assert.Nil(t, p.GetOrDefault("1", nil), "empty pipe returns the absence marker")
	assert.Equal(t, "", p.GetOrDefault("1", ""))

	p.Set("1", "from page")
	assert.Equal(t, "from page", p.GetOrDefault("1", nil))
	assert.Equal(t, "from page", p.GetOrDefault("1", ""))
	assert.Equal(t, "explicit", p.GetOrDefault("1", "explicit"))
	assert.Equal(t, 0.0, p.GetOrDefault("1", 0.0), "zero numbers are real values")
}

func TestPipe_SessionScopeIsolates(t *testing.T) {
	p := pipe.New(pipe.ScopeSession)
	p.Set("a", "alpha")
	p.Set("b", "beta")

	assert.Equal(t, "alpha", p.GetOrDefault("a", nil))
	assert.Equal(t, "beta", p.GetOrDefault("b", nil))
	_, ok := p.Get("c")
	assert.False(t, ok)

	p.Reset("a")
	_, ok = p.Get("a")
	assert.False(t, ok)
	assert.Equal(t, "beta", p.GetOrDefault("b", nil))
}

func TestPipe_GlobalScopeShares(t *testing.T) {
	p := pipe.New(pipe.ScopeGlobal)
	p.Set("a", "alpha")
	assert.Equal(t, "alpha", p.GetOrDefault("b", nil))

	p.Set("b", "beta")
	assert.Equal(t, "beta", p.GetOrDefault("a", nil))
}

func TestParseScope(t *testing.T) {
	s, err := pipe.ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, pipe.ScopeSession, s)

	s, err = pipe.ParseScope("global")
	require.NoError(t, err)
	assert.Equal(t, pipe.ScopeGlobal, s)
	assert.Equal(t, "global", s.String())

	_, err = pipe.ParseScope("per-thread")
	assert.Error(t, err)
}
