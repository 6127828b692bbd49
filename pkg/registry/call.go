package registry

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Call is a command invocation with its arguments bound to parameter names.
type Call struct {
	Command   *Command
	SessionID string
	Args      map[string]any

	yielded  any
	hasYield bool
}

// NewCall creates a call for cmd.
func NewCall(cmd *Command, sessionID string, args map[string]any) *Call {
	if args == nil {
		args = make(map[string]any)
	}
	return &Call{Command: cmd, SessionID: sessionID, Args: args}
}

// Ordered returns the bound arguments in declaration order.
func (c *Call) Ordered() []domain.Arg {
	out := make([]domain.Arg, 0, len(c.Command.Params))
	for _, p := range c.Command.Params {
		if v, ok := c.Args[p.Name]; ok {
			out = append(out, domain.Arg{Name: p.Name, Value: v})
		}
	}
	return out
}

// Yield sets the value the implicit pipe receives instead of the result.
func (c *Call) Yield(v any) {
	c.yielded = v
	c.hasYield = true
}

// Yielded returns the value passed to Yield, if any.
func (c *Call) Yielded() (any, bool) {
	return c.yielded, c.hasYield
}

// String returns the named argument formatted as a string.
func (c *Call) String(name string) string {
	switch v := c.Args[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Seconds interprets the named argument as a number of seconds.
func (c *Call) Seconds(name string) (time.Duration, error) {
	var secs float64
	switch v := c.Args[name].(type) {
	case float64:
		secs = v
	case int:
		secs = float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number of seconds, got %q", domain.ErrInvalidArguments, name, v)
		}
		secs = f
	default:
		return 0, fmt.Errorf("%w: %s must be a number of seconds", domain.ErrInvalidArguments, name)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Decode copies the bound arguments into out, a pointer to a struct tagged
// with mapstructure names.
func (c *Call) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(c.Args); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArguments, err)
	}
	return nil
}
