package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// ErrSealed is returned by Register once the registry has been sealed.
var ErrSealed = errors.New("registry is sealed")

// Handler implements a command. It receives the bound call and returns the
// result sent back to the caller.
type Handler func(ctx context.Context, call *Call) (any, error)

// Param declares one command parameter.
type Param struct {
	Name     string
	Optional bool
	Default  any  // Used when an optional parameter is omitted.
	Piped    bool // Filled from the implicit value pipe when omitted or empty.
}

// Command is the static descriptor of an invocable operation.
type Command struct {
	Name    string
	Params  []Param
	Doc     string
	Handler Handler

	// Produces marks commands whose outcome feeds the implicit value pipe.
	Produces bool

	// Unrecorded commands are not appended to the replay script.
	Unrecorded bool
}

// ParamNames returns the declared parameter names in order.
func (c *Command) ParamNames() []string {
	names := make([]string, len(c.Params))
	for i, p := range c.Params {
		names[i] = p.Name
	}
	return names
}

// Registry manages the available commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	sealed   bool
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// Register adds a command to the registry.
// Names are case-sensitive and must be unique.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return errors.New("command name cannot be empty")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q has no handler", cmd.Name)
	}
	seen := make(map[string]bool, len(cmd.Params))
	for _, p := range cmd.Params {
		if p.Name == domain.SessionParam {
			return fmt.Errorf("command %q must not declare %s", cmd.Name, domain.SessionParam)
		}
		if seen[p.Name] {
			return fmt.Errorf("command %q declares %q twice", cmd.Name, p.Name)
		}
		seen[p.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %q: %w", cmd.Name, ErrSealed)
	}
	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("command %q already registered", cmd.Name)
	}
	c := cmd
	c.Params = append([]Param(nil), cmd.Params...)
	r.commands[cmd.Name] = &c
	return nil
}

// MustRegister is Register for start-up tables; it panics on error.
func (r *Registry) MustRegister(cmds ...Command) {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
}

// Seal makes the registry immutable.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Resolve looks up a command by exact name.
func (r *Registry) Resolve(name string) (*Command, error) {
	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.UnknownFunctionError{Name: name}
	}
	return cmd, nil
}

// Describe lists every command, introspection included, sorted by name.
func (r *Registry) Describe() []domain.MethodInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]domain.MethodInfo, 0, len(r.commands)+1)
	for _, cmd := range r.commands {
		methods = append(methods, domain.MethodInfo{
			Name: cmd.Name,
			Args: cmd.ParamNames(),
			Doc:  cmd.Doc,
		})
	}
	if _, shadowed := r.commands[domain.IntrospectionFunction]; !shadowed {
		methods = append(methods, domain.MethodInfo{
			Name: domain.IntrospectionFunction,
			Args: []string{},
			Doc:  "Lists every available method with its arguments and documentation.",
		})
	}

	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })
	return methods
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
