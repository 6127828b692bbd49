package dispatch

import (
	"fmt"
	"sort"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/pipe"
	"github.com/aretw0/tendril/pkg/registry"
)

// bind maps positional and keyword arguments onto cmd's parameters.
// Keyword arguments win over positional ones. Omitted optional parameters
// take their default, as do optional ones passed as null. Piped parameters
// fall back to the pipe's content.
func bind(cmd *registry.Command, p *pipe.Pipe, sessionID string, args []any, kwargs map[string]any) (map[string]any, error) {
	if len(args) > len(cmd.Params) {
		return nil, fmt.Errorf("%w: %s takes %d positional arguments but %d were given",
			domain.ErrInvalidArguments, cmd.Name, len(cmd.Params), len(args))
	}

	declared := make(map[string]bool, len(cmd.Params))
	for _, prm := range cmd.Params {
		declared[prm.Name] = true
	}

	bound := make(map[string]any, len(cmd.Params))
	for i, v := range args {
		bound[cmd.Params[i].Name] = v
	}

	names := make([]string, 0, len(kwargs))
	for k := range kwargs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if !declared[k] {
			return nil, fmt.Errorf("%w: unexpected argument %q", domain.ErrInvalidArguments, k)
		}
		bound[k] = kwargs[k]
	}

	for _, prm := range cmd.Params {
		v, ok := bound[prm.Name]
		if prm.Piped && (!ok || v == nil || v == "") {
			if piped := p.GetOrDefault(sessionID, v); piped != nil && piped != "" {
				bound[prm.Name] = piped
				continue
			}
		}
		if ok && (v != nil || !prm.Optional) {
			continue
		}
		// An explicit null on an optional parameter reads as omitted.
		delete(bound, prm.Name)
		if !prm.Optional {
			return nil, fmt.Errorf("%w: missing required argument %q", domain.ErrInvalidArguments, prm.Name)
		}
		if prm.Default != nil {
			bound[prm.Name] = prm.Default
		}
	}
	return bound, nil
}
