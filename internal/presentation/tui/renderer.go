package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// MethodsMarkdown formats the command surface as a Markdown table.
func MethodsMarkdown(methods []domain.MethodInfo) string {
	var b strings.Builder
	b.WriteString("# Commands\n\n")
	b.WriteString("| name | args | doc |\n|---|---|---|\n")
	for _, m := range methods {
		args := "-"
		if len(m.Args) > 0 {
			args = "`" + strings.Join(m.Args, "`, `") + "`"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", m.Name, args, escapeCell(m.Doc))
	}
	fmt.Fprintf(&b, "\nEvery command also accepts `%s` (default `%s`).\n", domain.SessionParam, domain.DefaultSessionID)
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}
