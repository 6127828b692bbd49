package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/aretw0/tendril/pkg/domain"
)

// Output formats for PrintMethods.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// PrintMethods writes the command surface to w. FormatText renders the
// Markdown table for a terminal.
func PrintMethods(w io.Writer, methods []domain.MethodInfo, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(domain.Methods(methods))
	case FormatMarkdown:
		_, err := io.WriteString(w, tui.MethodsMarkdown(methods))
		return err
	case FormatText:
		out, err := tui.NewRenderer()(tui.MethodsMarkdown(methods))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}
	return fmt.Errorf("unknown format %q (want text, markdown or json)", format)
}
