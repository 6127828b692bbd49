package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
)

// ErrSyntax is returned for lines that are not a valid statement.
var ErrSyntax = errors.New("replay syntax error")

var (
	statement  = regexp.MustCompile(`^([A-Za-z_]\w*)\.([A-Za-z_]\w*)\((.*)\)$`)
	identifier = regexp.MustCompile(`^[A-Za-z_]\w*`)
)

// maxLine bounds a single statement; typed text can be long.
const maxLine = 1 << 20

// Format renders r as one statement, without a trailing newline.
func Format(r domain.Record) (string, error) {
	var b strings.Builder
	b.WriteString(domain.HandleName)
	b.WriteByte('.')
	b.WriteString(r.Command)
	b.WriteByte('(')
	for i, a := range r.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		lit, err := literal(a.Value)
		if err != nil {
			return "", fmt.Errorf("format %s argument %q: %w", r.Command, a.Name, err)
		}
		b.WriteString(a.Name)
		b.WriteByte('=')
		b.WriteString(lit)
	}
	b.WriteByte(')')
	return b.String(), nil
}

func literal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Parse reads one statement. Seq, SessionID and Time are left zero.
func Parse(line string) (domain.Record, error) {
	m := statement.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return domain.Record{}, fmt.Errorf("%w: %q is not a call statement", ErrSyntax, line)
	}
	if m[1] != domain.HandleName {
		return domain.Record{}, fmt.Errorf("%w: unknown handle %q", ErrSyntax, m[1])
	}

	rec := domain.Record{Command: m[2]}
	rest := strings.TrimSpace(m[3])
	for rest != "" {
		name := identifier.FindString(rest)
		if name == "" {
			return domain.Record{}, fmt.Errorf("%w: expected argument name at %q", ErrSyntax, rest)
		}
		rest = strings.TrimLeft(rest[len(name):], " \t")
		if !strings.HasPrefix(rest, "=") {
			return domain.Record{}, fmt.Errorf("%w: expected '=' after %s", ErrSyntax, name)
		}
		rest = strings.TrimLeft(rest[1:], " \t")

		dec := json.NewDecoder(strings.NewReader(rest))
		var v any
		if err := dec.Decode(&v); err != nil {
			return domain.Record{}, fmt.Errorf("%w: argument %s: %v", ErrSyntax, name, err)
		}
		rec.Args = append(rec.Args, domain.Arg{Name: name, Value: v})

		rest = strings.TrimLeft(rest[dec.InputOffset():], " \t")
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return domain.Record{}, fmt.Errorf("%w: expected ',' after argument %s", ErrSyntax, name)
		}
		rest = strings.TrimLeft(rest[1:], " \t")
	}
	return rec, nil
}

// WriteScript renders records, one statement per line.
func WriteScript(w io.Writer, records []domain.Record) error {
	for _, r := range records {
		line, err := Format(r)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// ReadScript parses every statement of a script. Seq is the 1-based statement index.
func ReadScript(r io.Reader) ([]domain.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var records []domain.Record
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rec.Seq = uint64(len(records) + 1)
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
