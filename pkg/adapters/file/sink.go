// Package file persists replay scripts as plain files, one per session.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/replay"
)

const (
	// DefaultDir is where scripts are written when no directory is configured.
	DefaultDir = "tests"

	filePrefix = "function_calls"
	fileSuffix = ".replay"
)

// ErrInvalidSessionID is returned for IDs that cannot be used in a file name.
var ErrInvalidSessionID = errors.New("session id cannot be used as a file name")

// Sink implements ports.RecordSink with append-only script files.
type Sink struct {
	dir string
	mu  sync.Mutex
}

// NewSink creates a sink writing under dir (DefaultDir if empty).
// The directory is created on first append.
func NewSink(dir string) *Sink {
	if dir == "" {
		dir = DefaultDir
	}
	return &Sink{dir: dir}
}

// Dir returns the output directory.
func (s *Sink) Dir() string {
	return s.dir
}

// Path returns the script file for sessionID.
func (s *Sink) Path(sessionID string) (string, error) {
	if sessionID == "" || sessionID == "." || sessionID == ".." ||
		strings.ContainsAny(sessionID, `/\`+"\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return filepath.Join(s.dir, filePrefix+sessionID+fileSuffix), nil
}

// Append writes one statement to the end of the session's script.
func (s *Sink) Append(ctx context.Context, rec domain.Record) error {
	path, err := s.Path(rec.SessionID)
	if err != nil {
		return err
	}
	line, err := replay.Format(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create recording dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write recording: %w", err)
	}
	return f.Close()
}

// Load parses the session's script. A missing script yields no records.
func (s *Sink) Load(ctx context.Context, sessionID string) ([]domain.Record, error) {
	path, err := s.Path(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	records, err := replay.ReadScript(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for i := range records {
		records[i].SessionID = sessionID
	}
	return records, nil
}

// Sessions lists the sessions that have a script, sorted.
func (s *Sink) Sessions(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	sessions := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), filePrefix), fileSuffix)
		if name != "" {
			sessions = append(sessions, name)
		}
	}
	sort.Strings(sessions)
	return sessions, nil
}
