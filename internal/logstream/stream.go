// Package logstream keeps a bounded in-memory ring of recent log lines so
// the API can mirror the request/response log live, the way the original
// desktop tool showed it on screen.
package logstream

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Line is one entry of the live log.
type Line struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// Stream is a fixed-capacity ring buffer of log lines. Writers never block;
// when the ring is full the oldest line is dropped.
type Stream struct {
	mu    sync.RWMutex
	lines []Line
	start int
	count int
}

// New creates a stream holding up to capacity lines.
func New(capacity int) *Stream {
	if capacity < 1 {
		capacity = 1
	}
	return &Stream{lines: make([]Line, capacity)}
}

// Append adds a line, evicting the oldest when full.
func (s *Stream) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := (s.start + s.count) % len(s.lines)
	s.lines[idx] = Line{Timestamp: time.Now(), Text: text}

	if s.count < len(s.lines) {
		s.count++
	} else {
		s.start = (s.start + 1) % len(s.lines)
	}
}

// Appendf formats and appends a line.
func (s *Stream) Appendf(format string, args ...interface{}) {
	s.Append(fmt.Sprintf(format, args...))
}

// Snapshot returns the buffered lines, oldest first.
func (s *Stream) Snapshot() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Line, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.lines[(s.start+i)%len(s.lines)]
	}
	return out
}

// Len returns the number of buffered lines.
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Export writes the buffered lines to a plain text file, one per line,
// through a temp file renamed into place.
func (s *Stream) Export(path string) error {
	snapshot := s.Snapshot()

	var b strings.Builder
	for _, line := range snapshot {
		b.WriteString(line.Timestamp.Format(time.RFC3339))
		b.WriteString(" ")
		b.WriteString(line.Text)
		b.WriteString("\n")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".logstream-*")
	if err != nil {
		return fmt.Errorf("failed to create temp log file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write log file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close log file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move log file into place: %w", err)
	}
	return nil
}
