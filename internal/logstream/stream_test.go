package logstream

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamAppendAndSnapshot(t *testing.T) {
	s := New(10)
	s.Append("GET /ms/IT/vat/05159640266")
	s.Appendf("200 valid=%t", true)

	lines := s.Snapshot()
	require.Len(t, lines, 2)
	assert.Equal(t, "GET /ms/IT/vat/05159640266", lines[0].Text)
	assert.Equal(t, "200 valid=true", lines[1].Text)
	assert.False(t, lines[0].Timestamp.IsZero())
}

func TestStreamEvictsOldestWhenFull(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.Appendf("line %d", i)
	}

	lines := s.Snapshot()
	require.Len(t, lines, 3)
	assert.Equal(t, "line 2", lines[0].Text)
	assert.Equal(t, "line 4", lines[2].Text)
	assert.Equal(t, 3, s.Len())
}

func TestStreamConcurrentAppend(t *testing.T) {
	s := New(100)
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				s.Appendf("writer %d line %d", id, j)
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	assert.Equal(t, 100, s.Len())
}

func TestStreamExport(t *testing.T) {
	s := New(10)
	s.Append("first")
	s.Append("second")

	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, s.Export(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], " first"))
	assert.True(t, strings.HasSuffix(lines[1], " second"))
}

func TestStreamExportLeavesNoTempOnFailure(t *testing.T) {
	s := New(10)
	s.Append("line")

	dir := t.TempDir()
	err := s.Export(filepath.Join(dir, "no-such-dir", "log.txt"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
