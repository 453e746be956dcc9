package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer[int](3)
	assert.Empty(t, rb.GetAll())

	rb.Push(1)
	rb.Push(2)
	assert.Equal(t, []int{1, 2}, rb.GetAll())

	rb.Push(3)
	rb.Push(4)
	assert.Equal(t, []int{2, 3, 4}, rb.GetAll())
	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, []int{3, 4}, rb.Last(2))
	assert.Equal(t, []int{2, 3, 4}, rb.Last(10))

	rb.Clear()
	assert.Equal(t, 0, rb.Len())
	assert.Empty(t, rb.GetAll())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_RecentEntries(t *testing.T) {
	var out bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Out: &out, RecentSize: 10})
	defer l.Close()

	comp := l.WithComponent("linker")
	comp.Debug().Msg("pruned")
	comp.Warn().Str("show", "Beta").Msg("show not found")

	assert.Contains(t, out.String(), `"component":"linker"`)

	entries := l.Recent().Entries(0, "")
	require.Len(t, entries, 2)
	assert.Equal(t, "linker", entries[1].Component)
	assert.Equal(t, "show not found", entries[1].Message)
	assert.Equal(t, "Beta", entries[1].Fields["show"])

	warn := l.Recent().Entries(0, "warn")
	require.Len(t, warn, 1)
	assert.Equal(t, "warn", warn[0].Level)

	assert.Len(t, l.Recent().Entries(1, ""), 1)
}

func TestNew_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var out bytes.Buffer
	l := New(Config{Format: "console", Path: dir, Out: &out})

	l.Info().Msg("hello")
	require.NoError(t, l.Close())

	assert.Equal(t, filepath.Join(dir, FileName), l.FilePath())
	data, err := os.ReadFile(l.FilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestRecentLogs_IgnoresGarbage(t *testing.T) {
	r := NewRecentLogs(0)
	n, err := r.Write([]byte("not json"))
	assert.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Empty(t, r.Entries(0, ""))
}
