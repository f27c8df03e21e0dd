package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	logger, cleanup, err := Setup(Config{
		Level:     "info",
		FilePath:  path,
		MaxSizeMB: 10,
		MaxFiles:  5,
	})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("vault synced", "nodes", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"vault synced"`)
	assert.Contains(t, string(data), `"nodes":3`)
}

func TestSetup_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path, MaxSizeMB: 10, MaxFiles: 5})
	require.NoError(t, err)
	defer cleanup()

	logger.Debug("should not appear")
	logger.Warn("should appear")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "should appear")
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]bool{"debug": true, "info": true, "WARN": true, "error": true, "bogus": true}
	for level := range cases {
		_ = LevelFromString(level) // never panics, always resolves to a valid slog.Level
	}
	assert.Equal(t, LevelFromString("warning"), LevelFromString("warn"))
}

func TestFindLogFile_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.log")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	found, err := FindLogFile(path, dir)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFindLogFile_ExplicitMissing(t *testing.T) {
	_, err := FindLogFile("/nonexistent/custom.log", t.TempDir())
	require.Error(t, err)
}

func TestFindLogFile_FallsBackToLogDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLogDir(dir))
	require.NoError(t, os.WriteFile(LogPath(dir), []byte("{}\n"), 0o644))

	found, err := FindLogFile("", dir)
	require.NoError(t, err)
	assert.Equal(t, LogPath(dir), found)
}

func TestFindLogFile_NothingFound(t *testing.T) {
	_, err := FindLogFile("", t.TempDir())
	require.Error(t, err)
}

func TestEnsureLogDir_CreatesNested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "logs")
	require.NoError(t, EnsureLogDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestViewer_Tail_ParsesAndFiltersByLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")
	content := `{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"one"}
{"time":"2026-01-01T00:00:01Z","level":"DEBUG","msg":"two"}
{"time":"2026-01-01T00:00:02Z","level":"ERROR","msg":"three"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := NewViewer(ViewerConfig{Level: "info", NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Msg)
	assert.Equal(t, "three", entries[1].Msg)
}

func TestViewer_Tail_PatternFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")
	content := `{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"link integrity violation"}
{"time":"2026-01-01T00:00:01Z","level":"INFO","msg":"sync complete"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile("integrity"), NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Msg, "integrity")
}

func TestViewer_Tail_LimitsToLastN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")
	var content string
	for i := 0; i < 20; i++ {
		content += `{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"line"}` + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestViewer_Tail_UnparseableLinePassesThroughRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")
	require.NoError(t, os.WriteFile(path, []byte("not json at all\n"), 0o644))

	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsValid)
	assert.Equal(t, "not json at all", entries[0].Raw)
}

func TestViewer_FormatEntry_IncludesAttrs(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entry := LogEntry{
		Time:    time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC),
		Level:   "info",
		Msg:     "node created",
		Attrs:   map[string]interface{}{"id": "abc123"},
		IsValid: true,
	}
	formatted := v.FormatEntry(entry)
	assert.Contains(t, formatted, "node created")
	assert.Contains(t, formatted, "id=abc123")
	assert.Contains(t, formatted, "INFO")
}

func TestViewer_Follow_StreamsNewLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	entries := make(chan LogEntry, 10)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	go func() {
		_ = v.Follow(ctx, path, entries)
	}()

	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"streamed"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case entry := <-entries:
		assert.Equal(t, "streamed", entry.Msg)
	case <-ctx.Done():
		t.Fatal("timed out waiting for streamed entry")
	}
}

func TestRotatingWriter_RotatesBeyondMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	w, err := NewRotatingWriter(path, 0, 3) // maxSizeMB=0 forces rotation on first write
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)

	_, statErr := os.Stat(path + ".1")
	assert.NoError(t, statErr)
}
