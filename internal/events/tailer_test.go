package events

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailerEmitsExistingEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "%1.jsonl")
	line := `{"type":"session_start","timestamp":"2026-01-01T00:00:00Z","sessionId":"s1","cwd":"/repo","paneId":"%1"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	tailer, err := New(DefaultConfig(dir))
	require.NoError(t, err)
	defer tailer.Stop()

	out, err := tailer.Start()
	require.NoError(t, err)

	select {
	case ev := <-out:
		assert.Equal(t, TypeSessionStart, ev.Type)
		assert.Equal(t, "s1", ev.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for existing event")
	}
}

func TestTailerEmitsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "%2.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	tailer, err := New(Config{Dir: dir, DebounceDur: 10 * time.Millisecond})
	require.NoError(t, err)
	defer tailer.Stop()

	out, err := tailer.Start()
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"type":"tool_call","timestamp":"2026-01-01T00:00:01Z","sessionId":"s2","cwd":"/repo","toolName":"Bash"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case ev := <-out:
		assert.Equal(t, TypeToolCall, ev.Type)
		assert.Equal(t, "Bash", ev.ToolName)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for appended event")
	}
}

func TestTailerSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "%3.jsonl")
	content := "not json\n" + `{"type":"session_end","timestamp":"2026-01-01T00:00:02Z","sessionId":"s3","cwd":"/repo","exitReason":"done"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tailer, err := New(DefaultConfig(dir))
	require.NoError(t, err)
	defer tailer.Stop()

	out, err := tailer.Start()
	require.NoError(t, err)

	select {
	case ev := <-out:
		assert.Equal(t, TypeSessionEnd, ev.Type)
		assert.Equal(t, "done", ev.ExitReason)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event after malformed line")
	}
}
