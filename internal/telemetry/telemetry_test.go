package telemetry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lunasherpa/luna/internal/hooks"
	"github.com/lunasherpa/luna/internal/llm"
	"github.com/lunasherpa/luna/internal/logging"
	"github.com/lunasherpa/luna/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// memSink collects flushed events.
type memSink struct {
	mu     sync.Mutex
	events []store.Event
	err    error
}

func (m *memSink) Append(events []store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *memSink) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Name
	}
	return out
}

func TestDisabledIsNoop(t *testing.T) {
	s := Disabled()
	assert.False(t, s.Enabled())
	s.TrackEvent("x", nil)
	s.TrackException(errors.New("boom"), nil)
	s.TrackMediaEvent("processed", "video", nil)
	assert.Zero(t, s.Pending())
	assert.NoError(t, s.Flush())
	assert.NoError(t, s.Close())

	var nilService *Service
	assert.False(t, nilService.Enabled())
	assert.Zero(t, nilService.Pending())
}

func TestTrackEventBuffersUntilFlush(t *testing.T) {
	sink := &memSink{}
	s := New(sink, silentLog())

	s.TrackEvent("CommandExecuted", map[string]string{"command": "ask"})
	assert.Equal(t, 1, s.Pending())
	assert.Empty(t, sink.names())

	require.NoError(t, s.Flush())
	assert.Zero(t, s.Pending())
	require.Equal(t, []string{"CommandExecuted"}, sink.names())
	assert.Equal(t, "ask", sink.events[0].Properties["command"])
	assert.Equal(t, store.KindEvent, sink.events[0].Kind)
	assert.False(t, sink.events[0].CreatedAt.IsZero())
}

func TestAutoFlushAtThreshold(t *testing.T) {
	sink := &memSink{}
	s := New(sink, silentLog())
	for i := 0; i < flushThreshold; i++ {
		s.TrackEvent(fmt.Sprintf("e%d", i), nil)
	}
	assert.Len(t, sink.names(), flushThreshold)
	assert.Zero(t, s.Pending())
}

func TestFlushFailureKeepsEvents(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	s := New(sink, silentLog())
	s.TrackEvent("a", nil)

	require.Error(t, s.Flush())
	assert.Equal(t, 1, s.Pending())

	sink.err = nil
	require.NoError(t, s.Flush())
	assert.Equal(t, []string{"a"}, sink.names())
}

func TestTrackException(t *testing.T) {
	sink := &memSink{}
	s := New(sink, silentLog())

	err := fmt.Errorf("agent researcher: %w", &llm.RemoteServiceError{Service: "xai", Code: 429, Message: "slow down"})
	s.TrackException(err, map[string]string{"command": "askTeam"})
	s.TrackException(nil, nil)
	require.NoError(t, s.Flush())

	require.Len(t, sink.events, 1)
	e := sink.events[0]
	assert.Equal(t, store.KindException, e.Kind)
	assert.Equal(t, "429", e.Properties["statusCode"])
	assert.Equal(t, "RemoteServiceError", e.Properties["errorType"])
	assert.Equal(t, "askTeam", e.Properties["command"])
	assert.Contains(t, e.Properties["message"], "slow down")
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "AbortedError", errorType(&llm.AbortedError{Cause: context.Canceled}))
	assert.Equal(t, "MissingCredentialError", errorType(&llm.MissingCredentialError{}))
	assert.Equal(t, "errors.errorString", errorType(errors.New("x")))
}

func TestTrackMediaEvent(t *testing.T) {
	sink := &memSink{}
	s := New(sink, silentLog())

	s.TrackMediaEvent("processed", "video", map[string]string{"command": "processVideo"})
	require.NoError(t, s.Flush())

	require.Len(t, sink.events, 1)
	assert.Equal(t, "MediaProcessed", sink.events[0].Name)
	assert.Equal(t, "video", sink.events[0].Properties["mediaType"])
	assert.Equal(t, "processVideo", sink.events[0].Properties["command"])
}

func TestCloseStopsRecording(t *testing.T) {
	sink := &memSink{}
	s := New(sink, silentLog())
	s.TrackEvent("before", nil)
	require.NoError(t, s.Close())
	s.TrackEvent("after", nil)
	require.NoError(t, s.Flush())
	assert.Equal(t, []string{"before"}, sink.names())
}

func TestSubscribeTranslatesHooks(t *testing.T) {
	sink := &memSink{}
	s := New(sink, silentLog())
	h := hooks.NewManager(silentLog())
	s.Subscribe(h)

	ctx := context.Background()
	h.Emit(ctx, hooks.EventCommandExecuted, map[string]any{"command": "ask"})
	h.Emit(ctx, hooks.EventRoundStart, map[string]any{"roundId": "r"})
	h.Emit(ctx, hooks.EventRoundComplete, map[string]any{"backend": "xai", "agentCount": 4, "model": "grok"})
	h.Emit(ctx, hooks.EventRoundComplete, map[string]any{"backend": "demo", "agentCount": 4})
	h.Emit(ctx, hooks.EventRoundFailed, map[string]any{"error": "xai: HTTP 500", "statusCode": 500, "stage": "fan-out"})
	h.Emit(ctx, hooks.EventMediaProcessed, map[string]any{"event": "generated", "mediaType": "audio"})
	h.Emit(ctx, hooks.EventBuildCreated, map[string]any{"buildId": "b-1"})
	require.NoError(t, s.Flush())

	assert.Equal(t, []string{"CommandExecuted", "ApiCallSuccess", "ApiCallFailed", "MediaGenerated", "BuildCreated"}, sink.names())
	assert.Equal(t, "4", sink.events[1].Properties["agentCount"])
	assert.Equal(t, "500", sink.events[2].Properties["statusCode"])
	assert.Equal(t, "xai: HTTP 500", sink.events[2].Properties["errorMessage"])
}

func TestOpenWritesToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	s, err := Open(path, true, silentLog())
	require.NoError(t, err)
	s.TrackEvent("CommandExecuted", map[string]string{"command": "agents"})
	require.NoError(t, s.Close())

	db, err := store.Open(path, silentLog())
	require.NoError(t, err)
	defer db.Close()

	events, err := store.NewEventStore(db).Recent(10, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "CommandExecuted", events[0].Name)
	assert.Equal(t, "ExtensionActivated", events[1].Name)
}

func TestOpenDisabledSkipsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never", "telemetry.db")
	s, err := Open(path, false, silentLog())
	require.NoError(t, err)
	assert.False(t, s.Enabled())
	assert.NoFileExists(t, path)
}

func TestTruncateAndCapitalize(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab", truncate("ab", 3))
	assert.Equal(t, "Processed", capitalize("processed"))
	assert.Equal(t, "", capitalize(""))
}
