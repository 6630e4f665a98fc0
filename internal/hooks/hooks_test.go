package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lunasherpa/luna/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var called bool
	m.On(EventRoundStart, "test", func(_ context.Context, p Payload) error {
		called = true
		assert.Equal(t, EventRoundStart, p.Event)
		assert.False(t, p.At.IsZero())
		return nil
	})

	m.Emit(context.Background(), EventRoundStart, nil)
	assert.True(t, called)
}

func TestManager_Emit_MultipleHandlers(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventAgentResponded, "first", func(_ context.Context, _ Payload) error {
		order = append(order, "first")
		return nil
	})
	m.On(EventAgentResponded, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventAgentResponded, nil)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManager_Emit_WithData(t *testing.T) {
	m := testManager()

	var gotData map[string]any
	m.On(EventAgentResponded, "test", func(_ context.Context, p Payload) error {
		gotData = p.Data
		return nil
	})

	m.Emit(context.Background(), EventAgentResponded, map[string]any{
		"agent": "researcher",
		"index": 1,
	})

	assert.Equal(t, "researcher", gotData["agent"])
	assert.Equal(t, 1, gotData["index"])
}

func TestManager_Emit_HandlerError(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventRoundFailed, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventRoundFailed, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	m.Emit(context.Background(), EventRoundFailed, nil)
	assert.True(t, secondCalled)
}

func TestManager_Emit_NoHandlers(t *testing.T) {
	m := testManager()
	m.Emit(context.Background(), EventGatewayStop, nil)
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	m.Emit(context.Background(), EventRoundStart, nil)
	m.EmitAsync(context.Background(), EventRoundStart, nil)
}

func TestManager_OnAll(t *testing.T) {
	m := testManager()

	var order []string
	m.OnAll("catchall", func(_ context.Context, p Payload) error {
		order = append(order, "all:"+p.Event)
		return nil
	})
	m.On(EventRoundComplete, "specific", func(_ context.Context, p Payload) error {
		order = append(order, "specific:"+p.Event)
		return nil
	})

	m.Emit(context.Background(), EventRoundComplete, nil)
	m.Emit(context.Background(), EventBuildCreated, nil)

	assert.Equal(t, []string{
		"specific:round_complete",
		"all:round_complete",
		"all:build_created",
	}, order)
	assert.Equal(t, 1, m.Count(EventRoundComplete))
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var callCount int
	m.On(EventRoundStart, "removable", func(_ context.Context, _ Payload) error {
		callCount++
		return nil
	})

	m.Emit(context.Background(), EventRoundStart, nil)
	assert.Equal(t, 1, callCount)

	m.Off(EventRoundStart, "removable")
	m.Emit(context.Background(), EventRoundStart, nil)
	assert.Equal(t, 1, callCount)
}

func TestManager_Off_KeepsOthers(t *testing.T) {
	m := testManager()

	var keepCalled int
	m.On(EventRoundStart, "remove-me", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventRoundStart, "keep-me", func(_ context.Context, _ Payload) error {
		keepCalled++
		return nil
	})

	m.Off(EventRoundStart, "remove-me")
	m.Emit(context.Background(), EventRoundStart, nil)
	assert.Equal(t, 1, keepCalled)
}

func TestManager_EmitAsync(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	handler := func(_ context.Context, _ Payload) error {
		count.Add(1)
		wg.Done()
		return nil
	}
	m.On(EventMediaProcessed, "async1", handler)
	m.On(EventMediaProcessed, "async2", handler)
	m.OnAll("async-all", handler)

	m.EmitAsync(context.Background(), EventMediaProcessed, nil)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}

	assert.Equal(t, int32(3), count.Load())
}

func TestManager_Count(t *testing.T) {
	m := testManager()

	assert.Equal(t, 0, m.Count(EventRoundStart))

	m.On(EventRoundStart, "h1", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 1, m.Count(EventRoundStart))

	m.On(EventRoundStart, "h2", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 2, m.Count(EventRoundStart))
}

func TestManager_Events(t *testing.T) {
	m := testManager()

	m.On(EventRoundStart, "h1", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventAgentResponded, "h2", func(_ context.Context, _ Payload) error { return nil })

	assert.Equal(t, []string{EventAgentResponded, EventRoundStart}, m.Events())
}

func TestAllEvents_NotEmpty(t *testing.T) {
	require.NotEmpty(t, AllEvents)
	assert.Contains(t, AllEvents, EventRoundStart)
	assert.Contains(t, AllEvents, EventCommandExecuted)
}
