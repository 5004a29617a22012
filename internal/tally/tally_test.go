package tally

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctoring/internal/proctor"
	"proctoring/internal/queue"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Incr(ctx, "s1", "focus-loss"))
	require.NoError(t, m.Incr(ctx, "s1", "focus-loss"))
	require.NoError(t, m.Incr(ctx, "s1", "copy-attempt"))

	sum, err := m.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"focus-loss": 2, "copy-attempt": 1}, sum)

	empty, err := m.Summary(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, m.Reset(ctx))
	sum, err = m.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, sum)
}

func TestConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(8)
	m := NewMemory()
	publish := func(evt proctor.ActivityEvent) {
		body, err := json.Marshal(evt)
		require.NoError(t, err)
		require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeActivity, Body: body}))
	}
	publish(proctor.ActivityEvent{ID: "e1", StudentID: "s1", Type: "focus-loss"})
	require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeActivity, Body: json.RawMessage(`"nope"`)}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: "other", Body: json.RawMessage(`{}`)}))
	publish(proctor.ActivityEvent{ID: "e2", StudentID: "s1", Type: "focus-loss"})

	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, q, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	assert.Eventually(t, func() bool {
		sum, _ := m.Summary(ctx, "s1")
		return sum["focus-loss"] == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
