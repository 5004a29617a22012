package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoller_RunsUntilCancelled(t *testing.T) {
	var calls atomic.Int64
	p := New(Config{Name: "test", Interval: 5 * time.Millisecond, Logger: quietLogger()}, func(context.Context) error {
		calls.Add(1)
		return errors.New("transient")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int64(0), p.Skipped())
	assert.Equal(t, calls.Load(), p.Runs())
}

func TestPoller_SkipsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int64
	p := New(Config{Interval: 2 * time.Millisecond, Logger: quietLogger()}, func(ctx context.Context) error {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return p.Skipped() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())

	close(release)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestPoller_Immediate(t *testing.T) {
	ran := make(chan struct{}, 1)
	p := New(Config{Interval: time.Hour, Immediate: true, Logger: quietLogger()}, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("immediate run did not happen")
	}
}

func TestPoller_JitterBounds(t *testing.T) {
	p := New(Config{Interval: time.Second, Jitter: 500 * time.Millisecond}, nil)
	for i := 0; i < 100; i++ {
		d := p.next()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1500*time.Millisecond)
	}

	p.rnd = func(n int64) int64 { return n - 1 }
	assert.Equal(t, 1500*time.Millisecond-1, p.next())
}

func TestNew_DefaultInterval(t *testing.T) {
	p := New(Config{}, nil)
	assert.Equal(t, 5*time.Second, p.cfg.Interval)
	assert.Equal(t, 5*time.Second, p.next())
}
