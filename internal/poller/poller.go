// Package poller runs a pull job on a jittered interval without ever
// overlapping two runs.
package poller

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"proctoring/internal/metrics"
)

// Job is one poll. Its context is cancelled when the poller stops.
type Job func(ctx context.Context) error

// Config configures a Poller.
type Config struct {
	Name     string
	Interval time.Duration
	// Jitter adds a random delay in [0, Jitter) to every interval.
	Jitter time.Duration
	// Immediate runs the job once before the first interval elapses.
	Immediate bool
	Logger    *slog.Logger
}

// Poller triggers a Job periodically. A tick that fires while the previous
// run is still in flight is dropped, not queued.
type Poller struct {
	cfg      Config
	job      Job
	inFlight atomic.Bool
	skipped  atomic.Int64
	runs     atomic.Int64
	rnd      func(n int64) int64
	wg       sync.WaitGroup
}

// New creates a poller. Interval defaults to 5s.
func New(cfg Config, job Job) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{cfg: cfg, job: job, rnd: rand.Int63n}
}

// Skipped returns how many ticks were dropped because a run was in flight.
func (p *Poller) Skipped() int64 { return p.skipped.Load() }

// Runs returns how many runs were started.
func (p *Poller) Runs() int64 { return p.runs.Load() }

func (p *Poller) next() time.Duration {
	d := p.cfg.Interval
	if p.cfg.Jitter > 0 {
		d += time.Duration(p.rnd(int64(p.cfg.Jitter)))
	}
	return d
}

// Run blocks until ctx is cancelled, then waits for an in-flight run to return.
func (p *Poller) Run(ctx context.Context) {
	defer p.wg.Wait()
	if p.cfg.Immediate {
		p.trigger(ctx)
	}
	timer := time.NewTimer(p.next())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.trigger(ctx)
			timer.Reset(p.next())
		}
	}
}

// trigger starts a run unless one is already in flight.
func (p *Poller) trigger(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		metrics.PollSkipped.Inc()
		p.cfg.Logger.Debug("poll skipped, previous run in flight", "poller", p.cfg.Name)
		return
	}
	p.runs.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		if err := p.job(ctx); err != nil && ctx.Err() == nil {
			p.cfg.Logger.Warn("poll failed", "poller", p.cfg.Name, "err", err)
		}
	}()
}
