// Package janitor implements background cleanup of expired shares. It runs
// independently from the request path so sweeping cadence never blocks
// uploads or redemptions; the store's conditional operations keep the two
// paths safe to interleave.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Store abstracts the single store operation the Janitor requires.
type Store interface {
	// DeleteExpired deletes shares whose expiry is <= t and returns the
	// number removed.
	DeleteExpired(ctx context.Context, t time.Time) (int, error)
}

// Recorder receives counter and summary observations from sweep cycles.
// Satisfied by *metrics.Manager; nil disables reporting.
type Recorder interface {
	Inc(name string, delta int64)
	Observe(name string, value int64)
}

// Metric names reported per cycle.
const (
	CounterSharesExpiredDeleted   = "shares_expired_deleted_total"
	SummaryJanitorDeletedPerCycle = "janitor_deleted_per_cycle"
)

// Config holds tunables for the Janitor.
type Config struct {
	Interval time.Duration // how often a sweep cycle begins
	Logger   *slog.Logger  // optional logger (defaults to slog.Default())
	Recorder Recorder      // optional metric sink
}

// stats accumulates in-memory counters for operational insight.
type stats struct {
	mu                  sync.Mutex
	Cycles              uint64
	Deleted             uint64
	CycleLastDurationMS int64
}

// StatsView is a read-only snapshot safe to copy.
type StatsView struct {
	Cycles              uint64
	Deleted             uint64
	CycleLastDurationMS int64
}

func (s *stats) recordCycle(deleted int, d time.Duration) {
	s.mu.Lock()
	s.Cycles++
	if deleted > 0 {
		s.Deleted += uint64(deleted)
	}
	s.CycleLastDurationMS = d.Milliseconds()
	s.mu.Unlock()
}

// Janitor encapsulates the background sweep loop.
type Janitor struct {
	store Store
	cfg   Config
	stats *stats

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Janitor.
func New(store Store, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		store:  store,
		cfg:    cfg,
		stats:  &stats{},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the janitor loop in a new goroutine.
func (j *Janitor) Start(ctx context.Context) {
	if j.ticker != nil {
		return
	} // already started
	j.ticker = time.NewTicker(j.cfg.Interval)
	go j.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (j *Janitor) Stop() {
	j.once.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

// StatsSnapshot returns a copy of current sweep stats.
func (j *Janitor) StatsSnapshot() StatsView {
	j.stats.mu.Lock()
	defer j.stats.mu.Unlock()
	return StatsView{
		Cycles:              j.stats.Cycles,
		Deleted:             j.stats.Deleted,
		CycleLastDurationMS: j.stats.CycleLastDurationMS,
	}
}

func (j *Janitor) loop(ctx context.Context) {
	log := j.cfg.Logger.With("domain", "janitor")
	defer func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stop", "reason", "context_cancel")
			return
		case <-j.stopCh:
			log.Info("janitor stop", "reason", "stop_signal")
			return
		case <-j.ticker.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle performs one expiry sweep.
func (j *Janitor) runCycle(ctx context.Context) {
	start := time.Now()
	log := j.cfg.Logger.With("domain", "janitor", "action", "cycle")
	count, err := j.store.DeleteExpired(ctx, time.Now().UTC())
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("sweep", "error", err)
	}
	j.stats.recordCycle(count, time.Since(start))
	if j.cfg.Recorder != nil {
		if count > 0 {
			j.cfg.Recorder.Inc(CounterSharesExpiredDeleted, int64(count))
		}
		j.cfg.Recorder.Observe(SummaryJanitorDeletedPerCycle, int64(count))
	}
	log.Info("cycle complete", "deleted", count, "ms", time.Since(start).Milliseconds())
}
