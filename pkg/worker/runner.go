package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/pkg/logger"
)

// Worker interface that background workers should implement
type Worker interface {
	// Name returns worker name for logging
	Name() string
	// Run executes one iteration of work
	Run(ctx context.Context) error
}

// PeriodicWorker runs a Worker on a fixed interval until its context ends
type PeriodicWorker struct {
	worker   Worker
	interval time.Duration
	done     chan struct{}
	runs     int
	mu       sync.Mutex
}

// NewPeriodicWorker creates new periodic worker
func NewPeriodicWorker(worker Worker, interval time.Duration) *PeriodicWorker {
	return &PeriodicWorker{
		worker:   worker,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs the first iteration immediately, then one per interval
func (pw *PeriodicWorker) Start(ctx context.Context) {
	go pw.loop(ctx)
}

// Wait blocks until the worker exits or timeout elapses and reports
// whether it exited
func (pw *PeriodicWorker) Wait(timeout time.Duration) bool {
	select {
	case <-pw.done:
		logger.Info("✅ Worker stopped gracefully",
			zap.String("worker", pw.worker.Name()),
		)
		return true
	case <-time.After(timeout):
		logger.Warn("⚠️ Worker stop timeout",
			zap.String("worker", pw.worker.Name()),
		)
		return false
	}
}

// Runs returns how many iterations have completed
func (pw *PeriodicWorker) Runs() int {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.runs
}

func (pw *PeriodicWorker) loop(ctx context.Context) {
	defer close(pw.done)

	name := pw.worker.Name()
	logger.Info("🚀 Worker started",
		zap.String("worker", name),
		zap.Duration("interval", pw.interval),
	)

	pw.runOnce(ctx)

	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("🛑 Worker stopping", zap.String("worker", name))
			return

		case <-ticker.C:
			pw.runOnce(ctx)
		}
	}
}

// runOnce executes one iteration; errors and panics are logged and the
// worker keeps going
func (pw *PeriodicWorker) runOnce(ctx context.Context) {
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("worker panicked: %v", r)
			}
		}()
		return pw.worker.Run(ctx)
	}()

	pw.mu.Lock()
	pw.runs++
	pw.mu.Unlock()

	if err != nil {
		logger.Error("worker execution failed",
			zap.String("worker", pw.worker.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("worker iteration finished",
		zap.String("worker", pw.worker.Name()),
		zap.Duration("duration", time.Since(start)),
	)
}

// Group starts workers together and stops them with one cancel
type Group struct {
	workers []*PeriodicWorker
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// NewGroup creates new worker group bound to ctx
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go starts worker right away on the given interval
func (g *Group) Go(worker Worker, interval time.Duration) *PeriodicWorker {
	g.mu.Lock()
	defer g.mu.Unlock()

	pw := NewPeriodicWorker(worker, interval)
	g.workers = append(g.workers, pw)
	pw.Start(g.ctx)

	return pw
}

// Stop cancels every worker and waits up to timeout for each of them
func (g *Group) Stop(timeout time.Duration) {
	g.mu.Lock()
	workers := append([]*PeriodicWorker(nil), g.workers...)
	g.mu.Unlock()

	logger.Info("🛑 Stopping worker group...", zap.Int("workers", len(workers)))

	g.cancel()

	deadline := time.Now().Add(timeout)
	for _, pw := range workers {
		pw.Wait(time.Until(deadline))
	}

	logger.Info("✅ Worker group stopped")
}
