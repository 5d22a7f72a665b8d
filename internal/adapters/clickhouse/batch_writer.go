package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

// BatchWriter buffers records and flushes them when the batch is full or
// maxWait has passed
type BatchWriter[T any] struct {
	buffer      []T
	bufferMu    sync.Mutex
	maxBatch    int
	flushTicker *time.Ticker
	flushFunc   func(context.Context, []T) error
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewBatchWriter creates new batch writer and starts its flush loop
func NewBatchWriter[T any](maxBatch int, maxWait time.Duration, flushFunc func(context.Context, []T) error) *BatchWriter[T] {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter[T]{
		buffer:      make([]T, 0, maxBatch),
		maxBatch:    maxBatch,
		flushTicker: time.NewTicker(maxWait),
		flushFunc:   flushFunc,
		ctx:         ctx,
		cancel:      cancel,
	}

	bw.wg.Add(1)
	go bw.autoFlush()

	return bw
}

// Add adds record to buffer
func (bw *BatchWriter[T]) Add(record T) {
	bw.bufferMu.Lock()
	bw.buffer = append(bw.buffer, record)
	shouldFlush := len(bw.buffer) >= bw.maxBatch
	bw.bufferMu.Unlock()

	if shouldFlush {
		bw.flush()
	}
}

func (bw *BatchWriter[T]) autoFlush() {
	defer bw.wg.Done()

	for {
		select {
		case <-bw.flushTicker.C:
			bw.flush()
		case <-bw.ctx.Done():
			bw.flush()
			return
		}
	}
}

func (bw *BatchWriter[T]) flush() {
	bw.bufferMu.Lock()
	if len(bw.buffer) == 0 {
		bw.bufferMu.Unlock()
		return
	}

	toWrite := make([]T, len(bw.buffer))
	copy(toWrite, bw.buffer)
	bw.buffer = bw.buffer[:0]
	bw.bufferMu.Unlock()

	// the writer's own context is already cancelled during the final flush
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := bw.flushFunc(ctx, toWrite); err != nil {
		logger.Error("failed to flush batch to ClickHouse",
			zap.Int("records", len(toWrite)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("flushed batch to ClickHouse",
		zap.Int("records", len(toWrite)),
	)
}

// Close stops the writer and flushes remaining data
func (bw *BatchWriter[T]) Close() error {
	bw.closeOnce.Do(func() {
		bw.flushTicker.Stop()
		bw.cancel()
		bw.wg.Wait()
	})
	return nil
}

// ReadEventWriter batches read events into ClickHouse
type ReadEventWriter struct {
	*BatchWriter[models.ReadEvent]
}

// NewReadEventWriter creates batch writer for read events
func NewReadEventWriter(repo *Repository, maxBatch int, maxWait time.Duration) *ReadEventWriter {
	return &ReadEventWriter{
		BatchWriter: NewBatchWriter(maxBatch, maxWait, repo.SaveReadEvents),
	}
}

// Record queues a read event
func (w *ReadEventWriter) Record(event models.ReadEvent) {
	w.Add(event)
}
