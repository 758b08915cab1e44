// internal/audit/recorder.go

// Package audit keeps an asynchronous trail of upload outcomes. Events are
// buffered in memory and written in batches so the request path never waits
// on its own bookkeeping.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FLUSEC-25-26/flusec-cloud/api/schemas"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
)

// EventWriter persists a batch of ingest events.
type EventWriter interface {
	InsertEvents(ctx context.Context, events []schemas.IngestEvent) error
}

// Recorder manages the queueing, batching, and persistence of ingest events.
type Recorder struct {
	writer EventWriter
	logger *zap.Logger
	cfg    config.AuditConfig

	input  chan schemas.IngestEvent
	buffer []schemas.IngestEvent
	mu     sync.Mutex
	wg     sync.WaitGroup

	// Signals for synchronization
	flushSignal chan struct{}
	stopSignal  chan struct{}
}

// NewRecorder initializes a new audit recorder.
func NewRecorder(writer EventWriter, logger *zap.Logger, cfg config.AuditConfig) *Recorder {
	// Ensure sane defaults (validation in config.go ensures they are positive if set)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	return &Recorder{
		writer:      writer,
		logger:      logger.Named("audit"),
		cfg:         cfg,
		input:       make(chan schemas.IngestEvent, cfg.QueueSize),
		buffer:      make([]schemas.IngestEvent, 0, cfg.BatchSize),
		flushSignal: make(chan struct{}, 1), // Buffered channel to prevent blocking on signal send
		stopSignal:  make(chan struct{}),
	}
}

// Record enqueues an event without blocking. When the queue is full the event
// is dropped with a warning; uploads are never delayed by their audit trail.
func (r *Recorder) Record(event schemas.IngestEvent) {
	select {
	case r.input <- event:
	default:
		r.logger.Warn("Audit queue full, dropping event.",
			zap.String("outcome", string(event.Outcome)),
			zap.String("username", event.Username))
	}
}

// Start runs the main recording loop.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	r.logger.Info("Audit recorder started.",
		zap.Int("batch_size", r.cfg.BatchSize),
		zap.Duration("flush_interval", r.cfg.FlushInterval))

	for {
		select {
		case event := <-r.input:
			r.bufferEvent(event)

		case <-ticker.C:
			// Time-based flush
			r.flush()

		case <-r.flushSignal:
			// Explicit flush requested (batch size reached)
			r.flush()

		case <-ctx.Done():
			r.logger.Warn("Context cancelled. Flushing remaining audit events.")
			r.drainQueue()
			r.flush()
			return

		case <-r.stopSignal:
			r.logger.Info("Stop signal received. Draining queue and flushing buffer.")
			r.drainQueue()
			r.flush()
			return
		}
	}
}

// drainQueue reads any remaining events from the queue until it's empty.
func (r *Recorder) drainQueue() {
	count := 0
	for {
		select {
		case event := <-r.input:
			r.bufferEvent(event)
			count++
		default:
			r.logger.Debug("Audit queue drained.", zap.Int("count", count))
			return
		}
	}
}

// bufferEvent adds an event to the buffer and triggers a flush if the batch
// size is reached.
func (r *Recorder) bufferEvent(event schemas.IngestEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.buffer = append(r.buffer, event)
	bufferLen := len(r.buffer)
	r.mu.Unlock()

	if bufferLen >= r.cfg.BatchSize {
		select {
		case r.flushSignal <- struct{}{}:
		default:
			// Signal already pending, skip sending another one.
		}
	}
}

// flush persists the current buffer.
func (r *Recorder) flush() {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return
	}
	toPersist := make([]schemas.IngestEvent, len(r.buffer))
	copy(toPersist, r.buffer)
	r.buffer = r.buffer[:0]
	r.mu.Unlock()

	r.logger.Debug("Flushing audit events.", zap.Int("count", len(toPersist)))

	// Persist in a separate goroutine so the main loop keeps consuming.
	r.wg.Add(1)
	go func(batch []schemas.IngestEvent) {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := r.writer.InsertEvents(ctx, batch); err != nil {
			// The trail is best effort; a failed batch is logged and dropped.
			r.logger.Error("Failed to persist audit events.",
				zap.Error(err), zap.Int("batch_size", len(batch)))
		}
	}(toPersist)
}

// Stop gracefully shuts down the recorder, ensuring buffered events are
// persisted. Stop is idempotent.
func (r *Recorder) Stop() {
	r.logger.Info("Stopping audit recorder...")
	select {
	case <-r.stopSignal:
		// Already closed
	default:
		close(r.stopSignal)
	}

	// Wait for the main loop and any ongoing persistence operations to complete.
	r.wg.Wait()
	r.logger.Info("Audit recorder stopped.")
}
