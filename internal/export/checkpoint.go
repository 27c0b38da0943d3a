package export

import (
	"context"
	"log/slog"
	"time"

	"bi-atlas/internal/blob"
	"bi-atlas/internal/domain"
)

const checkpointQueueSize = 32

// checkpointJob carries one snapshot to the writer goroutine. A nil done
// channel marks a fire-and-forget write; otherwise the writer reports the
// outcome on it.
type checkpointJob struct {
	snapshot *domain.ExportSession
	done     chan error
}

// checkpointWriter serializes session persistence through one writer
// goroutine fed by a bounded queue. Both asynchronous checkpoints and
// synchronous unit-of-work writes go through the same queue, so writes to a
// session key always land in submission order. Progress updates enqueue
// snapshots without waiting; full-queue drops are logged, never silent.
type checkpointWriter struct {
	store  domain.BlobStore
	queue  chan checkpointJob
	done   chan struct{}
	logger *slog.Logger
}

func newCheckpointWriter(store domain.BlobStore, logger *slog.Logger) *checkpointWriter {
	w := &checkpointWriter{
		store:  store,
		queue:  make(chan checkpointJob, checkpointQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.run()
	return w
}

func (w *checkpointWriter) run() {
	defer close(w.done)
	for job := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := blob.PutJSON(ctx, w.store, blob.SessionKey(job.snapshot.ID), job.snapshot)
		cancel()
		if job.done != nil {
			job.done <- err
			continue
		}
		if err != nil {
			w.logger.Error("checkpoint write failed", "session", job.snapshot.ID, "error", err)
		}
	}
}

// Enqueue submits a session snapshot for asynchronous persistence.
// The snapshot must be a private copy; callers must not mutate it after.
func (w *checkpointWriter) Enqueue(snapshot *domain.ExportSession) {
	select {
	case w.queue <- checkpointJob{snapshot: snapshot}:
	default:
		w.logger.Warn("checkpoint queue full, dropping snapshot", "session", snapshot.ID)
	}
}

// Sync persists a session snapshot through the writer queue and waits for
// the write to complete, so any snapshot of the same session enqueued
// earlier is written first.
func (w *checkpointWriter) Sync(ctx context.Context, snapshot *domain.ExportSession) error {
	done := make(chan error, 1)
	select {
	case w.queue <- checkpointJob{snapshot: snapshot, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer after draining queued snapshots.
func (w *checkpointWriter) Close() {
	close(w.queue)
	<-w.done
}
