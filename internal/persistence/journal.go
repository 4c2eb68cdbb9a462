package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/wct097/saintaveline/internal/engine"
)

// batchSize caps how many events are held before a forced flush.
const batchSize = 256

// EventSource is what the journal subscribes to.
type EventSource interface {
	Subscribe(buf int) (<-chan engine.Event, func())
}

// Journal streams a session's lifecycle events into the database in
// batches, flushing on a timer, when a batch fills and on shutdown.
type Journal struct {
	DB      *DB
	Session string
	Flush   time.Duration

	written int
	failed  int
}

// NewJournal creates a journal for session.
func NewJournal(db *DB, session string, flush time.Duration) *Journal {
	if flush <= 0 {
		flush = 2 * time.Second
	}
	return &Journal{DB: db, Session: session, Flush: flush}
}

// Start subscribes before returning and consumes in the background until
// ctx is cancelled, so no event emitted after Start is missed. wait blocks
// until what is left has been written.
func (j *Journal) Start(ctx context.Context, src EventSource) (wait func()) {
	events, cancel := src.Subscribe(batchSize * 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		j.consume(ctx, events)
	}()
	return func() { <-done }
}

func (j *Journal) consume(ctx context.Context, events <-chan engine.Event) {
	ticker := time.NewTicker(j.Flush)
	defer ticker.Stop()

	batch := make([]engine.Event, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := j.DB.SaveEvents(j.Session, batch); err != nil {
			j.failed += len(batch)
			slog.Error("journal flush failed", "session", j.Session, "events", len(batch), "error", err)
		} else {
			j.written += len(batch)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Take whatever is already buffered before the final write.
		drain:
			for {
				select {
				case e, ok := <-events:
					if !ok {
						break drain
					}
					batch = append(batch, e)
				default:
					break drain
				}
			}
			flush()
			slog.Info("journal closed", "session", j.Session, "written", j.written, "failed", j.failed)
			return
		case e, ok := <-events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Written is the number of events stored so far. Only meaningful once the
// wait func from Start has returned.
func (j *Journal) Written() int { return j.written }
