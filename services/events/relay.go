package events

import (
	"context"
	"fmt"
	"time"

	"homeserve/models"
	"homeserve/utils"

	"go.uber.org/zap"
)

const defaultBatchSize = 100

// Outbox is the part of the booking store the relay drains.
type Outbox interface {
	PendingEvents(ctx context.Context, limit int) ([]models.BookingEvent, error)
	MarkEventsDispatched(ctx context.Context, eventIDs []string) error
}

// Relay moves committed outbox events to a Sink. Events are emitted in commit
// order and marked dispatched only after the sink accepted them.
type Relay struct {
	Store     Outbox
	Sink      Sink
	Interval  time.Duration
	BatchSize int
	Logger    *zap.Logger

	kick chan struct{}
}

func NewRelay(store Outbox, sink Sink, interval time.Duration) *Relay {
	return &Relay{
		Store:     store,
		Sink:      sink,
		Interval:  interval,
		BatchSize: defaultBatchSize,
		Logger:    utils.GetLogger(),
		kick:      make(chan struct{}, 1),
	}
}

// Kick asks a running relay to drain now instead of waiting for the next tick.
func (r *Relay) Kick() {
	if r.kick == nil {
		return
	}
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run drains the outbox on every tick or kick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Logger.Info("outbox relay started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
		case <-r.kick:
		}
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.Logger.Warn("outbox drain incomplete", zap.Error(err))
		}
	}
}

// Drain emits pending events batch by batch until none remain. It stops at
// the first sink failure so later events are never delivered ahead of it.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	batch := r.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	total := 0
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pending, err := r.Store.PendingEvents(fetchCtx, batch)
		cancel()
		if err != nil {
			return total, fmt.Errorf("load pending events: %w", err)
		}
		if len(pending) == 0 {
			return total, nil
		}

		sent := make([]string, 0, len(pending))
		var emitErr error
		for _, ev := range pending {
			if emitErr = r.Sink.Emit(ctx, ev); emitErr != nil {
				emitErr = fmt.Errorf("emit %s %s: %w", ev.Kind, ev.ID, emitErr)
				break
			}
			sent = append(sent, ev.ID)
		}

		if len(sent) > 0 {
			markCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := r.Store.MarkEventsDispatched(markCtx, sent)
			cancel()
			if err != nil {
				// The events go out again on the next drain.
				return total, fmt.Errorf("mark events dispatched: %w", err)
			}
			total += len(sent)
		}
		if emitErr != nil {
			return total, emitErr
		}
		if len(pending) < batch {
			return total, nil
		}
	}
}
