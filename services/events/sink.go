package events

import (
	"context"
	"errors"
	"sync"

	"homeserve/models"

	"go.uber.org/zap"
)

// Sink receives committed booking events. Delivery is at least once, so a
// sink must tolerate seeing the same event id twice.
type Sink interface {
	Emit(ctx context.Context, event models.BookingEvent) error
}

// LogSink writes every event to the structured log.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Emit(ctx context.Context, event models.BookingEvent) error {
	fields := []zap.Field{
		zap.String("eventID", event.ID),
		zap.String("kind", string(event.Kind)),
		zap.String("bookingID", event.BookingID),
		zap.String("workerID", event.WorkerID),
		zap.String("customerID", event.CustomerID),
	}
	if event.NewStatus != "" {
		fields = append(fields, zap.String("status", string(event.NewStatus)))
	}
	if event.Notice != nil {
		fields = append(fields,
			zap.String("template", event.Notice.Template),
			zap.Strings("recipients", event.Notice.Recipients))
	}
	s.Logger.Info("booking event", fields...)
	return nil
}

// MultiSink fans an event out to every sink. All sinks are attempted; the
// joined error is returned so the relay retries the event.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event models.BookingEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink records events in emission order.
type MemorySink struct {
	mu      sync.Mutex
	events  []models.BookingEvent
	failing error
}

func (m *MemorySink) Emit(ctx context.Context, event models.BookingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *MemorySink) Events() []models.BookingEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BookingEvent(nil), m.events...)
}

// SetFailure makes every later Emit fail with err until cleared with nil.
func (m *MemorySink) SetFailure(err error) {
	m.mu.Lock()
	m.failing = err
	m.mu.Unlock()
}
