package events

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	bookingRepo "homeserve/database/repository/booking"
	"homeserve/models"

	"go.uber.org/zap"
)

func seed(t *testing.T, store *bookingRepo.MemoryBookingRepo, n int) []string {
	t.Helper()
	var ids []string
	for i := 0; i < n; i++ {
		b := &models.Booking{
			ID:          fmt.Sprintf("b-%d", i),
			CustomerID:  "cust-1",
			WorkerID:    "worker-1",
			ServiceDate: "2025-01-13",
			StartMinute: 60 * i,
			EndMinute:   60*i + 60,
			Status:      models.StatusPending,
			Active:      true,
		}
		ev := models.BookingEvent{ID: fmt.Sprintf("e-%d", i), BookingID: b.ID, Kind: models.EventBookingCreated}
		if err := store.InsertBooking(context.Background(), b, ev); err != nil {
			t.Fatalf("InsertBooking: %v", err)
		}
		ids = append(ids, ev.ID)
	}
	return ids
}

func newTestRelay(store Outbox, sink Sink, batch int) *Relay {
	r := NewRelay(store, sink, time.Hour)
	r.BatchSize = batch
	r.Logger = zap.NewNop()
	return r
}

func emittedIDs(events []models.BookingEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestDrainDeliversInCommitOrder(t *testing.T) {
	t.Parallel()
	store := bookingRepo.NewMemoryBookingRepo()
	want := seed(t, store, 5)
	sink := &MemorySink{}

	n, err := newTestRelay(store, sink, 2).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 5 {
		t.Errorf("delivered: got %d, want 5", n)
	}
	if got := emittedIDs(sink.Events()); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order: got %v, want %v", got, want)
	}

	pending, _ := store.PendingEvents(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("pending after drain: got %d, want 0", len(pending))
	}
}

// flakySink fails once it has accepted `after` events.
type flakySink struct {
	MemorySink
	after int
}

func (f *flakySink) Emit(ctx context.Context, ev models.BookingEvent) error {
	if len(f.Events()) >= f.after {
		return errors.New("broker unavailable")
	}
	return f.MemorySink.Emit(ctx, ev)
}

func TestDrainStopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	store := bookingRepo.NewMemoryBookingRepo()
	seed(t, store, 4)
	sink := &flakySink{after: 2}
	relay := newTestRelay(store, sink, 10)

	n, err := relay.Drain(context.Background())
	if err == nil {
		t.Fatalf("Drain: want error from failing sink")
	}
	if n != 2 {
		t.Errorf("delivered before failure: got %d, want 2", n)
	}
	pending, _ := store.PendingEvents(context.Background(), 10)
	if got := emittedIDs(pending); fmt.Sprint(got) != "[e-2 e-3]" {
		t.Errorf("still pending: got %v, want [e-2 e-3]", got)
	}

	sink.after = 100
	if _, err := relay.Drain(context.Background()); err != nil {
		t.Fatalf("Drain after recovery: %v", err)
	}
	if got := emittedIDs(sink.Events()); fmt.Sprint(got) != "[e-0 e-1 e-2 e-3]" {
		t.Errorf("emitted: got %v", got)
	}
}

func TestDrainStoreFailure(t *testing.T) {
	t.Parallel()
	store := bookingRepo.NewMemoryBookingRepo()
	seed(t, store, 1)
	store.SetFailure(errors.New("connection reset"))

	sink := &MemorySink{}
	if _, err := newTestRelay(store, sink, 10).Drain(context.Background()); err == nil {
		t.Fatalf("Drain: want error while the store is down")
	}
	if len(sink.Events()) != 0 {
		t.Errorf("nothing should be emitted while the store is down")
	}
}

func TestRunDrainsOnKick(t *testing.T) {
	t.Parallel()
	store := bookingRepo.NewMemoryBookingRepo()
	seed(t, store, 3)
	sink := &MemorySink{}
	relay := newTestRelay(store, sink, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()
	relay.Kick()

	deadline := time.After(2 * time.Second)
	for len(sink.Events()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("relay did not drain after Kick: %d events", len(sink.Events()))
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestMultiSinkAttemptsEverySink(t *testing.T) {
	t.Parallel()
	good := &MemorySink{}
	bad := &MemorySink{}
	bad.SetFailure(errors.New("down"))

	err := MultiSink{bad, good, LogSink{Logger: zap.NewNop()}}.Emit(context.Background(), models.BookingEvent{ID: "e-1"})
	if err == nil {
		t.Errorf("want joined error from failing sink")
	}
	if len(good.Events()) != 1 {
		t.Errorf("healthy sink skipped after a failure")
	}
}

func TestRoutingKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ev   models.BookingEvent
		want string
	}{
		{models.BookingEvent{Kind: models.EventBookingCreated, NewStatus: models.StatusPending}, "booking.bookingcreated"},
		{models.BookingEvent{Kind: models.EventStatusChanged, NewStatus: models.StatusInProgress}, "booking.statuschanged.in_progress"},
		{models.BookingEvent{Kind: models.EventReminderDue}, "booking.reminderdue"},
	}
	for _, tt := range tests {
		if got := RoutingKey(tt.ev); got != tt.want {
			t.Errorf("RoutingKey(%s): got %q, want %q", tt.ev.Kind, got, tt.want)
		}
	}
}
