package cron

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	bookingRepo "homeserve/database/repository/booking"
	"homeserve/models"
	"homeserve/services/events"
	"homeserve/services/tasks"

	"github.com/hibiken/asynq"
)

func reminderTask(t *testing.T, bookingID string) *asynq.Task {
	t.Helper()
	task, _, err := tasks.NewReminderTask(models.ReminderPayload{
		BookingID:   bookingID,
		ServiceDate: "2025-01-13",
		ServiceTime: "09:00",
	}, time.Now())
	if err != nil {
		t.Fatalf("NewReminderTask: %v", err)
	}
	return task
}

func TestReminderHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := bookingRepo.NewMemoryBookingRepo()
	for _, b := range []*models.Booking{
		{ID: "confirmed", CustomerID: "c", WorkerID: "w", ServiceDate: "2025-01-13", ServiceTime: "09:00",
			StartMinute: 540, EndMinute: 600, Status: models.StatusConfirmed, Active: true},
		{ID: "cancelled", CustomerID: "c", WorkerID: "w", ServiceDate: "2025-01-13", ServiceTime: "09:00",
			StartMinute: 540, EndMinute: 600, Status: models.StatusCancelled},
	} {
		if err := store.InsertBooking(ctx, b, models.BookingEvent{ID: "e-" + b.ID, BookingID: b.ID}); err != nil {
			t.Fatalf("InsertBooking(%s): %v", b.ID, err)
		}
	}
	fixed := time.Date(2025, 1, 13, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		bookingID string
		emitted   bool
	}{
		{"confirmed", true},
		{"cancelled", false},
		{"missing", false},
	}
	for _, tt := range tests {
		sink := &events.MemorySink{}
		h := handleReminderTask(store, sink, func() time.Time { return fixed })
		if err := h(ctx, reminderTask(t, tt.bookingID)); err != nil {
			t.Errorf("%s: %v", tt.bookingID, err)
		}
		got := sink.Events()
		if (len(got) == 1) != tt.emitted {
			t.Errorf("%s: emitted %d events, want emitted=%v", tt.bookingID, len(got), tt.emitted)
			continue
		}
		if tt.emitted {
			ev := got[0]
			if ev.Kind != models.EventReminderDue || ev.Notice == nil || len(ev.Notice.Recipients) != 2 || !ev.OccurredAt.Equal(fixed) {
				t.Errorf("%s: event %+v", tt.bookingID, ev)
			}
		}
	}
}

func TestReminderHandlerRejectsBadPayload(t *testing.T) {
	t.Parallel()
	h := handleReminderTask(bookingRepo.NewMemoryBookingRepo(), &events.MemorySink{}, time.Now)
	task := asynq.NewTask(tasks.TypeSendReminder, json.RawMessage(`{"bookingId":`))
	if err := h(context.Background(), task); err == nil {
		t.Errorf("want error for malformed payload")
	}
}
