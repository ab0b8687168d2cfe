package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"homeserve/models"
	"homeserve/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeSendReminder = "reminder:send"

func NewReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		// One reminder per booking even when the confirm event is redelivered.
		asynq.TaskID("reminder:" + payload.BookingID),
		asynq.MaxRetry(5),
	}

	return task, opts, nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReminderScheduler is an event sink that schedules a reminder task whenever
// a booking is confirmed. Other events are ignored.
type ReminderScheduler struct {
	Client   Enqueuer
	Lead     time.Duration
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

func NewReminderScheduler(client Enqueuer, lead time.Duration, loc *time.Location) *ReminderScheduler {
	return &ReminderScheduler{
		Client:   client,
		Lead:     lead,
		Location: loc,
		Now:      time.Now,
		Logger:   utils.GetLogger(),
	}
}

func (s *ReminderScheduler) Emit(ctx context.Context, event models.BookingEvent) error {
	if event.Kind != models.EventStatusChanged || event.NewStatus != models.StatusConfirmed {
		return nil
	}

	start, err := time.ParseInLocation(models.DateLayout+" "+models.TimeLayout,
		event.ServiceDate+" "+event.ServiceTime, s.Location)
	if err != nil {
		s.Logger.Warn("reminder skipped, unparsable service time",
			zap.String("bookingID", event.BookingID), zap.Error(err))
		return nil
	}
	now := s.Now()
	if !start.After(now) {
		return nil
	}
	fireAt := start.Add(-s.Lead)
	if fireAt.Before(now) {
		fireAt = now
	}

	payload := models.ReminderPayload{
		BookingID:   event.BookingID,
		CustomerID:  event.CustomerID,
		WorkerID:    event.WorkerID,
		ServiceDate: event.ServiceDate,
		ServiceTime: event.ServiceTime,
		FireDate:    fireAt.Format(time.RFC3339),
	}
	task, opts, err := NewReminderTask(payload, fireAt)
	if err != nil {
		return fmt.Errorf("build reminder task: %w", err)
	}
	if _, err := s.Client.Enqueue(task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue reminder for %s: %w", event.BookingID, err)
	}
	s.Logger.Info("reminder scheduled",
		zap.String("bookingID", event.BookingID),
		zap.Time("fireAt", fireAt))
	return nil
}
