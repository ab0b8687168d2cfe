package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"homeserve/config"
	bookingRepo "homeserve/database/repository/booking"
	"homeserve/models"
	"homeserve/services/events"
	"homeserve/services/tasks"
	"homeserve/utils"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const reminderTemplate = "booking_reminder"

// BookingReader is the store lookup the reminder handler needs.
type BookingReader interface {
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
}

// InitReminderWorker runs the asynq worker in the background until ctx ends.
func InitReminderWorker(ctx context.Context, store BookingReader, sink events.Sink) {
	logger := utils.GetLogger()
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReminder, handleReminderTask(store, sink, time.Now))

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	// Start async worker with retry logic
	go func() {
		logger.Info("starting reminder worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("reminder worker failed to start",
					zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))

				if attempts == maxAttempts {
					logger.Error("reminder worker gave up; reminders will not fire")
					return
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

// handleReminderTask emits ReminderDue when the booking is still confirmed at
// fire time. Bookings cancelled or moved since scheduling are skipped.
func handleReminderTask(store BookingReader, sink events.Sink, now func() time.Time) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		logger := utils.GetLogger()
		var p models.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid reminder payload", zap.Error(err))
			return fmt.Errorf("decode reminder: %v: %w", err, asynq.SkipRetry)
		}

		lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		b, err := store.GetBooking(lookupCtx, p.BookingID)
		if errors.Is(err, bookingRepo.ErrNotFound) {
			logger.Warn("reminder for unknown booking", zap.String("bookingID", p.BookingID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("load booking %s: %w", p.BookingID, err)
		}
		if b.Status != models.StatusConfirmed || b.ServiceDate != p.ServiceDate || b.ServiceTime != p.ServiceTime {
			logger.Info("reminder no longer applies",
				zap.String("bookingID", b.ID), zap.String("status", string(b.Status)))
			return nil
		}

		ev := models.BookingEvent{
			ID:          uuid.New().String(),
			BookingID:   b.ID,
			Kind:        models.EventReminderDue,
			NewStatus:   b.Status,
			CustomerID:  b.CustomerID,
			WorkerID:    b.WorkerID,
			ServiceDate: b.ServiceDate,
			ServiceTime: b.ServiceTime,
			Notice: &models.Notice{
				Template:   reminderTemplate,
				Recipients: []string{b.CustomerID, b.WorkerID},
			},
			OccurredAt: now(),
		}
		if err := sink.Emit(ctx, ev); err != nil {
			logger.Error("failed to emit reminder", zap.String("bookingID", b.ID), zap.Error(err))
			return err
		}
		logger.Info("reminder emitted", zap.String("bookingID", b.ID))
		return nil
	}
}
