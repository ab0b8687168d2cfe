package models

import "time"

// EventKind names a lifecycle event emitted to the event sink.
type EventKind string

const (
	EventBookingCreated  EventKind = "BookingCreated"
	EventStatusChanged   EventKind = "StatusChanged"
	EventReminderDue     EventKind = "ReminderDue"
	EventBookingModified EventKind = "BookingModified"
)

// Notice tells the sink who to notify and with which template.
type Notice struct {
	Template    string   `bson:"template" json:"template"`
	Recipients  []string `bson:"recipients" json:"recipients"`
	CancelledBy Party    `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
}

// BookingEvent is emitted by the engine; delivery belongs to the sink.
type BookingEvent struct {
	ID             string        `bson:"id" json:"id"`
	BookingID      string        `bson:"bookingId" json:"bookingId"`
	Kind           EventKind     `bson:"kind" json:"kind"`
	PreviousStatus BookingStatus `bson:"previousStatus,omitempty" json:"previousStatus,omitempty"`
	NewStatus      BookingStatus `bson:"newStatus,omitempty" json:"newStatus,omitempty"`
	CustomerID     string        `bson:"customerId" json:"customerId"`
	WorkerID       string        `bson:"workerId" json:"workerId"`
	ServiceDate    string        `bson:"serviceDate,omitempty" json:"serviceDate,omitempty"`
	ServiceTime    string        `bson:"serviceTime,omitempty" json:"serviceTime,omitempty"`
	Notice         *Notice       `bson:"notice,omitempty" json:"notice,omitempty"`
	OccurredAt     time.Time     `bson:"occurredAt" json:"occurredAt"`
}

// OutboxEvent is a committed event waiting for delivery to the sink.
type OutboxEvent struct {
	Event        BookingEvent `bson:"event"`
	Dispatched   bool         `bson:"dispatched"`
	DispatchedAt *time.Time   `bson:"dispatchedAt,omitempty"`
}
