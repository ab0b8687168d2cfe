package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in-progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

// ActiveStatuses are the statuses that hold a worker's time.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusInProgress}

// IsActive reports whether the status still reserves the worker's slot.
func (s BookingStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// PaymentStatus is owned by the payment collaborator and only read by the engine.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Party identifies which side of a booking acted.
type Party string

const (
	PartyCustomer Party = "customer"
	PartyWorker   Party = "worker"
	PartyAdmin    Party = "admin"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Address is the optional structured service address.
type Address struct {
	Line1      string `bson:"line1" json:"line1"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
}

// SeriesRef links an occurrence to the recurrence plan that produced it.
type SeriesRef struct {
	SeriesID string         `bson:"seriesId" json:"seriesId"`
	Plan     RecurrencePlan `bson:"plan" json:"plan"`
}

// Booking represents a reservation of a worker's time by a customer.
type Booking struct {
	ID             string         `bson:"id" json:"id"`
	CustomerID     string         `bson:"customerId" json:"customerId"`
	WorkerID       string         `bson:"workerId" json:"workerId"`
	ServiceID      string         `bson:"serviceId" json:"serviceId"`
	ServiceDate    string         `bson:"serviceDate" json:"serviceDate"` // "YYYY-MM-DD"
	ServiceTime    string         `bson:"serviceTime" json:"serviceTime"` // "HH:MM"
	DurationHours  float64        `bson:"durationHours" json:"durationHours"`
	StartMinute    int            `bson:"startMinute" json:"startMinute"` // minutes from midnight
	EndMinute      int            `bson:"endMinute" json:"endMinute"`     // exclusive
	Location       string         `bson:"location,omitempty" json:"location,omitempty"`
	Emergency      bool           `bson:"emergency" json:"emergency"`
	Price          PriceBreakdown `bson:"price" json:"price"`
	TotalAmount    float64        `bson:"totalAmount" json:"totalAmount"`
	PaymentStatus  PaymentStatus  `bson:"paymentStatus" json:"paymentStatus"`
	Status         BookingStatus  `bson:"status" json:"status"`
	Active         bool           `bson:"active" json:"-"`
	CancelledBy    Party          `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	Notes          string         `bson:"notes,omitempty" json:"notes,omitempty"`
	Address        *Address       `bson:"address,omitempty" json:"address,omitempty"`
	Series         *SeriesRef     `bson:"series,omitempty" json:"series,omitempty"`
	IdempotencyKey string         `bson:"idempotencyKey,omitempty" json:"-"`
	Revision       int            `bson:"revision" json:"revision"`
	CreatedAt      time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// Overlaps reports whether the half-open windows [start, end) intersect.
func (b Booking) Overlaps(start, end int) bool {
	return b.StartMinute < end && start < b.EndMinute
}

// PartyOf returns the role the given id plays on this booking, if any.
func (b Booking) PartyOf(id string) (Party, bool) {
	switch id {
	case b.CustomerID:
		return PartyCustomer, true
	case b.WorkerID:
		return PartyWorker, true
	}
	return "", false
}

// StatusUpdate is a compare-and-set status write.
type StatusUpdate struct {
	BookingID      string
	ExpectedStatus BookingStatus
	NewStatus      BookingStatus
	Notes          string
	CancelledBy    Party
	UpdatedAt      time.Time
	Event          BookingEvent
}
