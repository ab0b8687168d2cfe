package bookingRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"homeserve/models"
)

type outboxEntry struct {
	event      models.BookingEvent
	dispatched bool
}

// MemoryBookingRepo keeps everything behind one mutex, which makes each call
// trivially atomic. It backs STORE_DRIVER=memory and the service tests.
type MemoryBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
	outbox   []outboxEntry

	// failWith, when set, is returned by every call.
	failWith error
}

func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{bookings: make(map[string]models.Booking)}
}

func (r *MemoryBookingRepo) FindActiveBookingsForWorker(ctx context.Context, workerID, date string) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	return r.activeFor(workerID, date), nil
}

func (r *MemoryBookingRepo) activeFor(workerID, date string) []models.Booking {
	var out []models.Booking
	for _, b := range r.bookings {
		if b.WorkerID == workerID && b.ServiceDate == date && b.Status.IsActive() {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out
}

func (r *MemoryBookingRepo) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneBooking(b)
	return &c, nil
}

func (r *MemoryBookingRepo) FindBookingByIdempotencyKey(ctx context.Context, customerID, key string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, b := range r.bookings {
		if key != "" && b.CustomerID == customerID && b.IdempotencyKey == key {
			c := cloneBooking(b)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryBookingRepo) InsertBooking(ctx context.Context, booking *models.Booking, event models.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if booking.Status.IsActive() {
		if id, clash := firstOverlap(r.activeFor(booking.WorkerID, booking.ServiceDate), booking.StartMinute, booking.EndMinute, ""); clash {
			return &ConflictError{BookingID: id}
		}
	}
	r.bookings[booking.ID] = cloneBooking(*booking)
	r.outbox = append(r.outbox, outboxEntry{event: event})
	return nil
}

func (r *MemoryBookingRepo) UpdateBookingStatus(ctx context.Context, upd models.StatusUpdate) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	b, ok := r.bookings[upd.BookingID]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != upd.ExpectedStatus {
		return nil, ErrStale
	}
	b.Status = upd.NewStatus
	b.Active = upd.NewStatus.IsActive()
	b.Notes = upd.Notes
	if upd.CancelledBy != "" {
		b.CancelledBy = upd.CancelledBy
	}
	b.UpdatedAt = upd.UpdatedAt
	b.Revision++
	r.bookings[b.ID] = b
	r.outbox = append(r.outbox, outboxEntry{event: upd.Event})

	c := cloneBooking(b)
	return &c, nil
}

func (r *MemoryBookingRepo) UpdateBookingDetails(ctx context.Context, booking *models.Booking, expectedRevision int, event models.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	cur, ok := r.bookings[booking.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Revision != expectedRevision || cur.Status != models.StatusPending {
		return ErrStale
	}
	if id, clash := firstOverlap(r.activeFor(booking.WorkerID, booking.ServiceDate), booking.StartMinute, booking.EndMinute, booking.ID); clash {
		return &ConflictError{BookingID: id}
	}
	r.bookings[booking.ID] = cloneBooking(*booking)
	r.outbox = append(r.outbox, outboxEntry{event: event})
	return nil
}

func (r *MemoryBookingRepo) PendingEvents(ctx context.Context, limit int) ([]models.BookingEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []models.BookingEvent
	for _, e := range r.outbox {
		if len(out) == limit {
			break
		}
		if !e.dispatched {
			out = append(out, e.event)
		}
	}
	return out, nil
}

func (r *MemoryBookingRepo) MarkEventsDispatched(ctx context.Context, eventIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	ids := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		ids[id] = true
	}
	for i := range r.outbox {
		if ids[r.outbox[i].event.ID] {
			r.outbox[i].dispatched = true
		}
	}
	return nil
}

func (r *MemoryBookingRepo) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failWith
}

// Events returns every event ever committed, in commit order.
func (r *MemoryBookingRepo) Events() []models.BookingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.BookingEvent, len(r.outbox))
	for i, e := range r.outbox {
		out[i] = e.event
	}
	return out
}

// SetFailure switches simulated store failure on (err != nil) or off.
func (r *MemoryBookingRepo) SetFailure(err error) {
	r.mu.Lock()
	r.failWith = err
	r.mu.Unlock()
}

func cloneBooking(b models.Booking) models.Booking {
	if b.Address != nil {
		a := *b.Address
		b.Address = &a
	}
	if b.Series != nil {
		s := *b.Series
		s.Plan.DaysOfWeek = append([]time.Weekday(nil), s.Plan.DaysOfWeek...)
		b.Series = &s
	}
	return b
}
