package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"homeserve/config"
	bookingRepo "homeserve/database/repository/booking"
	workerRepo "homeserve/database/repository/worker"
	"homeserve/models"
	"homeserve/services/pricing"
	"homeserve/utils"

	"go.uber.org/zap"
)

const (
	testWorker   = "worker-1"
	testCustomer = "cust-1"
	testAdmin    = "admin-1"
	testDay      = "2025-01-13" // Monday
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type countingKicker struct {
	mu sync.Mutex
	n  int
}

func (k *countingKicker) Kick() {
	k.mu.Lock()
	k.n++
	k.mu.Unlock()
}

type fixture struct {
	svc    *DefaultBookingService
	store  *bookingRepo.MemoryBookingRepo
	clock  *fakeClock
	kicker *countingKicker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := bookingRepo.NewMemoryBookingRepo()
	workers := workerRepo.NewMemoryWorkerRepo(
		models.WorkerProfile{
			ID:                testWorker,
			ExperienceTier:    models.TierExpert,
			HourlyRates:       map[string]float64{"plumbing": 500},
			DefaultHourlyRate: 400,
			Currency:          "INR",
			Active:            true,
		},
		models.WorkerProfile{ID: "worker-retired", DefaultHourlyRate: 300, Active: false},
	)
	clock := &fakeClock{t: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)} // Friday
	kicker := &countingKicker{}
	svc := &DefaultBookingService{
		Store:    store,
		Workers:  workers,
		Pricing:  pricing.NewCalculator(config.DefaultPricing()),
		Identity: NewContextIdentity([]string{testAdmin}),
		Locker:   NewMemoryLocker(),
		Outbox:   kicker,
		Now:      clock.Now,
		Location: time.UTC,
		Logger:   zap.NewNop(),
	}
	return &fixture{svc: svc, store: store, clock: clock, kicker: kicker}
}

func as(id string) context.Context {
	return WithRequester(context.Background(), id)
}

func plumbing(customer, date, clock string, hours float64) CreateRequest {
	return CreateRequest{
		CustomerID:    customer,
		WorkerID:      testWorker,
		ServiceID:     "plumbing",
		Date:          date,
		Time:          clock,
		DurationHours: hours,
		Location:      "gurgaon",
	}
}

func mustCreate(t *testing.T, f *fixture, req CreateRequest) *models.Booking {
	t.Helper()
	b, err := f.svc.Create(as(req.CustomerID), req)
	if err != nil {
		t.Fatalf("Create(%s %s): %v", req.Date, req.Time, err)
	}
	return b
}

func wantCode(t *testing.T, err error, code utils.ErrorCode) *utils.AppError {
	t.Helper()
	var ae *utils.AppError
	if !errors.As(err, &ae) {
		t.Fatalf("got %v, want %s", err, code)
	}
	if ae.Code != code {
		t.Fatalf("got %s (%v), want %s", ae.Code, err, code)
	}
	return ae
}

func TestCreatePeakHourBooking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	b := mustCreate(t, f, plumbing(testCustomer, testDay, "09:00", 1))

	if b.Status != models.StatusPending || !b.Active {
		t.Errorf("status: got %s active=%v, want pending and active", b.Status, b.Active)
	}
	if b.TotalAmount != 953 || b.Price.Total != 953 {
		t.Errorf("total: got %v (breakdown %v), want 953", b.TotalAmount, b.Price.Total)
	}
	if b.StartMinute != 540 || b.EndMinute != 600 {
		t.Errorf("window: got [%d,%d), want [540,600)", b.StartMinute, b.EndMinute)
	}

	events := f.store.Events()
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != models.EventBookingCreated || ev.BookingID != b.ID || ev.NewStatus != models.StatusPending {
		t.Errorf("event: got %+v", ev)
	}
	if ev.Notice == nil || len(ev.Notice.Recipients) != 1 || ev.Notice.Recipients[0] != testWorker {
		t.Errorf("created notice should go to the worker, got %+v", ev.Notice)
	}
	if f.kicker.n != 1 {
		t.Errorf("outbox kicks: got %d, want 1", f.kicker.n)
	}
}

func TestQuoteMatchesCreate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	q, err := f.svc.Quote(as(testCustomer), QuoteRequest{
		WorkerID: testWorker, ServiceID: "plumbing", Date: testDay, Time: "09:00", DurationHours: 1, Location: "gurgaon",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	b := mustCreate(t, f, plumbing(testCustomer, testDay, "09:00", 1))
	if q != b.Price {
		t.Errorf("quote %+v differs from booked price %+v", q, b.Price)
	}
	if len(f.store.Events()) != 1 {
		t.Errorf("quote must not write anything")
	}
}

func TestCreateConcurrentSameSlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  []*utils.AppError
		other   []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			customer := fmt.Sprintf("cust-%d", i)
			b, err := f.svc.Create(as(customer), plumbing(customer, testDay, "09:00", 1))
			mu.Lock()
			defer mu.Unlock()
			var ae *utils.AppError
			switch {
			case err == nil:
				winners = append(winners, b.ID)
			case errors.As(err, &ae) && ae.Code == utils.CodeSlotUnavailable:
				losers = append(losers, ae)
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners: got %d, want exactly 1", len(winners))
	}
	if len(other) != 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	for _, l := range losers {
		if l.BookingID != winners[0] {
			t.Errorf("conflict reported %q, want winner %q", l.BookingID, winners[0])
		}
	}
	active, _ := f.store.FindActiveBookingsForWorker(context.Background(), testWorker, testDay)
	if len(active) != 1 {
		t.Errorf("active bookings: got %d, want 1", len(active))
	}
}

func TestCreateOverlapAndBackToBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	first := mustCreate(t, f, plumbing(testCustomer, testDay, "14:00", 2))

	tests := []struct {
		name     string
		clock    string
		hours    float64
		conflict bool
	}{
		{"starts inside", "15:30", 1, true},
		{"ends inside", "13:30", 1, true},
		{"encloses", "13:00", 4, true},
		{"ends exactly at start", "13:00", 1, false},
		{"starts exactly at end", "16:00", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(as("cust-2"), plumbing("cust-2", testDay, tt.clock, tt.hours))
			if !tt.conflict {
				if err != nil {
					t.Fatalf("got %v, want success", err)
				}
				return
			}
			ae := wantCode(t, err, utils.CodeSlotUnavailable)
			if ae.BookingID != first.ID {
				t.Errorf("conflicting id: got %q, want %q", ae.BookingID, first.ID)
			}
		})
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name  string
		mut   func(*CreateRequest)
		field string
	}{
		{"past date", func(r *CreateRequest) { r.Date = "2025-01-09" }, "date"},
		{"earlier today", func(r *CreateRequest) { r.Date = "2025-01-10"; r.Time = "07:30" }, "time"},
		{"bad date", func(r *CreateRequest) { r.Date = "13/01/2025" }, "date"},
		{"bad time", func(r *CreateRequest) { r.Time = "9am" }, "time"},
		{"zero duration", func(r *CreateRequest) { r.DurationHours = 0 }, "durationHours"},
		{"negative duration", func(r *CreateRequest) { r.DurationHours = -1 }, "durationHours"},
		{"past midnight", func(r *CreateRequest) { r.Time = "23:00"; r.DurationHours = 2 }, "durationHours"},
		{"missing service", func(r *CreateRequest) { r.ServiceID = "" }, "serviceId"},
		{"unknown recurrence frequency", func(r *CreateRequest) { r.Recurrence = &models.RecurrencePlan{Frequency: "daily"} }, "recurrence.frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := plumbing(testCustomer, testDay, "09:00", 1)
			tt.mut(&req)
			_, err := f.svc.Create(as(testCustomer), req)
			ae := wantCode(t, err, utils.CodeValidation)
			if ae.Field != tt.field {
				t.Errorf("field: got %q, want %q", ae.Field, tt.field)
			}
		})
	}
}

func TestCreateAuthorizationAndWorker(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Create(as("someone-else"), plumbing(testCustomer, testDay, "09:00", 1))
	wantCode(t, err, utils.CodeForbidden)

	_, err = f.svc.Create(context.Background(), plumbing(testCustomer, testDay, "09:00", 1))
	wantCode(t, err, utils.CodeForbidden)

	req := plumbing(testCustomer, testDay, "09:00", 1)
	req.WorkerID = "nobody"
	_, err = f.svc.Create(as(testCustomer), req)
	wantCode(t, err, utils.CodeNotFound)

	req.WorkerID = "worker-retired"
	_, err = f.svc.Create(as(testCustomer), req)
	wantCode(t, err, utils.CodeNotFound)
}

func TestStoreFailureIsRetryable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.SetFailure(errors.New("i/o timeout"))

	_, err := f.svc.CheckAvailability(context.Background(), AvailabilityQuery{
		WorkerID: testWorker, Date: testDay, Time: "09:00", DurationHours: 1,
	})
	ae := wantCode(t, err, utils.CodeStoreUnavailable)
	if !ae.Retryable {
		t.Errorf("store failure must be retryable")
	}

	_, err = f.svc.Create(as(testCustomer), plumbing(testCustomer, testDay, "09:00", 1))
	wantCode(t, err, utils.CodeStoreUnavailable)

	f.store.SetFailure(nil)
	if _, err := f.svc.Create(as(testCustomer), plumbing(testCustomer, testDay, "09:00", 1)); err != nil {
		t.Errorf("after recovery: %v", err)
	}
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := mustCreate(t, f, plumbing(testCustomer, testDay, "10:00", 1))

	q := AvailabilityQuery{WorkerID: testWorker, Date: testDay, Time: "10:30", DurationHours: 1}
	got, err := f.svc.CheckAvailability(context.Background(), q)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if got.Available || got.ConflictingBookingID != b.ID {
		t.Errorf("got %+v, want conflict with %s", got, b.ID)
	}

	q.ExcludeBookingID = b.ID
	got, err = f.svc.CheckAvailability(context.Background(), q)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if !got.Available {
		t.Errorf("excluding the only booking should be available, got %+v", got)
	}
}

func TestCreateIdempotencyKey(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := plumbing(testCustomer, testDay, "09:00", 1)
	req.IdempotencyKey = "retry-123"
	first := mustCreate(t, f, req)
	again := mustCreate(t, f, req)

	if first.ID != again.ID {
		t.Errorf("retry created a new booking: %s vs %s", first.ID, again.ID)
	}
	if n := len(f.store.Events()); n != 1 {
		t.Errorf("events: got %d, want 1", n)
	}
}

func TestGetAuthorization(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := mustCreate(t, f, plumbing(testCustomer, testDay, "09:00", 1))

	for _, id := range []string{testCustomer, testWorker, testAdmin} {
		if _, err := f.svc.Get(as(id), b.ID); err != nil {
			t.Errorf("Get as %s: %v", id, err)
		}
	}
	if _, err := f.svc.Get(WithAdminCapability(as("ops-7")), b.ID); err != nil {
		t.Errorf("Get with admin claim: %v", err)
	}

	_, err := f.svc.Get(as("stranger"), b.ID)
	wantCode(t, err, utils.CodeForbidden)

	_, err = f.svc.Get(as(testCustomer), "missing")
	wantCode(t, err, utils.CodeNotFound)
}
