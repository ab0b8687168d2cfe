package booking

import "homeserve/models"

// transitions is the complete lifecycle table. Terminal statuses map to an
// empty set.
var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.StatusPending:    {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:  {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted, models.StatusCancelled},
	models.StatusCompleted:  {},
	models.StatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// KnownStatus reports whether s is one of the lifecycle statuses.
func KnownStatus(s models.BookingStatus) bool {
	_, ok := transitions[s]
	return ok
}

type noticeRule struct {
	template   string
	recipients func(b models.Booking, actor models.Party) []string
}

func toCustomer(b models.Booking, _ models.Party) []string { return []string{b.CustomerID} }
func toWorker(b models.Booking, _ models.Party) []string   { return []string{b.WorkerID} }

// toCounterparty notifies whoever did not act; an admin action notifies both.
func toCounterparty(b models.Booking, actor models.Party) []string {
	switch actor {
	case models.PartyCustomer:
		return []string{b.WorkerID}
	case models.PartyWorker:
		return []string{b.CustomerID}
	}
	return []string{b.CustomerID, b.WorkerID}
}

// statusNotices routes notifications by destination status. Statuses without
// an entry notify nobody.
var statusNotices = map[models.BookingStatus]noticeRule{
	models.StatusConfirmed: {template: "booking_confirmed", recipients: toCustomer},
	models.StatusCancelled: {template: "booking_cancelled", recipients: toCounterparty},
	models.StatusCompleted: {template: "booking_completed", recipients: toCustomer},
}

var (
	createdNotice  = noticeRule{template: "booking_requested", recipients: toWorker}
	modifiedNotice = noticeRule{template: "booking_modified", recipients: toWorker}
)

func (r noticeRule) build(b models.Booking, actor models.Party) *models.Notice {
	n := &models.Notice{Template: r.template, Recipients: r.recipients(b, actor)}
	if b.Status == models.StatusCancelled {
		n.CancelledBy = actor
	}
	return n
}

func noticeFor(b models.Booking, target models.BookingStatus, actor models.Party) *models.Notice {
	rule, ok := statusNotices[target]
	if !ok {
		return nil
	}
	b.Status = target
	return rule.build(b, actor)
}
