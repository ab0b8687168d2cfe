package models

// ReminderPayload is the asynq payload for an upcoming-booking reminder.
type ReminderPayload struct {
	BookingID   string `json:"bookingId"`
	CustomerID  string `json:"customerId"`
	WorkerID    string `json:"workerId"`
	ServiceDate string `json:"serviceDate"`
	ServiceTime string `json:"serviceTime"`
	FireDate    string `json:"fireDate"` // RFC3339
}
