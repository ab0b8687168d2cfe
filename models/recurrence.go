package models

import "time"

// Frequency of a recurring booking request.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyCustom   Frequency = "custom"
)

// RecurrencePlan describes a repeating booking request. Each occurrence
// becomes its own Booking; the plan is only kept as a reference.
type RecurrencePlan struct {
	Frequency      Frequency      `bson:"frequency" json:"frequency"`
	DaysOfWeek     []time.Weekday `bson:"daysOfWeek,omitempty" json:"daysOfWeek,omitempty"`
	DayOfMonth     int            `bson:"dayOfMonth,omitempty" json:"dayOfMonth,omitempty"`
	DurationMonths int            `bson:"durationMonths,omitempty" json:"durationMonths,omitempty"`
	Ongoing        bool           `bson:"ongoing" json:"ongoing"`
	EndDate        string         `bson:"endDate,omitempty" json:"endDate,omitempty"` // "YYYY-MM-DD", inclusive
}
