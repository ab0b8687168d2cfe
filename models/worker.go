package models

import "time"

// WorkerProfile is the pricing-relevant view of a service worker.
type WorkerProfile struct {
	ID                string             `bson:"id" json:"id"`
	Name              string             `bson:"name" json:"name"`
	ExperienceTier    ExperienceTier     `bson:"experienceTier" json:"experienceTier"`
	HourlyRates       map[string]float64 `bson:"hourlyRates,omitempty" json:"hourlyRates,omitempty"` // keyed by service id
	DefaultHourlyRate float64            `bson:"defaultHourlyRate" json:"defaultHourlyRate"`
	Currency          string             `bson:"currency" json:"currency"`
	Active            bool               `bson:"active" json:"active"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RateFor returns the hourly rate the worker charges for a service.
func (w WorkerProfile) RateFor(serviceID string) float64 {
	if r, ok := w.HourlyRates[serviceID]; ok && r > 0 {
		return r
	}
	return w.DefaultHourlyRate
}
