package pricing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"homeserve/config"
	"homeserve/models"
	"homeserve/utils"
)

// Input is everything the calculator needs to price one booking.
type Input struct {
	BaseRate      float64 // per hour
	DurationHours float64
	ScheduledAt   time.Time // local to the service area
	Location      string
	Tier          models.ExperienceTier
	Emergency     bool
	Recurrence    *models.RecurrencePlan
}

// Calculator computes itemized prices. It holds only immutable tables, so a
// single instance is safe for concurrent use.
type Calculator struct {
	rates          config.PricingConfig
	durationTiers  []int
	locationByKey  map[string]float64
	experienceTier map[models.ExperienceTier]float64
}

// NewCalculator copies the configured tables; later changes to cfg do not
// affect the calculator.
func NewCalculator(cfg config.PricingConfig) *Calculator {
	c := &Calculator{
		rates:          cfg,
		locationByKey:  make(map[string]float64, len(cfg.LocationPremiums)),
		experienceTier: make(map[models.ExperienceTier]float64, len(cfg.ExperiencePremiums)),
	}
	for k, v := range cfg.LocationPremiums {
		c.locationByKey[normalizeKey(k)] = v
	}
	for k, v := range cfg.ExperiencePremiums {
		c.experienceTier[models.ExperienceTier(normalizeKey(k))] = v
	}
	c.rates.DurationMultipliers = make(map[int]float64, len(cfg.DurationMultipliers))
	for months, m := range cfg.DurationMultipliers {
		c.rates.DurationMultipliers[months] = m
		c.durationTiers = append(c.durationTiers, months)
	}
	sort.Ints(c.durationTiers)
	c.rates.FrequencyDiscounts = make(map[string]float64, len(cfg.FrequencyDiscounts))
	for k, v := range cfg.FrequencyDiscounts {
		c.rates.FrequencyDiscounts[normalizeKey(k)] = v
	}
	return c
}

// ComputePrice returns the itemized breakdown for in. Identical inputs always
// produce an identical breakdown.
func (c *Calculator) ComputePrice(in Input) (models.PriceBreakdown, error) {
	if err := validateInput(in); err != nil {
		return models.PriceBreakdown{}, err
	}

	experience, err := c.ExperiencePremium(in.Tier)
	if err != nil {
		return models.PriceBreakdown{}, err
	}
	discountRate, err := c.RecurringDiscountRate(in.Recurrence)
	if err != nil {
		return models.PriceBreakdown{}, err
	}

	base := roundUnit(in.BaseRate * in.DurationHours)
	multiplier := c.SurgeMultiplier(in.ScheduledAt)
	surge := roundUnit(base * (multiplier - 1))
	location := c.LocationPremium(in.Location)

	var emergency float64
	if in.Emergency {
		// Always on the unsurged base.
		emergency = roundUnit(base * c.rates.EmergencyRate)
	}

	preDiscount := base + surge + location + experience + emergency
	discount := roundUnit(preDiscount * discountRate)
	subtotal := preDiscount - discount

	platformFee := roundUnit(subtotal * c.rates.PlatformFeeRate)
	// Tax is levied on the platform fee only, not on the subtotal.
	tax := roundUnit(platformFee * c.rates.TaxRate)

	return models.PriceBreakdown{
		BaseRate:              in.BaseRate,
		DurationHours:         in.DurationHours,
		BaseAmount:            base,
		SurgeMultiplier:       multiplier,
		SurgeAmount:           surge,
		LocationAdjustment:    location,
		ExperiencePremium:     experience,
		EmergencyFee:          emergency,
		RecurringDiscountRate: discountRate,
		RecurringDiscount:     discount,
		Subtotal:              subtotal,
		PlatformFee:           platformFee,
		Tax:                   tax,
		Total:                 subtotal + platformFee + tax,
		Currency:              c.rates.Currency,
	}, nil
}

// SurgeMultiplier is the larger of the peak-hour and weekend multipliers that
// apply at t, never below 1.
func (c *Calculator) SurgeMultiplier(t time.Time) float64 {
	m := 1.0
	if isPeakHour(t.Hour()) {
		m = math.Max(m, c.rates.PeakMultiplier)
	}
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		m = math.Max(m, c.rates.WeekendMultiplier)
	}
	return m
}

// peak windows are 08:00-10:59 and 18:00-20:59.
func isPeakHour(h int) bool {
	return (h >= 8 && h <= 10) || (h >= 18 && h <= 20)
}

// LocationPremium returns the fixed premium for a location key; unknown
// locations carry no premium.
func (c *Calculator) LocationPremium(location string) float64 {
	return c.locationByKey[normalizeKey(location)]
}

// ExperiencePremium returns the fixed premium for a tier. An empty tier is
// priced as beginner.
func (c *Calculator) ExperiencePremium(tier models.ExperienceTier) (float64, error) {
	if tier == "" {
		tier = models.TierBeginner
	}
	v, ok := c.experienceTier[models.ExperienceTier(normalizeKey(string(tier)))]
	if !ok {
		return 0, utils.NewValidationError("experienceTier", fmt.Sprintf("unknown experience tier %q", tier))
	}
	return v, nil
}

// RecurringDiscountRate is the frequency rate scaled by the plan's duration
// multiplier and capped at MaxRecurringRate. A nil plan has no discount.
func (c *Calculator) RecurringDiscountRate(plan *models.RecurrencePlan) (float64, error) {
	if plan == nil || plan.Frequency == "" {
		return 0, nil
	}
	rate, ok := c.rates.FrequencyDiscounts[normalizeKey(string(plan.Frequency))]
	if !ok {
		return 0, utils.NewValidationError("recurrence.frequency", fmt.Sprintf("unknown frequency %q", plan.Frequency))
	}
	scaled := rate * c.durationMultiplier(plan)
	if scaled > c.rates.MaxRecurringRate {
		scaled = c.rates.MaxRecurringRate
	}
	// Keep the rate itself free of float noise so breakdowns compare equal.
	return math.Round(scaled*10000) / 10000, nil
}

// durationMultiplier picks the largest configured tier that does not exceed
// the plan length; shorter plans use the smallest tier.
func (c *Calculator) durationMultiplier(plan *models.RecurrencePlan) float64 {
	if plan.Ongoing {
		return c.rates.OngoingMultiplier
	}
	if len(c.durationTiers) == 0 {
		return 1.0
	}
	chosen := c.durationTiers[0]
	for _, months := range c.durationTiers {
		if months <= plan.DurationMonths {
			chosen = months
		}
	}
	return c.rates.DurationMultipliers[chosen]
}

func validateInput(in Input) error {
	if math.IsNaN(in.BaseRate) || in.BaseRate < 0 {
		return utils.NewValidationError("baseRate", "must be a non-negative amount")
	}
	if math.IsNaN(in.DurationHours) || in.DurationHours <= 0 {
		return utils.NewValidationError("durationHours", "must be greater than zero")
	}
	if in.ScheduledAt.IsZero() {
		return utils.NewValidationError("scheduledAt", "is required")
	}
	return nil
}
