package pricing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"homeserve/config"
	"homeserve/models"
	"homeserve/utils"
)

func newTestCalculator() *Calculator {
	return NewCalculator(config.DefaultPricing())
}

// at builds a wall-clock time; 2025-01-13 is a Monday.
func at(date string, hour, minute int) time.Time {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}

func TestComputePricePeakHourWeekday(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()

	got, err := calc.ComputePrice(Input{
		BaseRate:      500,
		DurationHours: 1,
		ScheduledAt:   at("2025-01-13", 9, 0),
		Location:      "gurgaon",
		Tier:          models.TierExpert,
	})
	if err != nil {
		t.Fatalf("ComputePrice: %v", err)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"SurgeMultiplier", got.SurgeMultiplier, 1.20},
		{"SurgeAmount", got.SurgeAmount, 100},
		{"LocationAdjustment", got.LocationAdjustment, 150},
		{"ExperiencePremium", got.ExperiencePremium, 150},
		{"EmergencyFee", got.EmergencyFee, 0},
		{"RecurringDiscount", got.RecurringDiscount, 0},
		{"Subtotal", got.Subtotal, 900},
		{"PlatformFee", got.PlatformFee, 45},
		{"Tax", got.Tax, 8},
		{"Total", got.Total, 953},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestSurgeMultiplier(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()

	tests := []struct {
		name string
		when time.Time
		want float64
	}{
		{"weekday off-peak", at("2025-01-15", 14, 0), 1.0},
		{"morning peak start", at("2025-01-15", 8, 0), 1.20},
		{"morning peak last hour", at("2025-01-15", 10, 59), 1.20},
		{"just before morning peak", at("2025-01-15", 7, 59), 1.0},
		{"just after morning peak", at("2025-01-15", 11, 0), 1.0},
		{"evening peak", at("2025-01-15", 20, 30), 1.20},
		{"after evening peak", at("2025-01-15", 21, 0), 1.0},
		{"saturday off-peak", at("2025-01-18", 14, 0), 1.15},
		{"sunday off-peak", at("2025-01-19", 23, 0), 1.15},
		{"saturday peak takes max not product", at("2025-01-18", 9, 0), 1.20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calc.SurgeMultiplier(tt.when); got != tt.want {
				t.Errorf("SurgeMultiplier(%s): got %v, want %v", tt.when.Format(time.RFC1123), got, tt.want)
			}
		})
	}
}

func TestEmergencyFeeUsesUnsurgedBase(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()

	got, err := calc.ComputePrice(Input{
		BaseRate:      500,
		DurationHours: 1,
		ScheduledAt:   at("2025-01-13", 9, 0),
		Emergency:     true,
	})
	if err != nil {
		t.Fatalf("ComputePrice: %v", err)
	}
	if got.EmergencyFee != 150 {
		t.Errorf("EmergencyFee: got %v, want 150", got.EmergencyFee)
	}
	// 500 + 100 surge + 150 emergency = 750; fee 37.5 -> 38; tax 6.84 -> 7.
	if got.Subtotal != 750 || got.PlatformFee != 38 || got.Tax != 7 || got.Total != 795 {
		t.Errorf("breakdown: got subtotal=%v fee=%v tax=%v total=%v, want 750/38/7/795",
			got.Subtotal, got.PlatformFee, got.Tax, got.Total)
	}
}

func TestRecurringDiscountAppliedBeforeFee(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()

	got, err := calc.ComputePrice(Input{
		BaseRate:      250,
		DurationHours: 4,
		ScheduledAt:   at("2025-01-15", 14, 0),
		Recurrence:    &models.RecurrencePlan{Frequency: models.FrequencyWeekly, DurationMonths: 1},
	})
	if err != nil {
		t.Fatalf("ComputePrice: %v", err)
	}
	// 1000 base, 5% -> 50 off, subtotal 950, fee 47.5 -> 48, tax 8.64 -> 9.
	if got.RecurringDiscount != 50 {
		t.Errorf("RecurringDiscount: got %v, want 50", got.RecurringDiscount)
	}
	if got.Subtotal != 950 || got.PlatformFee != 48 || got.Tax != 9 || got.Total != 1007 {
		t.Errorf("breakdown: got subtotal=%v fee=%v tax=%v total=%v, want 950/48/9/1007",
			got.Subtotal, got.PlatformFee, got.Tax, got.Total)
	}
}

func TestRecurringDiscountRate(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()

	tests := []struct {
		name string
		plan *models.RecurrencePlan
		want float64
	}{
		{"no plan", nil, 0},
		{"weekly one month", &models.RecurrencePlan{Frequency: models.FrequencyWeekly, DurationMonths: 1}, 0.05},
		{"weekly three months", &models.RecurrencePlan{Frequency: models.FrequencyWeekly, DurationMonths: 3}, 0.06},
		{"biweekly six months", &models.RecurrencePlan{Frequency: models.FrequencyBiweekly, DurationMonths: 6}, 0.12},
		{"monthly twelve months", &models.RecurrencePlan{Frequency: models.FrequencyMonthly, DurationMonths: 12}, 0.24},
		{"monthly ongoing capped", &models.RecurrencePlan{Frequency: models.FrequencyMonthly, Ongoing: true}, 0.25},
		{"custom ongoing", &models.RecurrencePlan{Frequency: models.FrequencyCustom, Ongoing: true}, 0.125},
		{"four months uses three month tier", &models.RecurrencePlan{Frequency: models.FrequencyWeekly, DurationMonths: 4}, 0.06},
		{"end date only uses base tier", &models.RecurrencePlan{Frequency: models.FrequencyBiweekly, EndDate: "2025-03-01"}, 0.08},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.RecurringDiscountRate(tt.plan)
			if err != nil {
				t.Fatalf("RecurringDiscountRate: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecurringDiscountNeverExceedsCap(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()

	freqs := []models.Frequency{models.FrequencyWeekly, models.FrequencyBiweekly, models.FrequencyMonthly, models.FrequencyCustom}
	for _, f := range freqs {
		for months := 0; months <= 36; months++ {
			for _, ongoing := range []bool{false, true} {
				plan := &models.RecurrencePlan{Frequency: f, DurationMonths: months, Ongoing: ongoing}
				rate, err := calc.RecurringDiscountRate(plan)
				if err != nil {
					t.Fatalf("RecurringDiscountRate(%+v): %v", plan, err)
				}
				if rate > 0.25 {
					t.Errorf("RecurringDiscountRate(%+v): got %v, exceeds 0.25", plan, rate)
				}
			}
		}
	}
}

func TestTaxIsLeviedOnPlatformFeeOnly(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()

	for rate := 100.0; rate <= 3000; rate += 37 {
		for _, emergency := range []bool{false, true} {
			got, err := calc.ComputePrice(Input{
				BaseRate:      rate,
				DurationHours: 1.5,
				ScheduledAt:   at("2025-01-18", 19, 0),
				Location:      "noida",
				Tier:          models.TierMaster,
				Emergency:     emergency,
			})
			if err != nil {
				t.Fatalf("ComputePrice(rate=%v): %v", rate, err)
			}
			if want := roundUnit(0.18 * got.PlatformFee); got.Tax != want {
				t.Errorf("rate=%v: tax got %v, want round(0.18*%v)=%v", rate, got.Tax, got.PlatformFee, want)
			}
			if want := roundUnit(0.05 * got.Subtotal); got.PlatformFee != want {
				t.Errorf("rate=%v: platform fee got %v, want %v", rate, got.PlatformFee, want)
			}
			sum := got.BaseAmount + got.SurgeAmount + got.LocationAdjustment + got.ExperiencePremium +
				got.EmergencyFee - got.RecurringDiscount + got.PlatformFee + got.Tax
			if got.Total != sum {
				t.Errorf("rate=%v: total %v does not equal sum of line items %v", rate, got.Total, sum)
			}
		}
	}
}

func TestComputePriceIsDeterministic(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()

	in := Input{
		BaseRate:      333.33,
		DurationHours: 2.25,
		ScheduledAt:   at("2025-02-01", 18, 45),
		Location:      "Gurgaon",
		Tier:          models.TierIntermediate,
		Emergency:     true,
		Recurrence:    &models.RecurrencePlan{Frequency: models.FrequencyBiweekly, DurationMonths: 6},
	}
	first, err := calc.ComputePrice(in)
	if err != nil {
		t.Fatalf("ComputePrice: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := calc.ComputePrice(in)
		if err != nil {
			t.Fatalf("ComputePrice: %v", err)
		}
		if fmt.Sprintf("%#v", again) != fmt.Sprintf("%#v", first) {
			t.Fatalf("run %d: got %#v, want %#v", i, again, first)
		}
	}
}

func TestUnknownLocationHasNoPremium(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()

	got, err := calc.ComputePrice(Input{
		BaseRate:      400,
		DurationHours: 1,
		ScheduledAt:   at("2025-01-15", 14, 0),
		Location:      "atlantis",
	})
	if err != nil {
		t.Fatalf("ComputePrice: %v", err)
	}
	if got.LocationAdjustment != 0 {
		t.Errorf("LocationAdjustment: got %v, want 0", got.LocationAdjustment)
	}
}

func TestComputePriceValidation(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator()
	when := at("2025-01-15", 14, 0)

	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"zero duration", Input{BaseRate: 100, DurationHours: 0, ScheduledAt: when}, "durationHours"},
		{"negative rate", Input{BaseRate: -1, DurationHours: 1, ScheduledAt: when}, "baseRate"},
		{"missing schedule", Input{BaseRate: 100, DurationHours: 1}, "scheduledAt"},
		{"unknown tier", Input{BaseRate: 100, DurationHours: 1, ScheduledAt: when, Tier: "legend"}, "experienceTier"},
		{"unknown frequency", Input{BaseRate: 100, DurationHours: 1, ScheduledAt: when,
			Recurrence: &models.RecurrencePlan{Frequency: "daily"}}, "recurrence.frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.ComputePrice(tt.in)
			if !errors.Is(err, utils.ErrValidation) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			var ae *utils.AppError
			if errors.As(err, &ae) && ae.Field != tt.field {
				t.Errorf("field: got %q, want %q", ae.Field, tt.field)
			}
		})
	}
}
