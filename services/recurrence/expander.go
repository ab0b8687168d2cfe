package recurrence

import (
	"fmt"
	"sort"
	"time"

	"homeserve/models"
	"homeserve/utils"
)

// MaxPageSize bounds a single page of occurrences.
const MaxPageSize = 366

// Page is one slice of an occurrence sequence. NextOffset resumes the
// sequence exactly where this page stopped.
type Page struct {
	Dates      []time.Time
	NextOffset int
	Done       bool
}

// schedule addresses the n-th occurrence directly, so any page can be
// produced without replaying the ones before it.
type schedule struct {
	nth func(n int) time.Time
	end time.Time // exclusive; zero means unbounded
}

// PageOf returns up to limit occurrences of plan starting at the given offset.
// The anchor's calendar date in its own location is the earliest possible
// occurrence.
func PageOf(plan models.RecurrencePlan, anchor time.Time, offset, limit int) (Page, error) {
	if offset < 0 {
		return Page{}, utils.NewValidationError("cursor", "must not be negative")
	}
	if limit <= 0 || limit > MaxPageSize {
		return Page{}, utils.NewValidationError("pageSize", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}
	s, err := build(plan, anchor)
	if err != nil {
		return Page{}, err
	}

	page := Page{NextOffset: offset}
	for len(page.Dates) < limit {
		d := s.nth(page.NextOffset)
		if s.past(d) {
			page.Done = true
			return page, nil
		}
		page.Dates = append(page.Dates, d)
		page.NextOffset++
	}
	page.Done = s.past(s.nth(page.NextOffset))
	return page, nil
}

// Expand materializes a bounded plan. Ongoing plans without an end date
// must be read with PageOf instead.
func Expand(plan models.RecurrencePlan, anchor time.Time) ([]time.Time, error) {
	s, err := build(plan, anchor)
	if err != nil {
		return nil, err
	}
	if s.end.IsZero() {
		return nil, utils.NewValidationError("recurrence.ongoing", "ongoing plans must be expanded page by page")
	}
	var out []time.Time
	for n := 0; ; n++ {
		d := s.nth(n)
		if s.past(d) {
			return out, nil
		}
		out = append(out, d)
	}
}

func (s schedule) past(d time.Time) bool {
	return !s.end.IsZero() && !d.Before(s.end)
}

// Validate checks that plan can be expanded.
func Validate(plan models.RecurrencePlan) error {
	switch plan.Frequency {
	case models.FrequencyWeekly, models.FrequencyBiweekly, models.FrequencyCustom:
		if len(plan.DaysOfWeek) == 0 {
			return utils.NewValidationError("recurrence.daysOfWeek", "at least one day is required")
		}
		for _, d := range plan.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return utils.NewValidationError("recurrence.daysOfWeek", fmt.Sprintf("invalid weekday %d", d))
			}
		}
	case models.FrequencyMonthly:
		if plan.DayOfMonth < 1 || plan.DayOfMonth > 31 {
			return utils.NewValidationError("recurrence.dayOfMonth", "must be between 1 and 31")
		}
	default:
		return utils.NewValidationError("recurrence.frequency", fmt.Sprintf("unknown frequency %q", plan.Frequency))
	}
	if plan.DurationMonths < 0 {
		return utils.NewValidationError("recurrence.durationMonths", "must not be negative")
	}
	if !plan.Ongoing && plan.DurationMonths == 0 && plan.EndDate == "" {
		return utils.NewValidationError("recurrence", "one of durationMonths, endDate or ongoing is required")
	}
	if plan.EndDate != "" {
		if _, err := time.Parse(models.DateLayout, plan.EndDate); err != nil {
			return utils.NewValidationError("recurrence.endDate", "must be YYYY-MM-DD")
		}
	}
	return nil
}

func build(plan models.RecurrencePlan, anchor time.Time) (schedule, error) {
	if err := Validate(plan); err != nil {
		return schedule{}, err
	}
	if anchor.IsZero() {
		return schedule{}, utils.NewValidationError("anchorDate", "is required")
	}
	start := midnight(anchor)

	s := schedule{end: boundary(plan, start)}
	switch plan.Frequency {
	case models.FrequencyMonthly:
		s.nth = monthly(start, plan.DayOfMonth)
	case models.FrequencyBiweekly:
		s.nth = weekly(start, plan.DaysOfWeek, 14)
	default:
		s.nth = weekly(start, plan.DaysOfWeek, 7)
	}
	return s, nil
}

// boundary is the exclusive end of the series: the earlier of
// start+durationMonths and the day after EndDate. Adding months clamps to the
// target month's last day, so a Jan 31 start ends on Feb 28.
func boundary(plan models.RecurrencePlan, start time.Time) time.Time {
	var end time.Time
	if plan.DurationMonths > 0 && !plan.Ongoing {
		end = addMonths(start, plan.DurationMonths)
	}
	if plan.EndDate != "" {
		d, _ := time.Parse(models.DateLayout, plan.EndDate)
		explicit := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, start.Location()).AddDate(0, 0, 1)
		if end.IsZero() || explicit.Before(end) {
			end = explicit
		}
	}
	return end
}

// weekly orders the selected days by their first occurrence on/after start.
// All first occurrences fall inside one week and every step is at least a
// week, so taking them round-robin keeps the sequence sorted.
func weekly(start time.Time, days []time.Weekday, step int) func(int) time.Time {
	seen := make(map[time.Weekday]bool, len(days))
	var offsets []int
	for _, d := range days {
		if seen[d] {
			continue
		}
		seen[d] = true
		offsets = append(offsets, (int(d)-int(start.Weekday())+7)%7)
	}
	sort.Ints(offsets)

	return func(n int) time.Time {
		k := len(offsets)
		return start.AddDate(0, 0, offsets[n%k]+(n/k)*step)
	}
}

// monthly places one occurrence per calendar month on dayOfMonth, clamped to
// the month's last day.
func monthly(start time.Time, dayOfMonth int) func(int) time.Time {
	first := 0
	if clampedDay(start.Year(), start.Month(), dayOfMonth) < start.Day() {
		first = 1
	}
	return func(n int) time.Time {
		m := time.Date(start.Year(), start.Month()+time.Month(first+n), 1, 0, 0, 0, 0, start.Location())
		return time.Date(m.Year(), m.Month(), clampedDay(m.Year(), m.Month(), dayOfMonth), 0, 0, 0, 0, start.Location())
	}
}

func addMonths(t time.Time, n int) time.Time {
	m := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	return time.Date(m.Year(), m.Month(), clampedDay(m.Year(), m.Month(), t.Day()), 0, 0, 0, 0, t.Location())
}

func clampedDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
