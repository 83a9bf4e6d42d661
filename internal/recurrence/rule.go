// Package recurrence models when a report schedule fires next.
//
// A Rule is a frequency plus the fields that frequency needs: weekly rules
// carry a weekday, monthly and quarterly rules carry a day of month. The
// constructors only set the relevant field, so a well-formed rule cannot
// carry a contradictory combination. Next is pure and always returns an
// instant strictly after the reference, so a schedule can never re-fire on
// the exact boundary it was computed from.
package recurrence

import (
	"fmt"
	"time"
)

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

type Rule struct {
	Frequency Frequency
	Hour      int
	Minute    int

	// Weekday is set iff Frequency is weekly.
	Weekday *time.Weekday

	// DayOfMonth (1-31) is set iff Frequency is monthly or quarterly. Days
	// past the end of a target month clamp to that month's last day.
	DayOfMonth *int

	// AnchorMonth fixes the quarter phase for quarterly rules: the rule fires
	// in months congruent to AnchorMonth modulo 3. Ignored otherwise.
	AnchorMonth time.Month
}

func Daily(hour, minute int) Rule {
	return Rule{Frequency: FrequencyDaily, Hour: hour, Minute: minute}
}

func Weekly(weekday time.Weekday, hour, minute int) Rule {
	return Rule{Frequency: FrequencyWeekly, Hour: hour, Minute: minute, Weekday: &weekday}
}

func Monthly(dayOfMonth, hour, minute int) Rule {
	return Rule{Frequency: FrequencyMonthly, Hour: hour, Minute: minute, DayOfMonth: &dayOfMonth}
}

func Quarterly(dayOfMonth, hour, minute int, anchor time.Month) Rule {
	return Rule{Frequency: FrequencyQuarterly, Hour: hour, Minute: minute, DayOfMonth: &dayOfMonth, AnchorMonth: anchor}
}

func (r Rule) Validate() error {
	if r.Hour < 0 || r.Hour > 23 {
		return fmt.Errorf("hour must be between 0 and 23, got %d", r.Hour)
	}
	if r.Minute < 0 || r.Minute > 59 {
		return fmt.Errorf("minute must be between 0 and 59, got %d", r.Minute)
	}

	switch r.Frequency {
	case FrequencyDaily:
		if r.Weekday != nil || r.DayOfMonth != nil {
			return fmt.Errorf("daily rules must not set day_of_week or day_of_month")
		}
	case FrequencyWeekly:
		if r.Weekday == nil {
			return fmt.Errorf("weekly rules require day_of_week")
		}
		if r.DayOfMonth != nil {
			return fmt.Errorf("weekly rules must not set day_of_month")
		}
		if *r.Weekday < time.Sunday || *r.Weekday > time.Saturday {
			return fmt.Errorf("invalid day_of_week: %d", *r.Weekday)
		}
	case FrequencyMonthly, FrequencyQuarterly:
		if r.DayOfMonth == nil {
			return fmt.Errorf("%s rules require day_of_month", r.Frequency)
		}
		if r.Weekday != nil {
			return fmt.Errorf("%s rules must not set day_of_week", r.Frequency)
		}
		if *r.DayOfMonth < 1 || *r.DayOfMonth > 31 {
			return fmt.Errorf("day_of_month must be between 1 and 31, got %d", *r.DayOfMonth)
		}
		if r.Frequency == FrequencyQuarterly && (r.AnchorMonth < time.January || r.AnchorMonth > time.December) {
			return fmt.Errorf("quarterly rules require an anchor month")
		}
	default:
		return fmt.Errorf("unknown frequency: %q", r.Frequency)
	}

	return nil
}

// Next returns the first instant matching the rule strictly after the
// reference instant, evaluated in loc. Local times made nonexistent by a DST
// spring-forward resolve forward to the next valid instant (time.Date
// normalization); ambiguous fall-back times take the earlier occurrence.
func (r Rule) Next(after time.Time, loc *time.Location) time.Time {
	after = after.In(loc)

	switch r.Frequency {
	case FrequencyDaily:
		return r.nextDaily(after, loc)
	case FrequencyWeekly:
		return r.nextWeekly(after, loc)
	case FrequencyMonthly:
		return r.nextMonthly(after, loc, 1, after.Month())
	case FrequencyQuarterly:
		return r.nextMonthly(after, loc, 3, r.AnchorMonth)
	}

	// Validate rejects unknown frequencies before a rule reaches here.
	return time.Time{}
}

func (r Rule) nextDaily(after time.Time, loc *time.Location) time.Time {
	c := time.Date(after.Year(), after.Month(), after.Day(), r.Hour, r.Minute, 0, 0, loc)
	if !c.After(after) {
		c = time.Date(after.Year(), after.Month(), after.Day()+1, r.Hour, r.Minute, 0, 0, loc)
	}
	return c
}

func (r Rule) nextWeekly(after time.Time, loc *time.Location) time.Time {
	for days := 0; ; days++ {
		c := time.Date(after.Year(), after.Month(), after.Day()+days, r.Hour, r.Minute, 0, 0, loc)
		if c.Weekday() == *r.Weekday && c.After(after) {
			return c
		}
	}
}

// nextMonthly walks candidate months in fixed steps from startMonth until it
// finds a strictly-future instant, clamping the day to the month's length.
func (r Rule) nextMonthly(after time.Time, loc *time.Location, stepMonths int, startMonth time.Month) time.Time {
	// Start far enough back that the first strictly-future candidate is
	// never skipped, whatever the anchor phase.
	year, month := after.Year()-1, startMonth

	for i := 0; ; i += stepMonths {
		c := dayInMonth(year, month, i, *r.DayOfMonth, r.Hour, r.Minute, loc)
		if c.After(after) {
			return c
		}
	}
}

// dayInMonth resolves day d within the month offset months after (year,
// month), clamping d to the month's last day.
func dayInMonth(year int, month time.Month, offset, d, hour, minute int, loc *time.Location) time.Time {
	first := time.Date(year, time.Month(int(month)+offset), 1, 0, 0, 0, 0, loc)
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hour, minute, 0, 0, loc)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
