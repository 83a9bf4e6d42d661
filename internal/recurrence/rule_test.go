package recurrence

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, value string, loc *time.Location) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05", value, loc)
	if err != nil {
		t.Fatalf("bad test fixture %q: %v", value, err)
	}
	return parsed
}

func TestNext(t *testing.T) {
	runs := []struct {
		name     string
		rule     Rule
		from     string
		expected string
	}{
		// Daily
		{"daily before today's slot", Daily(9, 0), "2024-05-14 08:00:00", "2024-05-14 09:00:00"},
		{"daily after today's slot", Daily(9, 0), "2024-05-14 09:30:00", "2024-05-15 09:00:00"},
		{"daily exactly on slot", Daily(9, 0), "2024-05-14 09:00:00", "2024-05-15 09:00:00"},
		{"daily across month end", Daily(23, 45), "2024-05-31 23:50:00", "2024-06-01 23:45:00"},
		{"daily across year end", Daily(0, 30), "2024-12-31 01:00:00", "2025-01-01 00:30:00"},

		// Weekly: 2024-05-14 is a Tuesday
		{"weekly same day before slot", Weekly(time.Tuesday, 9, 0), "2024-05-14 08:00:00", "2024-05-14 09:00:00"},
		{"weekly same day after slot", Weekly(time.Tuesday, 9, 0), "2024-05-14 10:00:00", "2024-05-21 09:00:00"},
		{"weekly exactly on slot", Weekly(time.Tuesday, 9, 0), "2024-05-14 09:00:00", "2024-05-21 09:00:00"},
		{"weekly from earlier weekday", Weekly(time.Friday, 17, 30), "2024-05-14 12:00:00", "2024-05-17 17:30:00"},
		{"weekly from later weekday", Weekly(time.Monday, 8, 15), "2024-05-14 12:00:00", "2024-05-20 08:15:00"},
		{"weekly sunday wrap", Weekly(time.Sunday, 6, 0), "2024-05-14 12:00:00", "2024-05-19 06:00:00"},

		// Monthly
		{"monthly before this month's slot", Monthly(15, 9, 0), "2024-05-14 08:00:00", "2024-05-15 09:00:00"},
		{"monthly after this month's slot", Monthly(10, 9, 0), "2024-05-14 08:00:00", "2024-06-10 09:00:00"},
		{"monthly exactly on slot", Monthly(14, 8, 0), "2024-05-14 08:00:00", "2024-06-14 08:00:00"},
		{"monthly day 31 in january", Monthly(31, 9, 0), "2024-01-15 00:00:00", "2024-01-31 09:00:00"},
		{"monthly day 31 clamps to leap february", Monthly(31, 9, 0), "2024-01-31 10:00:00", "2024-02-29 09:00:00"},
		{"monthly day 31 clamps to plain february", Monthly(31, 9, 0), "2025-01-31 10:00:00", "2025-02-28 09:00:00"},
		{"monthly day 30 clamps in february only", Monthly(30, 12, 0), "2024-02-01 00:00:00", "2024-02-29 12:00:00"},
		{"monthly december wraps to january", Monthly(5, 9, 0), "2024-12-06 00:00:00", "2025-01-05 09:00:00"},

		// Quarterly: anchored to January -> fires Jan, Apr, Jul, Oct
		{"quarterly next in cycle", Quarterly(15, 9, 0, time.January), "2024-05-14 08:00:00", "2024-07-15 09:00:00"},
		{"quarterly same month before slot", Quarterly(15, 9, 0, time.January), "2024-07-10 08:00:00", "2024-07-15 09:00:00"},
		{"quarterly same month after slot", Quarterly(15, 9, 0, time.January), "2024-07-15 10:00:00", "2024-10-15 09:00:00"},
		{"quarterly year wrap", Quarterly(15, 9, 0, time.January), "2024-11-01 00:00:00", "2025-01-15 09:00:00"},
		{"quarterly february anchor clamps", Quarterly(31, 9, 0, time.February), "2024-01-01 00:00:00", "2024-02-29 09:00:00"},
		{"quarterly mid-quarter anchor", Quarterly(1, 6, 30, time.March), "2024-03-02 00:00:00", "2024-06-01 06:30:00"},
	}

	for _, c := range runs {
		t.Run(c.name, func(t *testing.T) {
			from := mustTime(t, c.from, time.UTC)
			expected := mustTime(t, c.expected, time.UTC)
			actual := c.rule.Next(from, time.UTC)
			if !actual.Equal(expected) {
				t.Errorf("Next(%s): (expected) %v != %v (actual)", c.from, expected, actual)
			}
		})
	}
}

// Every computed instant must be strictly after its reference, even when the
// reference falls exactly on a rule boundary.
func TestNextStrictlyAfter(t *testing.T) {
	rules := []Rule{
		Daily(0, 0),
		Daily(23, 59),
		Weekly(time.Monday, 9, 0),
		Weekly(time.Sunday, 0, 0),
		Monthly(1, 0, 0),
		Monthly(31, 23, 59),
		Quarterly(31, 12, 0, time.January),
		Quarterly(1, 0, 0, time.December),
	}

	from := mustTime(t, "2024-01-01 00:00:00", time.UTC)
	for _, rule := range rules {
		ref := from
		for i := 0; i < 50; i++ {
			next := rule.Next(ref, time.UTC)
			if !next.After(ref) {
				t.Fatalf("rule %+v: Next(%v) = %v is not strictly after", rule, ref, next)
			}
			// Re-firing from the computed instant must move forward again.
			again := rule.Next(next, time.UTC)
			if !again.After(next) {
				t.Fatalf("rule %+v: re-fire from %v yielded %v", rule, next, again)
			}
			ref = next
		}
	}
}

func TestNextDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2024-03-10: 02:00 EST jumps to 03:00 EDT, so 02:30 does not exist.
	// The computed instant resolves forward into EDT.
	from := time.Date(2024, time.March, 10, 0, 0, 0, 0, ny)
	next := Daily(2, 30).Next(from, ny)
	if !next.After(from) {
		t.Fatalf("DST next %v is not after %v", next, from)
	}
	if next.Day() != 10 || next.Month() != time.March {
		t.Errorf("expected a resolved instant on Mar 10, got %v", next)
	}

	// 2024-11-03: 02:00 EDT falls back to 01:00 EST; 01:30 happens twice and
	// the earlier occurrence wins.
	from = time.Date(2024, time.November, 3, 0, 0, 0, 0, ny)
	next = Daily(1, 30).Next(from, ny)
	if next.Day() != 3 || next.Hour() != 1 || next.Minute() != 30 {
		t.Errorf("expected Nov 3 01:30 local, got %v", next)
	}
	if _, offset := next.Zone(); offset != -4*60*60 {
		t.Errorf("expected the earlier (EDT) occurrence, got offset %d", offset)
	}
}

func TestValidate(t *testing.T) {
	weekday := time.Tuesday
	day := 15
	badDay := 32

	cases := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"valid daily", Daily(9, 0), false},
		{"valid weekly", Weekly(time.Friday, 17, 30), false},
		{"valid monthly", Monthly(31, 9, 0), false},
		{"valid quarterly", Quarterly(1, 0, 0, time.April), false},
		{"hour out of range", Daily(24, 0), true},
		{"minute out of range", Daily(9, 60), true},
		{"daily with weekday", Rule{Frequency: FrequencyDaily, Hour: 9, Weekday: &weekday}, true},
		{"daily with day of month", Rule{Frequency: FrequencyDaily, Hour: 9, DayOfMonth: &day}, true},
		{"weekly without weekday", Rule{Frequency: FrequencyWeekly, Hour: 9}, true},
		{"weekly with day of month", Rule{Frequency: FrequencyWeekly, Hour: 9, Weekday: &weekday, DayOfMonth: &day}, true},
		{"monthly without day", Rule{Frequency: FrequencyMonthly, Hour: 9}, true},
		{"monthly with weekday", Rule{Frequency: FrequencyMonthly, Hour: 9, DayOfMonth: &day, Weekday: &weekday}, true},
		{"monthly day out of range", Rule{Frequency: FrequencyMonthly, Hour: 9, DayOfMonth: &badDay}, true},
		{"quarterly without anchor", Rule{Frequency: FrequencyQuarterly, Hour: 9, DayOfMonth: &day}, true},
		{"unknown frequency", Rule{Frequency: "hourly", Hour: 9}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.rule.Validate()
			if c.wantErr && err == nil {
				t.Errorf("expected validation error for %+v", c.rule)
			}
			if !c.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
