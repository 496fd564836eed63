package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	// 2025-09-02 is a Tuesday, 2025-10-01 is a Wednesday.
	pastTuesday := date(2025, time.September, 2, 10, 30, 0)
	wednesdayNow := date(2025, time.October, 1, 9, 0, 0)

	tests := []struct {
		name  string
		rule  string
		start time.Time
		now   time.Time
		want  time.Time
	}{
		{
			name:  "no rule returns start unchanged",
			rule:  "",
			start: pastTuesday,
			now:   wednesdayNow,
			want:  pastTuesday,
		},
		{
			name:  "future start needs no projection",
			rule:  "FREQ=WEEKLY;BYDAY=MO",
			start: date(2025, time.December, 1, 9, 0, 0),
			now:   wednesdayNow,
			want:  date(2025, time.December, 1, 9, 0, 0),
		},
		{
			name:  "multiple BYDAY returns nearest weekday at original time",
			rule:  "FREQ=WEEKLY;BYDAY=TU,TH;UNTIL=2025-12-12",
			start: pastTuesday,
			now:   wednesdayNow,
			// Wednesday reference -> following Thursday, original time-of-day
			want: date(2025, time.October, 2, 10, 30, 0),
		},
		{
			name:  "no BYDAY defaults to weekday of start",
			rule:  "FREQ=WEEKLY",
			start: pastTuesday,
			now:   wednesdayNow,
			// next Tuesday after Wednesday Oct 1
			want: date(2025, time.October, 7, 10, 30, 0),
		},
		{
			name:  "UNTIL already passed falls back to start",
			rule:  "FREQ=WEEKLY;BYDAY=TU,TH;UNTIL=2025-09-15",
			start: pastTuesday,
			now:   wednesdayNow,
			want:  pastTuesday,
		},
		{
			name:  "date-only UNTIL is end-of-day inclusive",
			rule:  "FREQ=WEEKLY;BYDAY=TH;UNTIL=2025-10-02",
			start: pastTuesday,
			now:   wednesdayNow,
			// Thursday Oct 2 10:30 is before Oct 2 23:59:59, so still included
			want: date(2025, time.October, 2, 10, 30, 0),
		},
		{
			name:  "same weekday later time stays on same day",
			rule:  "FREQ=WEEKLY;BYDAY=WE",
			start: pastTuesday,
			now:   wednesdayNow,
			// Wednesday 09:00 reference, 10:30 slot still ahead today
			want: date(2025, time.October, 1, 10, 30, 0),
		},
		{
			name:  "same weekday earlier time moves a week out",
			rule:  "FREQ=WEEKLY;BYDAY=WE",
			start: pastTuesday,
			now:   date(2025, time.October, 1, 11, 0, 0),
			want:  date(2025, time.October, 8, 10, 30, 0),
		},
		{
			name:  "malformed rule is treated as absent",
			rule:  "EVERY_WEEK_OR_SO",
			start: pastTuesday,
			now:   wednesdayNow,
			want:  pastTuesday,
		},
		{
			name:  "unknown BYDAY code is treated as absent",
			rule:  "FREQ=WEEKLY;BYDAY=XX",
			start: pastTuesday,
			now:   wednesdayNow,
			want:  pastTuesday,
		},
		{
			name:  "unknown FREQ is treated as absent",
			rule:  "FREQ=HOURLY",
			start: pastTuesday,
			now:   wednesdayNow,
			want:  pastTuesday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(tt.rule, tt.start, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextOccurrenceDeterministic(t *testing.T) {
	rule := "FREQ=WEEKLY;BYDAY=MO,FR;UNTIL=2026-01-01"
	start := date(2025, time.September, 1, 8, 0, 0)
	now := date(2025, time.October, 1, 12, 0, 0)

	first := NextOccurrence(rule, start, now)
	for i := 0; i < 10; i++ {
		if got := NextOccurrence(rule, start, now); !got.Equal(first) {
			t.Fatalf("NextOccurrence not deterministic: %s vs %s", got, first)
		}
	}

	if first.Before(now) {
		t.Errorf("projected occurrence %s is before reference %s", first, now)
	}
}

func TestParseUntilFullTimestamp(t *testing.T) {
	r, ok := Parse("FREQ=DAILY;UNTIL=20251212T235959Z", time.UTC)
	if !ok {
		t.Fatal("expected rule to parse")
	}
	if r.Until == nil {
		t.Fatal("expected UNTIL to be set")
	}
	want := date(2025, time.December, 12, 23, 59, 59)
	if !r.Until.Equal(want) {
		t.Errorf("Until = %s, want %s", r.Until, want)
	}
}
