package recurrence

import (
	"strings"
	"time"
)

// Rule is the parsed form of the compact recurrence grammar:
//
//	FREQ=<DAILY|WEEKLY|MONTHLY>[;BYDAY=<comma-separated 2-letter codes>][;UNTIL=<date>]
//
// Anything outside this subset is treated as malformed, and a malformed rule is
// treated as if no rule was given at all (non-fatal).
type Rule struct {
	Freq  string
	ByDay []time.Weekday
	Until *time.Time
}

var weekdayCodes = map[string]time.Weekday{
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
	"SU": time.Sunday,
}

var untilTimestampLayouts = []string{
	time.RFC3339,
	"20060102T150405Z",
	"20060102T150405",
}

var untilDateLayouts = []string{
	"2006-01-02",
	"20060102",
}

// Parse parses the compact rule string. loc is used for date-only UNTIL values,
// which are treated as end-of-day inclusive in that location. ok is false when
// the rule is empty or malformed.
func Parse(rule string, loc *time.Location) (Rule, bool) {
	var r Rule
	if rule == "" {
		return r, false
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, part := range strings.Split(rule, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found || value == "" {
			return Rule{}, false
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FREQ":
			freq := strings.ToUpper(strings.TrimSpace(value))
			if freq != "DAILY" && freq != "WEEKLY" && freq != "MONTHLY" {
				return Rule{}, false
			}
			r.Freq = freq
		case "BYDAY":
			for _, code := range strings.Split(value, ",") {
				wd, ok := weekdayCodes[strings.ToUpper(strings.TrimSpace(code))]
				if !ok {
					return Rule{}, false
				}
				r.ByDay = append(r.ByDay, wd)
			}
		case "UNTIL":
			until, ok := parseUntil(strings.TrimSpace(value), loc)
			if !ok {
				return Rule{}, false
			}
			r.Until = &until
		default:
			return Rule{}, false
		}
	}

	if r.Freq == "" {
		return Rule{}, false
	}
	return r, true
}

// parseUntil accepts both full timestamps and bare dates. A bare date is
// inclusive: the cutoff is the end of that day.
func parseUntil(value string, loc *time.Location) (time.Time, bool) {
	for _, layout := range untilTimestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	for _, layout := range untilDateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc), true
		}
	}
	return time.Time{}, false
}

// NextOccurrence projects a recurring event forward: it returns the earliest
// occurrence of the rule at or after referenceNow, preserving the time-of-day
// of originalStart. It is pure: identical inputs always yield identical output.
//
// Fallback behavior:
//   - empty or malformed rule: originalStart unchanged
//   - originalStart at or after referenceNow: originalStart unchanged
//   - every target weekday excluded by UNTIL: originalStart unchanged
func NextOccurrence(rule string, originalStart, referenceNow time.Time) time.Time {
	if rule == "" || !originalStart.Before(referenceNow) {
		return originalStart
	}

	parsed, ok := Parse(rule, originalStart.Location())
	if !ok {
		return originalStart
	}

	targets := parsed.ByDay
	if len(targets) == 0 {
		targets = []time.Weekday{originalStart.Weekday()}
	}

	var best time.Time
	for _, wd := range targets {
		candidate := nextWeekdayAtTime(referenceNow, wd, originalStart)
		if parsed.Until != nil && candidate.After(*parsed.Until) {
			continue
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}

	if best.IsZero() {
		return originalStart
	}
	return best
}

// nextWeekdayAtTime computes the earliest date-time at or after ref that falls
// on the given weekday with the hour/minute/second of timeOf.
func nextWeekdayAtTime(ref time.Time, wd time.Weekday, timeOf time.Time) time.Time {
	loc := timeOf.Location()
	refLocal := ref.In(loc)

	candidate := time.Date(
		refLocal.Year(), refLocal.Month(), refLocal.Day(),
		timeOf.Hour(), timeOf.Minute(), timeOf.Second(), 0, loc,
	)
	daysAhead := (int(wd) - int(candidate.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, daysAhead)

	// Same weekday but the time-of-day already passed: push a full week out.
	if candidate.Before(ref) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
