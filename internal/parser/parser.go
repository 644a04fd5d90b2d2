// Package parser turns sentences like "Daily at 07:05 remind me to take my
// medication" into a domain.Recurrence.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tazhate/reminderbot/internal/domain"
)

var (
	ErrNoTimeFound         = errors.New("no time found")
	ErrInvalidTime         = errors.New("invalid time")
	ErrEmptyMessage        = errors.New("empty message")
	ErrNoRecurrencePattern = errors.New("no recurrence pattern")
	ErrInvalidDay          = errors.New("invalid day")
)

// Examples are shown to the user whenever parsing fails
var Examples = []string{
	"Daily at 07:05 remind me to...",
	"Every Monday at 10:00...",
	"On the 3rd day of the month at 11:00...",
}

var (
	timeRe    = regexp.MustCompile(`(?i)(?:\bat\s*)?\b(\d{1,2}):(\d{2})\b`)
	dailyRe   = regexp.MustCompile(`(?i)\b(?:daily|every\s+day|each\s+day)\b`)
	weeklyRe  = regexp.MustCompile(`(?i)\b(?:every|each|on)\s+(` + dayAlternation() + `)\b`)
	monthlyRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s*(?:day\s+of\s+the\s+month|day\s+of\s+month|of\s+the\s+month|of\s+month|month)\b`)
)

// Ordered longest first within each day so "tues" is not cut to "tue".
var dayNames = []struct {
	name string
	day  domain.Weekday
}{
	{"monday", domain.Monday}, {"mon", domain.Monday},
	{"tuesday", domain.Tuesday}, {"tues", domain.Tuesday}, {"tue", domain.Tuesday},
	{"wednesday", domain.Wednesday}, {"wed", domain.Wednesday},
	{"thursday", domain.Thursday}, {"thurs", domain.Thursday}, {"thur", domain.Thursday}, {"thu", domain.Thursday},
	{"friday", domain.Friday}, {"fri", domain.Friday},
	{"saturday", domain.Saturday}, {"sat", domain.Saturday},
	{"sunday", domain.Sunday}, {"sun", domain.Sunday},
}

var introducers = []string{
	"remind me to", "remind to", "reminder to",
	"write to", "notify me to", "notify to",
	"remind that", "write that", "notify that",
}

var introducerRes = compileIntroducers()

func dayAlternation() string {
	names := make([]string, len(dayNames))
	for i, d := range dayNames {
		names[i] = d.name
	}
	return strings.Join(names, "|")
}

func compileIntroducers() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(introducers))
	for i, phrase := range introducers {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	}
	return res
}

// matcher reports whether text carries its recurrence pattern. masked is
// text with the time token blanked out.
type matcher func(text, masked string, at domain.TimeOfDay) (domain.Schedule, bool, error)

// Evaluated in order; the first match wins regardless of where it appears in the text.
var matchers = []matcher{matchDaily, matchWeekly, matchMonthly}

// Parse extracts the time, the message and the recurrence from text
func Parse(text string) (domain.Recurrence, error) {
	loc := timeRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return domain.Recurrence{}, ErrNoTimeFound
	}

	hour, _ := strconv.Atoi(text[loc[2]:loc[3]])
	minute, _ := strconv.Atoi(text[loc[4]:loc[5]])
	at, err := domain.NewTimeOfDay(hour, minute)
	if err != nil {
		return domain.Recurrence{}, fmt.Errorf("%w: %s", ErrInvalidTime, text[loc[2]:loc[5]])
	}

	message := extractMessage(text, loc[1])
	if message == "" {
		return domain.Recurrence{}, ErrEmptyMessage
	}

	masked := text[:loc[0]] + strings.Repeat(" ", loc[1]-loc[0]) + text[loc[1]:]
	for _, match := range matchers {
		schedule, ok, err := match(text, masked, at)
		if err != nil {
			return domain.Recurrence{}, err
		}
		if ok {
			return domain.NewRecurrence(schedule, message)
		}
	}
	return domain.Recurrence{}, ErrNoRecurrencePattern
}

func matchDaily(text, _ string, at domain.TimeOfDay) (domain.Schedule, bool, error) {
	if !dailyRe.MatchString(text) {
		return nil, false, nil
	}
	return domain.Daily{TimeOfDay: at}, true, nil
}

func matchWeekly(text, _ string, at domain.TimeOfDay) (domain.Schedule, bool, error) {
	m := weeklyRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false, nil
	}
	label := strings.ToLower(m[1])
	for _, d := range dayNames {
		if d.name == label {
			s, err := domain.NewWeekly(d.day, label, at.Hour, at.Minute)
			return s, err == nil, err
		}
	}
	return nil, false, nil
}

func matchMonthly(_, masked string, at domain.TimeOfDay) (domain.Schedule, bool, error) {
	m := monthlyRe.FindStringSubmatch(masked)
	if m == nil {
		return nil, false, nil
	}
	day, _ := strconv.Atoi(m[1])
	s, err := domain.NewMonthly(day, at.Hour, at.Minute)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	return s, true, nil
}

// extractMessage prefers the text after an introducer phrase and falls back
// to whatever follows the time token.
func extractMessage(text string, timeEnd int) string {
	for _, re := range introducerRes {
		if loc := re.FindStringIndex(text); loc != nil {
			return cleanMessage(text[loc[1]:])
		}
	}

	rest := strings.TrimSpace(text[timeEnd:])
	for _, word := range []string{"remind", "write", "notify"} {
		if hasPrefixFold(rest, word) {
			rest = strings.TrimSpace(rest[len(word):])
			break
		}
	}
	for _, word := range []string{"me ", "to "} {
		if hasPrefixFold(rest, word) {
			rest = strings.TrimSpace(rest[len(word):])
		}
	}
	if hasPrefixFold(rest, "to ") {
		rest = rest[len("to "):]
	}
	return cleanMessage(rest)
}

func cleanMessage(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".")
	s = strings.TrimSpace(s)
	return domain.Capitalize(s)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
