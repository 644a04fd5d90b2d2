package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tazhate/reminderbot/internal/domain"
)

// indexed by domain.Weekday, Monday first
var weekdays = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// Option returns the recurrence of s without a start time. DTSTART carries the
// time of day.
func Option(s domain.Schedule) (*rrule.ROption, error) {
	switch s := s.(type) {
	case domain.Daily:
		return &rrule.ROption{Freq: rrule.DAILY}, nil
	case domain.Weekly:
		if !s.Day.Valid() {
			return nil, fmt.Errorf("%w: %d", domain.ErrInvalidDay, s.Day)
		}
		return &rrule.ROption{Freq: rrule.WEEKLY, Byweekday: []rrule.Weekday{weekdays[s.Day]}}, nil
	case domain.Monthly:
		return &rrule.ROption{Freq: rrule.MONTHLY, Bymonthday: []int{s.Day}}, nil
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnknownKind, s)
	}
}

// RRule renders s as an RFC 5545 RRULE value, e.g. FREQ=WEEKLY;BYDAY=TU
func RRule(s domain.Schedule) (string, error) {
	opt, err := Option(s)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// FirstOccurrence returns the first time s fires strictly after the given
// instant, on the wall clock of loc.
func FirstOccurrence(s domain.Schedule, after time.Time, loc *time.Location) (time.Time, error) {
	opt, err := Option(s)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	at := s.At()
	opt.Dtstart = after.In(loc).Truncate(time.Minute)
	opt.Byhour = []int{at.Hour}
	opt.Byminute = []int{at.Minute}
	opt.Bysecond = []int{0}

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, fmt.Errorf("build rrule: %w", err)
	}
	next := r.After(after, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("no occurrence after %s", after.Format(time.RFC3339))
	}
	return next, nil
}
