package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

type Kind string

const (
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
)

var (
	ErrInvalidTime = errors.New("invalid time of day")
	ErrInvalidDay  = errors.New("invalid day")
	ErrUnknownKind = errors.New("unknown schedule kind")
)

// Weekday represents a day of the week (0 = Monday, ..., 6 = Sunday)
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// String returns the full English name of the day
func (d Weekday) String() string {
	if d.Valid() {
		return weekdayNames[d]
	}
	return fmt.Sprintf("Weekday(%d)", int(d))
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// TimeOfDay is a wall-clock hour and minute
type TimeOfDay struct {
	Hour   int
	Minute int
}

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %d:%02d", ErrInvalidTime, hour, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// String formats the time as HH:MM
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Schedule is one of Daily, Weekly or Monthly. Values are only valid when
// built by their constructors or decoded with DecodeParams.
type Schedule interface {
	Kind() Kind
	At() TimeOfDay
	Describe() string
	isSchedule()
}

// Daily fires every day at a fixed time
type Daily struct {
	TimeOfDay
}

func NewDaily(hour, minute int) (Daily, error) {
	t, err := NewTimeOfDay(hour, minute)
	if err != nil {
		return Daily{}, err
	}
	return Daily{TimeOfDay: t}, nil
}

func (Daily) Kind() Kind {
	return KindDaily
}

func (s Daily) At() TimeOfDay {
	return s.TimeOfDay
}

func (s Daily) Describe() string {
	return "Daily at " + s.TimeOfDay.String()
}

func (Daily) isSchedule() {}

// Weekly fires once a week on Day. Label keeps the day word the user
// typed ("mon", "friday") and is only used for rendering.
type Weekly struct {
	Day   Weekday
	Label string
	TimeOfDay
}

func NewWeekly(day Weekday, label string, hour, minute int) (Weekly, error) {
	if !day.Valid() {
		return Weekly{}, fmt.Errorf("%w: day of week %d", ErrInvalidDay, int(day))
	}
	t, err := NewTimeOfDay(hour, minute)
	if err != nil {
		return Weekly{}, err
	}
	return Weekly{Day: day, Label: strings.ToLower(strings.TrimSpace(label)), TimeOfDay: t}, nil
}

func (Weekly) Kind() Kind {
	return KindWeekly
}

func (s Weekly) At() TimeOfDay {
	return s.TimeOfDay
}

// DayName returns the capitalized label, or the full day name when no label was kept
func (s Weekly) DayName() string {
	if s.Label == "" {
		return s.Day.String()
	}
	return Capitalize(s.Label)
}

func (s Weekly) Describe() string {
	return fmt.Sprintf("Every %s at %s", s.DayName(), s.TimeOfDay)
}

func (Weekly) isSchedule() {}

// Monthly fires on a day of the month. Months without that day are skipped.
type Monthly struct {
	Day int
	TimeOfDay
}

func NewMonthly(day, hour, minute int) (Monthly, error) {
	if day < 1 || day > 31 {
		return Monthly{}, fmt.Errorf("%w: day of month %d", ErrInvalidDay, day)
	}
	t, err := NewTimeOfDay(hour, minute)
	if err != nil {
		return Monthly{}, err
	}
	return Monthly{Day: day, TimeOfDay: t}, nil
}

func (Monthly) Kind() Kind {
	return KindMonthly
}

func (s Monthly) At() TimeOfDay {
	return s.TimeOfDay
}

func (s Monthly) Describe() string {
	return fmt.Sprintf("On day %d of the month at %s", s.Day, s.TimeOfDay)
}

func (Monthly) isSchedule() {}

// Capitalize upper-cases the first rune of s
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
