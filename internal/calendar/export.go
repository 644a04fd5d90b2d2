package calendar

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/reminderbot/internal/domain"
)

const productID = "-//reminderbot//Reminders//EN"

// UID is the stable iCalendar identifier of a rule
func UID(ruleID int64) string {
	return "reminder-" + strconv.FormatInt(ruleID, 10) + "@reminderbot"
}

// Event converts a rule into a recurring VEVENT starting at its next occurrence
func Event(rule *domain.Rule, loc *time.Location, now time.Time) (*ical.Event, error) {
	s := rule.Recurrence.Schedule

	start, err := FirstOccurrence(s, now, loc)
	if err != nil {
		return nil, fmt.Errorf("reminder %d: %w", rule.ID, err)
	}
	opt, err := Option(s)
	if err != nil {
		return nil, fmt.Errorf("reminder %d: %w", rule.ID, err)
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, UID(rule.ID))
	event.Props.SetText(ical.PropSummary, rule.Recurrence.Message)
	event.Props.SetText(ical.PropDescription, rule.Recurrence.Description())
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetRecurrenceRule(opt)
	if !rule.CreatedAt.IsZero() {
		event.Props.SetDateTime(ical.PropCreated, rule.CreatedAt.UTC())
	}
	return event, nil
}

// Build assembles a VCALENDAR holding one event per rule
func Build(rules []*domain.Rule, loc *time.Location, now time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, rule := range rules {
		event, err := Event(rule, loc, now)
		if err != nil {
			return nil, err
		}
		cal.Children = append(cal.Children, event.Component)
	}
	return cal, nil
}

// Export writes rules to w as an iCalendar document
func Export(w io.Writer, rules []*domain.Rule, loc *time.Location, now time.Time) error {
	cal, err := Build(rules, loc, now)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}
