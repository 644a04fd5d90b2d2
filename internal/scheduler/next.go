package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/reminderbot/internal/domain"
)

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronSpec renders a schedule as a standard 5-field cron expression
func CronSpec(s domain.Schedule) (string, error) {
	switch s := s.(type) {
	case domain.Daily:
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour), nil
	case domain.Weekly:
		// cron counts weekdays from Sunday
		return fmt.Sprintf("%d %d * * %d", s.Minute, s.Hour, (int(s.Day)+1)%7), nil
	case domain.Monthly:
		// months without this day never match, so they are skipped
		return fmt.Sprintf("%d %d %d * *", s.Minute, s.Hour, s.Day), nil
	default:
		return "", fmt.Errorf("%w: %T", domain.ErrUnknownKind, s)
	}
}

func cronSchedule(s domain.Schedule) (cron.Schedule, error) {
	spec, err := CronSpec(s)
	if err != nil {
		return nil, err
	}
	sched, err := specParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return sched, nil
}

// NextFire returns the first occurrence of s strictly after the given time,
// evaluated on the wall clock of loc.
func NextFire(s domain.Schedule, after time.Time, loc *time.Location) (time.Time, error) {
	sched, err := cronSchedule(s)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return sched.Next(after.In(loc)), nil
}
