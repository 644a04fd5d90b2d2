package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrEmptyMessage = errors.New("reminder message cannot be empty")

// Recurrence is what a reminder means: when it fires and what it says
type Recurrence struct {
	Schedule Schedule
	Message  string
}

func NewRecurrence(s Schedule, message string) (Recurrence, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Recurrence{}, ErrEmptyMessage
	}
	if s == nil {
		return Recurrence{}, ErrUnknownKind
	}
	return Recurrence{Schedule: s, Message: message}, nil
}

func (r Recurrence) Kind() Kind {
	return r.Schedule.Kind()
}

func (r Recurrence) Description() string {
	return r.Schedule.Describe()
}

// Rule is a persisted, owner-scoped recurring reminder
type Rule struct {
	ID         int64
	OwnerID    int64
	ChannelID  int64
	Recurrence Recurrence
	CreatedAt  time.Time
}

// FormatDelivery renders the text sent to the channel when a rule fires
func FormatDelivery(message string) string {
	return "🔔 Reminder:\n\n" + message
}
