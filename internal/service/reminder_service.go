package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tazhate/reminderbot/internal/calendar"
	"github.com/tazhate/reminderbot/internal/domain"
	"github.com/tazhate/reminderbot/internal/metrics"
	"github.com/tazhate/reminderbot/internal/parser"
	"github.com/tazhate/reminderbot/internal/storage"
)

var ErrNoReminders = errors.New("no reminders")

// Engine is the part of the scheduler the service drives
type Engine interface {
	Recover(rules []*domain.Rule) error
	Schedule(ruleID, channelID int64, rec domain.Recurrence) error
	Cancel(ruleID int64) error
}

// Mirror receives confirmed and deleted rules, e.g. a CalDAV calendar
type Mirror interface {
	Publish(ctx context.Context, rule *domain.Rule) error
	Remove(ctx context.Context, ruleID int64) error
}

type ReminderService struct {
	storage  storage.RuleStore
	engine   Engine
	mirror   Mirror
	timezone *time.Location
	now      func() time.Time
}

// NewReminderService wires the store to the engine. mirror may be nil.
func NewReminderService(s storage.RuleStore, engine Engine, mirror Mirror, tz *time.Location) *ReminderService {
	if tz == nil {
		tz = time.UTC
	}
	return &ReminderService{
		storage:  s,
		engine:   engine,
		mirror:   mirror,
		timezone: tz,
		now:      time.Now,
	}
}

// Parse interprets a sentence without storing anything
func (s *ReminderService) Parse(text string) (domain.Recurrence, error) {
	rec, err := parser.Parse(text)
	if err != nil {
		metrics.ParseFailures.WithLabelValues(failureReason(err)).Inc()
		log.Debug().Err(err).Str("text", text).Msg("Could not parse reminder")
		return domain.Recurrence{}, err
	}
	return rec, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, parser.ErrNoTimeFound):
		return "no_time"
	case errors.Is(err, parser.ErrInvalidTime):
		return "invalid_time"
	case errors.Is(err, parser.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, parser.ErrNoRecurrencePattern):
		return "no_recurrence"
	case errors.Is(err, parser.ErrInvalidDay):
		return "invalid_day"
	default:
		return "other"
	}
}

// Confirm stores a parsed recurrence and starts its timer
func (s *ReminderService) Confirm(ownerID, channelID int64, rec domain.Recurrence) (*domain.Rule, error) {
	id, err := s.storage.AddRule(ownerID, channelID, rec)
	if err != nil {
		return nil, fmt.Errorf("add reminder: %w", err)
	}

	if err := s.engine.Schedule(id, channelID, rec); err != nil {
		return nil, fmt.Errorf("schedule reminder %d: %w", id, err)
	}

	rule, err := s.storage.GetRule(id)
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}

	log.Info().
		Int64("rule_id", id).
		Int64("user_id", ownerID).
		Str("schedule", rec.Description()).
		Msg("Reminder added")

	if s.mirror != nil {
		if err := s.mirror.Publish(context.Background(), rule); err != nil {
			log.Warn().Err(err).Int64("rule_id", id).Msg("Failed to publish reminder to calendar")
		}
	}
	return rule, nil
}

func (s *ReminderService) List(ownerID int64) ([]*domain.Rule, error) {
	return s.storage.ListRulesByOwner(ownerID)
}

// Get returns the rule only if ownerID owns it
func (s *ReminderService) Get(ownerID, ruleID int64) (*domain.Rule, error) {
	rule, err := s.storage.GetRule(ruleID)
	if err != nil {
		return nil, err
	}
	if rule.OwnerID != ownerID {
		return nil, storage.ErrNotFound
	}
	return rule, nil
}

// Delete cancels the timer and removes the rule. Rules of other owners
// report storage.ErrNotFound.
func (s *ReminderService) Delete(ownerID, ruleID int64) error {
	rule, err := s.Get(ownerID, ruleID)
	if err != nil {
		return err
	}

	if err := s.engine.Cancel(ruleID); err != nil {
		return fmt.Errorf("cancel reminder %d: %w", ruleID, err)
	}

	deleted, err := s.storage.DeleteRule(ruleID)
	if err != nil {
		// the row is still there, so it keeps its timer
		if serr := s.engine.Schedule(rule.ID, rule.ChannelID, rule.Recurrence); serr != nil {
			log.Error().Err(serr).Int64("rule_id", ruleID).Msg("Failed to restore reminder timer")
		}
		return fmt.Errorf("delete reminder: %w", err)
	}
	if !deleted {
		return storage.ErrNotFound
	}

	log.Info().Int64("rule_id", ruleID).Int64("user_id", ownerID).Msg("Reminder deleted")

	if s.mirror != nil {
		if err := s.mirror.Remove(context.Background(), ruleID); err != nil {
			log.Warn().Err(err).Int64("rule_id", ruleID).Msg("Failed to remove reminder from calendar")
		}
	}
	return nil
}

// Recover loads every stored rule into the engine. A failure here must stop startup.
func (s *ReminderService) Recover() (int, error) {
	rules, err := s.storage.ListAllRules()
	if err != nil {
		return 0, fmt.Errorf("load reminders: %w", err)
	}
	if err := s.engine.Recover(rules); err != nil {
		return 0, fmt.Errorf("recover reminders: %w", err)
	}
	return len(rules), nil
}

// Export renders the owner's reminders as an iCalendar document
func (s *ReminderService) Export(ownerID int64) ([]byte, error) {
	rules, err := s.storage.ListRulesByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	if len(rules) == 0 {
		return nil, ErrNoReminders
	}

	var buf bytes.Buffer
	if err := calendar.Export(&buf, rules, s.timezone, s.now()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatInterpretation is the confirmation prompt for a parsed sentence
func (s *ReminderService) FormatInterpretation(rec domain.Recurrence) string {
	return fmt.Sprintf("I understood it as:\n\n📅 When: %s\n💬 Message: %s\n\nIs this correct?",
		rec.Description(), rec.Message)
}

// FormatParseFailure explains a rejected sentence with the supported formats
func (s *ReminderService) FormatParseFailure() string {
	var sb strings.Builder
	sb.WriteString("I couldn't understand your reminder. Try formats:\n")
	for _, ex := range parser.Examples {
		sb.WriteString("- ")
		sb.WriteString(ex)
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func (s *ReminderService) FormatList(rules []*domain.Rule) string {
	if len(rules) == 0 {
		return "You don't have any reminders yet."
	}

	var sb strings.Builder
	sb.WriteString("Your reminders:\n\n")
	for _, r := range rules {
		sb.WriteString(fmt.Sprintf("🔔 ID: %d\n", r.ID))
		sb.WriteString(fmt.Sprintf("📅 When: %s\n", r.Recurrence.Description()))
		sb.WriteString(fmt.Sprintf("💬 Message: %s\n", r.Recurrence.Message))
		sb.WriteString(fmt.Sprintf("📍 Channel: %s\n\n", channelName(r)))
	}
	return strings.TrimSuffix(sb.String(), "\n\n")
}

func channelName(r *domain.Rule) string {
	if r.ChannelID == r.OwnerID {
		return "Private chat"
	}
	return fmt.Sprintf("Chat %d", r.ChannelID)
}
