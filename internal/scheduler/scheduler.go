package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/tazhate/reminderbot/internal/domain"
	"github.com/tazhate/reminderbot/internal/metrics"
)

var ErrStopped = errors.New("scheduler stopped")

// MessageSender delivers a fired reminder to a chat
type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// Entry is a snapshot of one live timer
type Entry struct {
	RuleID    int64
	ChannelID int64
	Next      time.Time
}

type entry struct {
	ruleID    int64
	channelID int64
	message   string
	schedule  cron.Schedule
	next      time.Time
}

// command runs on the loop goroutine, the only place the timer table is touched
type command func(s *Scheduler)

// Scheduler keeps one timer per rule and fires it on every occurrence.
// All mutations go through Run's loop; call Recover once before other work.
type Scheduler struct {
	sender   MessageSender
	location *time.Location
	now      func() time.Time

	commands  chan command
	queries   chan command
	recovered bool
	entries   map[int64]*entry

	deliveries sync.WaitGroup
	done       chan struct{}
}

func New(sender MessageSender, location *time.Location) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		sender:   sender,
		location: location,
		now:      time.Now,
		commands: make(chan command, 64),
		queries:  make(chan command),
		entries:  make(map[int64]*entry),
		done:     make(chan struct{}),
	}
}

// SetSender sets the delivery sink; call it before Run
func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

// Run drives the timer table until ctx is cancelled. Schedule and Cancel
// calls stay queued until the first Recover has been applied.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	log.Info().Str("tz", s.location.String()).Msg("Scheduler started")

	for {
		timer.Stop()
		var wake <-chan time.Time
		if next, ok := s.earliest(); ok {
			timer.Reset(next.Sub(s.now()))
			wake = timer.C
		}

		commands := s.commands
		if !s.recovered {
			commands = nil
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler stopped")
			return nil
		case q := <-s.queries:
			q(s)
		case cmd := <-commands:
			cmd(s)
		case <-wake:
			s.fireDue(s.now())
		}
	}
}

// Wait blocks until in-flight deliveries have returned
func (s *Scheduler) Wait() {
	s.deliveries.Wait()
}

// Recover schedules every stored rule. It is the first command the loop accepts.
func (s *Scheduler) Recover(rules []*domain.Rule) error {
	prepared := make([]*entry, 0, len(rules))
	for _, r := range rules {
		e, err := s.newEntry(r.ID, r.ChannelID, r.Recurrence)
		if err != nil {
			return fmt.Errorf("recover reminder %d: %w", r.ID, err)
		}
		prepared = append(prepared, e)
	}

	return s.call(s.queries, func(s *Scheduler) {
		for _, e := range prepared {
			s.put(e)
		}
		s.recovered = true
		log.Info().Int("rules", len(prepared)).Int("timers", len(s.entries)).Msg("Scheduler recovered reminders")
	})
}

// Schedule installs or replaces the timer for ruleID
func (s *Scheduler) Schedule(ruleID, channelID int64, rec domain.Recurrence) error {
	e, err := s.newEntry(ruleID, channelID, rec)
	if err != nil {
		return fmt.Errorf("schedule reminder %d: %w", ruleID, err)
	}
	return s.call(s.commands, func(s *Scheduler) {
		s.put(e)
	})
}

// Cancel removes the timer for ruleID; unknown ids are ignored
func (s *Scheduler) Cancel(ruleID int64) error {
	return s.call(s.commands, func(s *Scheduler) {
		if _, ok := s.entries[ruleID]; ok {
			delete(s.entries, ruleID)
			metrics.LiveTimers.Set(float64(len(s.entries)))
			log.Debug().Int64("rule_id", ruleID).Msg("Scheduler cancelled reminder")
		}
	})
}

// Entries returns the live timers
func (s *Scheduler) Entries() ([]Entry, error) {
	var out []Entry
	err := s.call(s.queries, func(s *Scheduler) {
		out = make([]Entry, 0, len(s.entries))
		for _, e := range s.entries {
			out = append(out, Entry{RuleID: e.ruleID, ChannelID: e.channelID, Next: e.next})
		}
	})
	return out, err
}

// call hands cmd to the loop and waits until it has run
func (s *Scheduler) call(ch chan command, cmd command) error {
	applied := make(chan struct{})
	wrapped := func(s *Scheduler) {
		cmd(s)
		close(applied)
	}

	select {
	case ch <- wrapped:
	case <-s.done:
		return ErrStopped
	}

	select {
	case <-applied:
		return nil
	case <-s.done:
		return ErrStopped
	}
}

func (s *Scheduler) newEntry(ruleID, channelID int64, rec domain.Recurrence) (*entry, error) {
	sched, err := cronSchedule(rec.Schedule)
	if err != nil {
		return nil, err
	}
	return &entry{
		ruleID:    ruleID,
		channelID: channelID,
		message:   rec.Message,
		schedule:  sched,
	}, nil
}

func (s *Scheduler) put(e *entry) {
	e.next = e.schedule.Next(s.now().In(s.location))
	s.entries[e.ruleID] = e
	metrics.LiveTimers.Set(float64(len(s.entries)))
	log.Debug().Int64("rule_id", e.ruleID).Time("next", e.next).Msg("Scheduler scheduled reminder")
}

func (s *Scheduler) earliest() (time.Time, bool) {
	var next time.Time
	for _, e := range s.entries {
		if e.next.IsZero() {
			continue
		}
		if next.IsZero() || e.next.Before(next) {
			next = e.next
		}
	}
	return next, !next.IsZero()
}

// fireDue fires every entry whose time has come and moves it to its next occurrence
func (s *Scheduler) fireDue(now time.Time) {
	now = now.In(s.location)
	for _, e := range s.entries {
		if e.next.IsZero() || e.next.After(now) {
			continue
		}
		metrics.Fires.Inc()
		s.deliver(e.ruleID, e.channelID, e.message)
		e.next = e.schedule.Next(now)
	}
}

// deliver runs off the loop so a slow sender never delays other timers
func (s *Scheduler) deliver(ruleID, channelID int64, message string) {
	if s.sender == nil {
		return
	}

	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.DeliveryFailures.Inc()
				log.Error().Int64("rule_id", ruleID).Interface("panic", r).Msg("Reminder delivery panicked")
			}
		}()

		if err := s.sender.SendMessage(channelID, domain.FormatDelivery(message)); err != nil {
			metrics.DeliveryFailures.Inc()
			log.Error().Err(err).Int64("rule_id", ruleID).Int64("chat_id", channelID).Msg("Error sending reminder")
			return
		}
		log.Debug().Int64("rule_id", ruleID).Int64("chat_id", channelID).Msg("Reminder sent")
	}()
}
