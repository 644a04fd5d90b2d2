package calendar

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/rs/zerolog/log"

	"github.com/tazhate/reminderbot/internal/domain"
)

// DefaultiCloudURL is used when no CalDAV endpoint is configured
const DefaultiCloudURL = "https://caldav.icloud.com"

// Mirror copies confirmed rules into a CalDAV calendar as recurring events
type Mirror struct {
	baseURL  string
	username string
	password string
	location *time.Location

	mu       sync.Mutex
	calendar string
	client   *caldav.Client
}

func NewMirror(baseURL, username, password, calendarPath string, loc *time.Location) *Mirror {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Mirror{
		baseURL:  baseURL,
		username: username,
		password: password,
		calendar: calendarPath,
		location: loc,
	}
}

// IsConfigured returns true if the mirror has credentials
func (m *Mirror) IsConfigured() bool {
	return m != nil && m.username != "" && m.password != ""
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

func (m *Mirror) connect() (*caldav.Client, error) {
	if m.client != nil {
		return m.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: m.username,
			password: m.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, m.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}
	m.client = client
	return client, nil
}

// calendarPath returns the configured calendar, discovering the first one
// the account owns when none was set.
func (m *Mirror) calendarPath(ctx context.Context, client *caldav.Client) (string, error) {
	if m.calendar != "" {
		return m.calendar, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("find calendars: %w", err)
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("no calendars for %s", m.username)
	}

	m.calendar = cals[0].Path
	log.Info().Str("calendar", m.calendar).Str("name", cals[0].Name).Msg("CalDAV calendar discovered")
	return m.calendar, nil
}

func objectPath(calendarPath string, ruleID int64) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + "reminder-" + strconv.FormatInt(ruleID, 10) + ".ics"
}

// Publish creates or replaces the event for rule
func (m *Mirror) Publish(ctx context.Context, rule *domain.Rule) error {
	if !m.IsConfigured() {
		return nil
	}

	event, err := Event(rule, m.location, time.Now())
	if err != nil {
		return err
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, event.Component)

	m.mu.Lock()
	defer m.mu.Unlock()

	client, err := m.connect()
	if err != nil {
		return err
	}
	calendarPath, err := m.calendarPath(ctx, client)
	if err != nil {
		return err
	}

	if _, err := client.PutCalendarObject(ctx, objectPath(calendarPath, rule.ID), cal); err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	log.Debug().Int64("rule_id", rule.ID).Msg("CalDAV event published")
	return nil
}

// Remove deletes the event for ruleID
func (m *Mirror) Remove(ctx context.Context, ruleID int64) error {
	if !m.IsConfigured() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	client, err := m.connect()
	if err != nil {
		return err
	}
	calendarPath, err := m.calendarPath(ctx, client)
	if err != nil {
		return err
	}

	if err := client.RemoveAll(ctx, objectPath(calendarPath, ruleID)); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	log.Debug().Int64("rule_id", ruleID).Msg("CalDAV event removed")
	return nil
}
