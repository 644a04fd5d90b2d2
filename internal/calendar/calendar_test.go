package calendar

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/reminderbot/internal/domain"
)

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func rule(t *testing.T, id int64, s domain.Schedule, message string) *domain.Rule {
	t.Helper()
	rec, err := domain.NewRecurrence(s, message)
	require.NoError(t, err)
	return &domain.Rule{ID: id, OwnerID: 1, ChannelID: 1, Recurrence: rec}
}

func TestRRule(t *testing.T) {
	daily, _ := domain.NewDaily(7, 5)
	weekly, _ := domain.NewWeekly(domain.Tuesday, "tues", 10, 0)
	monthly, _ := domain.NewMonthly(31, 9, 0)

	got, err := RRule(daily)
	require.NoError(t, err)
	assert.Equal(t, "FREQ=DAILY", got)

	got, err = RRule(weekly)
	require.NoError(t, err)
	assert.Contains(t, got, "FREQ=WEEKLY")
	assert.Contains(t, got, "BYDAY=TU")

	got, err = RRule(monthly)
	require.NoError(t, err)
	assert.Contains(t, got, "FREQ=MONTHLY")
	assert.Contains(t, got, "BYMONTHDAY=31")
}

func TestFirstOccurrence(t *testing.T) {
	daily, _ := domain.NewDaily(7, 5)
	weekly, _ := domain.NewWeekly(domain.Tuesday, "", 10, 0)
	monthly, _ := domain.NewMonthly(31, 9, 0)

	tests := []struct {
		name     string
		schedule domain.Schedule
		after    time.Time
		want     time.Time
	}{
		{"daily later today", daily, date(2025, time.March, 10, 6, 0), date(2025, time.March, 10, 7, 5)},
		{"daily strictly after", daily, date(2025, time.March, 10, 7, 5), date(2025, time.March, 11, 7, 5)},
		{"weekly next tuesday", weekly, date(2025, time.March, 10, 12, 0), date(2025, time.March, 11, 10, 0)},
		{"weekly wraps a week", weekly, date(2025, time.March, 11, 10, 30), date(2025, time.March, 18, 10, 0)},
		{"monthly skips april", monthly, date(2025, time.April, 1, 0, 0), date(2025, time.May, 31, 9, 0)},
		{"monthly skips february", monthly, date(2025, time.January, 31, 9, 30), date(2025, time.March, 31, 9, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstOccurrence(tt.schedule, tt.after, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestExport(t *testing.T) {
	weekly, _ := domain.NewWeekly(domain.Tuesday, "tues", 10, 0)
	daily, _ := domain.NewDaily(7, 5)
	rules := []*domain.Rule{
		rule(t, 3, weekly, "Take out the trash"),
		rule(t, 4, daily, "Take my medication"),
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, rules, time.UTC, date(2025, time.March, 10, 12, 0)))

	cal, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 2)

	uid, err := events[0].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "reminder-3@reminderbot", uid)

	summary, err := events[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Take out the trash", summary)

	description, err := events[0].Props.Text(ical.PropDescription)
	require.NoError(t, err)
	assert.Equal(t, "Every Tues at 10:00", description)

	start, err := events[0].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, date(2025, time.March, 11, 10, 0).Equal(start))

	rrule := events[0].Props.Get(ical.PropRecurrenceRule)
	require.NotNil(t, rrule)
	assert.Contains(t, rrule.Value, "BYDAY=TU")

	start, err = events[1].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, date(2025, time.March, 11, 7, 5).Equal(start))
}

type davRequest struct {
	method string
	path   string
	body   string
}

func davServer(t *testing.T) (*httptest.Server, func() []davRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []davRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, _, _ := r.BasicAuth()
		if user != "alice" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		mu.Lock()
		requests = append(requests, davRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			w.Header().Set("ETag", `"1"`)
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, func() []davRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]davRequest(nil), requests...)
	}
}

func TestMirrorPublishAndRemove(t *testing.T) {
	srv, requests := davServer(t)
	m := NewMirror(srv.URL, "alice", "secret", "/calendars/alice/reminders", time.UTC)
	require.True(t, m.IsConfigured())

	monthly, _ := domain.NewMonthly(3, 11, 0)
	r := rule(t, 12, monthly, "Pay rent")

	require.NoError(t, m.Publish(context.Background(), r))
	require.NoError(t, m.Remove(context.Background(), r.ID))

	got := requests()
	require.Len(t, got, 2)

	assert.Equal(t, http.MethodPut, got[0].method)
	assert.Equal(t, "/calendars/alice/reminders/reminder-12.ics", got[0].path)
	assert.Contains(t, got[0].body, "UID:reminder-12@reminderbot")
	assert.Contains(t, got[0].body, "SUMMARY:Pay rent")
	assert.True(t, strings.Contains(got[0].body, "RRULE:FREQ=MONTHLY"))

	assert.Equal(t, http.MethodDelete, got[1].method)
	assert.Equal(t, "/calendars/alice/reminders/reminder-12.ics", got[1].path)
}

func TestMirrorDisabledWithoutCredentials(t *testing.T) {
	m := NewMirror("", "", "", "", nil)
	assert.False(t, m.IsConfigured())

	daily, _ := domain.NewDaily(8, 0)
	assert.NoError(t, m.Publish(context.Background(), rule(t, 1, daily, "Hi")))
	assert.NoError(t, m.Remove(context.Background(), 1))

	var nilMirror *Mirror
	assert.False(t, nilMirror.IsConfigured())
}
