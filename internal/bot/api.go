package bot

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/tazhate/reminderbot/internal/domain"
	"github.com/tazhate/reminderbot/internal/scheduler"
	"github.com/tazhate/reminderbot/internal/service"
	"github.com/tazhate/reminderbot/internal/storage"
)

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ReminderResponse struct {
	ID          int64           `json:"id"`
	OwnerID     int64           `json:"owner_id"`
	ChannelID   int64           `json:"channel_id"`
	Kind        string          `json:"kind"`
	Params      json.RawMessage `json:"params"`
	Description string          `json:"description"`
	Message     string          `json:"message"`
	CreatedAt   string          `json:"created_at"`
	NextRun     *string         `json:"next_run,omitempty"`
}

type ParseResponse struct {
	Kind        string          `json:"kind"`
	Params      json.RawMessage `json:"params"`
	Description string          `json:"description"`
	Message     string          `json:"message"`
	NextRun     string          `json:"next_run"`
}

type TimerResponse struct {
	RuleID    int64  `json:"rule_id"`
	ChannelID int64  `json:"channel_id"`
	NextRun   string `json:"next_run"`
}

// setupAPI registers API routes with Basic Auth
func (b *Bot) setupAPI(mux *http.ServeMux) {
	if !b.cfg.APIEnabled() {
		return // API disabled if no credentials
	}

	mux.HandleFunc("/api/reminders", b.basicAuth(b.apiReminders))
	mux.HandleFunc("/api/reminder/", b.basicAuth(b.apiReminder))
	mux.HandleFunc("/api/parse", b.basicAuth(b.apiParse))
	mux.HandleFunc("/api/export", b.basicAuth(b.apiExport))
	mux.HandleFunc("/api/timers", b.basicAuth(b.apiTimers))
}

// basicAuth middleware
func (b *Bot) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != b.cfg.APIUsername || password != b.cfg.APIPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="reminderbot API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *Bot) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data}); err != nil {
		log.Warn().Err(err).Msg("Failed to write API response")
	}
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// userID reads the required ?user_id= query parameter
func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	return id, err == nil
}

// GET /api/reminders?user_id=N - list reminders, newest first
func (b *Bot) apiReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	owner, ok := userID(r)
	if !ok {
		b.jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	rules, err := b.reminders.List(owner)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := make([]ReminderResponse, 0, len(rules))
	next := b.nextRuns()
	for _, rule := range rules {
		resp, err := reminderToResponse(rule)
		if err != nil {
			b.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if t, ok := next[rule.ID]; ok {
			s := t.Format(time.RFC3339)
			resp.NextRun = &s
		}
		result = append(result, resp)
	}

	b.jsonResponse(w, result)
}

// GET /api/reminder/:id?user_id=N - get reminder
// DELETE /api/reminder/:id?user_id=N - delete reminder
func (b *Bot) apiReminder(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(r)
	if !ok {
		b.jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/reminder/")
	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		b.jsonError(w, "Invalid reminder ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := b.reminders.Get(owner, id)
		if errors.Is(err, storage.ErrNotFound) {
			b.jsonError(w, "Reminder not found", http.StatusNotFound)
			return
		}
		if err != nil {
			b.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp, err := reminderToResponse(rule)
		if err != nil {
			b.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		b.jsonResponse(w, resp)

	case http.MethodDelete:
		err := b.reminders.Delete(owner, id)
		if errors.Is(err, storage.ErrNotFound) {
			b.jsonError(w, "Reminder not found", http.StatusNotFound)
			return
		}
		if err != nil {
			b.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		b.jsonResponse(w, map[string]interface{}{"id": id, "deleted": true})

	default:
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /api/parse - interpret a sentence without storing it
func (b *Bot) apiParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.jsonError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	rec, err := b.reminders.Parse(req.Text)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	kind, params, err := domain.EncodeParams(rec.Schedule)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	next, err := scheduler.NextFire(rec.Schedule, time.Now(), b.cfg.Timezone)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	b.jsonResponse(w, ParseResponse{
		Kind:        string(kind),
		Params:      params,
		Description: rec.Description(),
		Message:     rec.Message,
		NextRun:     next.Format(time.RFC3339),
	})
}

// GET /api/export?user_id=N - iCalendar document
func (b *Bot) apiExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	owner, ok := userID(r)
	if !ok {
		b.jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	data, err := b.reminders.Export(owner)
	if errors.Is(err, service.ErrNoReminders) {
		b.jsonError(w, "No reminders", http.StatusNotFound)
		return
	}
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="reminders.ics"`)
	w.Write(data)
}

// GET /api/timers - live scheduler timers
func (b *Bot) apiTimers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := b.timers.Entries()
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	result := make([]TimerResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, TimerResponse{
			RuleID:    e.RuleID,
			ChannelID: e.ChannelID,
			NextRun:   e.Next.Format(time.RFC3339),
		})
	}
	b.jsonResponse(w, result)
}

func (b *Bot) nextRuns() map[int64]time.Time {
	next := make(map[int64]time.Time)
	if b.timers == nil {
		return next
	}
	entries, err := b.timers.Entries()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read scheduler timers")
		return next
	}
	for _, e := range entries {
		next[e.RuleID] = e.Next
	}
	return next
}

func reminderToResponse(rule *domain.Rule) (ReminderResponse, error) {
	kind, params, err := domain.EncodeParams(rule.Recurrence.Schedule)
	if err != nil {
		return ReminderResponse{}, err
	}
	return ReminderResponse{
		ID:          rule.ID,
		OwnerID:     rule.OwnerID,
		ChannelID:   rule.ChannelID,
		Kind:        string(kind),
		Params:      params,
		Description: rule.Recurrence.Description(),
		Message:     rule.Recurrence.Message,
		CreatedAt:   rule.CreatedAt.Format(time.RFC3339),
	}, nil
}
