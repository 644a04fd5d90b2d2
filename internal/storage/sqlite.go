package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tazhate/reminderbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("reminder not found")

// RuleStore is the durable set of reminder rules
type RuleStore interface {
	AddRule(ownerID, channelID int64, rec domain.Recurrence) (int64, error)
	GetRule(id int64) (*domain.Rule, error)
	ListRulesByOwner(ownerID int64) ([]*domain.Rule, error)
	ListAllRules() ([]*domain.Rule, error)
	DeleteRule(id int64) (bool, error)
	Close() error
}

// Storage is the SQLite-backed RuleStore
type Storage struct {
	db *sql.DB
	mu sync.Mutex // serializes writes
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Debug().Str("path", dbPath).Msg("SQLite storage opened")
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			chat_id INTEGER NOT NULL,
			message TEXT NOT NULL,
			schedule_type TEXT NOT NULL,
			schedule_data TEXT NOT NULL,
			schedule_description TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_user_id ON reminders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_created_at ON reminders(created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Reminders ===

const ruleColumns = `id, user_id, chat_id, message, schedule_type, schedule_data, created_at`

func (s *Storage) AddRule(ownerID, channelID int64, rec domain.Recurrence) (int64, error) {
	row, err := newRuleRow(ownerID, channelID, rec)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO reminders (user_id, chat_id, message, schedule_type, schedule_data, schedule_description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ownerID, row.channelID, row.message, row.kind, row.params, row.description, row.createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *Storage) GetRule(id int64) (*domain.Rule, error) {
	row := s.db.QueryRow(`SELECT `+ruleColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder %d: %w", id, err)
	}
	return r, nil
}

func (s *Storage) ListRulesByOwner(ownerID int64) ([]*domain.Rule, error) {
	rows, err := s.db.Query(
		`SELECT `+ruleColumns+` FROM reminders WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return collectRules(rows)
}

// ListAllRules returns every stored rule, for startup recovery
func (s *Storage) ListAllRules() ([]*domain.Rule, error) {
	rows, err := s.db.Query(`SELECT ` + ruleColumns + ` FROM reminders`)
	if err != nil {
		return nil, fmt.Errorf("list all reminders: %w", err)
	}
	return collectRules(rows)
}

func (s *Storage) DeleteRule(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete reminder %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ruleRow is a rule flattened into its stored columns
type ruleRow struct {
	ownerID     int64
	channelID   int64
	message     string
	kind        domain.Kind
	params      string
	description string
	createdAt   time.Time
}

func newRuleRow(ownerID, channelID int64, rec domain.Recurrence) (ruleRow, error) {
	kind, params, err := domain.EncodeParams(rec.Schedule)
	if err != nil {
		return ruleRow{}, fmt.Errorf("encode schedule: %w", err)
	}
	return ruleRow{
		ownerID:     ownerID,
		channelID:   channelID,
		message:     rec.Message,
		kind:        kind,
		params:      string(params),
		description: rec.Description(),
		createdAt:   time.Now().UTC(),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(sc scanner) (*domain.Rule, error) {
	var (
		r       domain.Rule
		message string
		kind    string
		params  string
	)
	if err := sc.Scan(&r.ID, &r.OwnerID, &r.ChannelID, &message, &kind, &params, &r.CreatedAt); err != nil {
		return nil, err
	}

	schedule, err := domain.DecodeParams(domain.Kind(kind), []byte(params))
	if err != nil {
		return nil, fmt.Errorf("decode reminder %d: %w", r.ID, err)
	}
	rec, err := domain.NewRecurrence(schedule, message)
	if err != nil {
		return nil, fmt.Errorf("decode reminder %d: %w", r.ID, err)
	}
	r.Recurrence = rec
	return &r, nil
}

func collectRules(rows *sql.Rows) ([]*domain.Rule, error) {
	defer rows.Close()

	rules := []*domain.Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return rules, nil
}
