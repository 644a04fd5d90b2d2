package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tazhate/reminderbot/internal/domain"

	_ "github.com/lib/pq"
)

// PostgresStorage is a RuleStore on PostgreSQL, used when DATABASE_URL is set
type PostgresStorage struct {
	db *sql.DB
	mu sync.Mutex
}

func NewPostgres(dsn string) (*PostgresStorage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &PostgresStorage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Debug().Msg("Postgres storage opened")
	return s, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			message TEXT NOT NULL,
			schedule_type TEXT NOT NULL,
			schedule_data JSONB NOT NULL,
			schedule_description TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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

func (s *PostgresStorage) AddRule(ownerID, channelID int64, rec domain.Recurrence) (int64, error) {
	row, err := newRuleRow(ownerID, channelID, rec)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err = s.db.QueryRow(
		`INSERT INTO reminders (user_id, chat_id, message, schedule_type, schedule_data, schedule_description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		row.ownerID, row.channelID, row.message, row.kind, row.params, row.description, row.createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}
	return id, nil
}

func (s *PostgresStorage) GetRule(id int64) (*domain.Rule, error) {
	row := s.db.QueryRow(`SELECT `+ruleColumns+` FROM reminders WHERE id = $1`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder %d: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStorage) ListRulesByOwner(ownerID int64) ([]*domain.Rule, error) {
	rows, err := s.db.Query(
		`SELECT `+ruleColumns+` FROM reminders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return collectRules(rows)
}

func (s *PostgresStorage) ListAllRules() ([]*domain.Rule, error) {
	rows, err := s.db.Query(`SELECT ` + ruleColumns + ` FROM reminders`)
	if err != nil {
		return nil, fmt.Errorf("list all reminders: %w", err)
	}
	return collectRules(rows)
}

func (s *PostgresStorage) DeleteRule(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete reminder %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Open picks Postgres when a DSN is given and SQLite otherwise
func Open(sqlitePath, postgresDSN string) (RuleStore, error) {
	if postgresDSN != "" {
		return NewPostgres(postgresDSN)
	}
	return New(sqlitePath)
}
