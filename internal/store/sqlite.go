package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperr "risklock/internal/errors"
)

// SQLiteStore implements SessionStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the session database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS drafts (
		kind TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the session state. A fresh database yields the zero state.
func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM session`)
	if err != nil {
		return State{}, fmt.Errorf("failed to query session: %w", err)
	}
	defer rows.Close()

	var state State
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return State{}, fmt.Errorf("failed to scan session row: %w", err)
		}
		switch key {
		case keyReportDownloaded:
			state.HasDownloadedReport = value == "true"
		case keyToken:
			state.Token = value
		}
	}
	return state, rows.Err()
}

// Save replaces the whole session state.
func (s *SQLiteStore) Save(ctx context.Context, state State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	flag := "false"
	if state.HasDownloadedReport {
		flag = "true"
	}
	if err := setKey(ctx, tx, keyReportDownloaded, flag); err != nil {
		return err
	}
	if state.Token == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, keyToken); err != nil {
			return fmt.Errorf("failed to clear token: %w", err)
		}
	} else if err := setKey(ctx, tx, keyToken, state.Token); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkReportDownloaded sets the report flag. It is never cleared.
func (s *SQLiteStore) MarkReportDownloaded(ctx context.Context) error {
	return setKey(ctx, s.db, keyReportDownloaded, "true")
}

// SaveToken stores the bearer token.
func (s *SQLiteStore) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return s.ClearToken(ctx)
	}
	return setKey(ctx, s.db, keyToken, token)
}

// ClearToken drops the bearer token.
func (s *SQLiteStore) ClearToken(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, keyToken); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// SaveDraft stores a draft, keeping the ID of an existing draft of the same kind.
func (s *SQLiteStore) SaveDraft(ctx context.Context, draft Draft) (Draft, error) {
	if draft.ID == "" {
		existing, err := s.LoadDraft(ctx, draft.Kind)
		switch {
		case err == nil:
			draft.ID = existing.ID
		case errors.Is(err, apperr.ErrNoDraft):
			draft.ID = uuid.NewString()
		default:
			return Draft{}, err
		}
	}
	draft.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO drafts (kind, id, payload, updated_at)
		VALUES (?, ?, ?, ?)
	`, draft.Kind, draft.ID, string(draft.Payload), draft.UpdatedAt)
	if err != nil {
		return Draft{}, fmt.Errorf("failed to save draft: %w", err)
	}
	return draft, nil
}

// LoadDraft returns the draft of a kind or ErrNoDraft.
func (s *SQLiteStore) LoadDraft(ctx context.Context, kind string) (Draft, error) {
	var d Draft
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, id, payload, updated_at FROM drafts WHERE kind = ?
	`, kind).Scan(&d.Kind, &d.ID, &payload, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, apperr.ErrNoDraft
	}
	if err != nil {
		return Draft{}, fmt.Errorf("failed to load draft: %w", err)
	}
	d.Payload = []byte(payload)
	return d, nil
}

// ClearDraft removes the draft of a kind.
func (s *SQLiteStore) ClearDraft(ctx context.Context, kind string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE kind = ?`, kind); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func setKey(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO session (key, value, updated_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
