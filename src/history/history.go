// Package history records completed actions in a local SQLite database so
// past rewrites can be searched. Nothing is recorded in privacy mode; the
// caller decides that.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
    id            TEXT PRIMARY KEY,
    timestamp     TEXT NOT NULL,
    action_name   TEXT NOT NULL,
    app_name      TEXT NOT NULL DEFAULT '',
    original_text TEXT NOT NULL,
    result_text   TEXT NOT NULL,
    provider      TEXT NOT NULL,
    model         TEXT NOT NULL,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    tokens_used   INTEGER
);

CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp);
`

const (
	defaultLimit = 50
	// fixed width so timestamps sort lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var ErrNotFound = errors.New("history entry not found")

type Entry struct {
	ID           string
	Timestamp    time.Time
	ActionName   string
	AppName      string
	OriginalText string
	ResultText   string
	Provider     string
	Model        string
	DurationMS   int64
	// TokensUsed is zero when the provider did not report usage.
	TokensUsed int64
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=2000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add stores e, filling in ID and Timestamp when empty, and returns the stored entry.
func (s *Store) Add(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	var tokens sql.NullInt64
	if e.TokensUsed > 0 {
		tokens = sql.NullInt64{Int64: e.TokensUsed, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, timestamp, action_name, app_name, original_text, result_text, provider, model, duration_ms, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(timeLayout), e.ActionName, e.AppName,
		e.OriginalText, e.ResultText, e.Provider, e.Model, e.DurationMS, tokens,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	return e, nil
}

// Search returns entries whose texts or action name contain query, newest
// first. An empty query lists the most recent entries.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, action_name, app_name, original_text, result_text, provider, model, duration_ms, tokens_used
		FROM history
		WHERE original_text LIKE ?1 ESCAPE '\' OR result_text LIKE ?1 ESCAPE '\' OR action_name LIKE ?1 ESCAPE '\'
		ORDER BY timestamp DESC
		LIMIT ?2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			ts     string
			tokens sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &ts, &e.ActionName, &e.AppName, &e.OriginalText, &e.ResultText,
			&e.Provider, &e.Model, &e.DurationMS, &tokens); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		e.TokensUsed = tokens.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Clear removes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
