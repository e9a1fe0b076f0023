// Package store persists conversation handles and transcripts between
// CLI runs.
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
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no profile exists under the given name.
var ErrNotFound = errors.New("store: profile not found")

// Profile is a named conversation handle. Resuming with the stored
// user token or conversation id continues the conversation.
type Profile struct {
	Name           string
	ConversationID string
	UserToken      string
	LanguageCode   string
	UpdatedAt      time.Time
}

// TranscriptEntry is one archived exchange line.
type TranscriptEntry struct {
	ID        string
	Profile   string
	Source    string
	Text      string
	CreatedAt time.Time
}

// SQLiteStore is the canonical persistent client storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the client database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process client. Use one shared connection to avoid writer
	// lock contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS profiles (
			name TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL DEFAULT '',
			user_token TEXT NOT NULL DEFAULT '',
			language_code TEXT NOT NULL DEFAULT '',
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transcript (
			id TEXT PRIMARY KEY,
			profile TEXT NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS transcript_profile_idx ON transcript(profile, created_at_ms DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init store: %w", err)
		}
	}
	return nil
}

// SaveProfile upserts the conversation handle under its name.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (name, conversation_id, user_token, language_code, updated_at_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			user_token = excluded.user_token,
			language_code = excluded.language_code,
			updated_at_ms = excluded.updated_at_ms`,
		p.Name, p.ConversationID, p.UserToken, p.LanguageCode, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.Name, err)
	}
	return nil
}

// GetProfile fetches a profile by name; ErrNotFound when absent.
func (s *SQLiteStore) GetProfile(ctx context.Context, name string) (Profile, error) {
	var p Profile
	var updatedMS int64
	err := s.db.QueryRowContext(ctx, `
		SELECT name, conversation_id, user_token, language_code, updated_at_ms
		FROM profiles WHERE name = ?`, name).
		Scan(&p.Name, &p.ConversationID, &p.UserToken, &p.LanguageCode, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %s: %w", name, err)
	}
	p.UpdatedAt = time.UnixMilli(updatedMS)
	return p, nil
}

// DeleteProfile removes the profile and its transcript.
func (s *SQLiteStore) DeleteProfile(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcript WHERE profile = ?`, name); err != nil {
		return fmt.Errorf("delete transcript %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete profile %s: %w", name, err)
	}
	return nil
}

// ListProfiles returns all profiles, most recently updated first.
func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, conversation_id, user_token, language_code, updated_at_ms
		FROM profiles ORDER BY updated_at_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		var updatedMS int64
		if err := rows.Scan(&p.Name, &p.ConversationID, &p.UserToken, &p.LanguageCode, &updatedMS); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.UpdatedAt = time.UnixMilli(updatedMS)
		out = append(out, p)
	}
	return out, rows.Err()
}

// AppendTranscript archives one exchange line for a profile.
func (s *SQLiteStore) AppendTranscript(ctx context.Context, profile, source, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcript (id, profile, source, content, created_at_ms)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), profile, source, text, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// Transcript returns up to limit lines for a profile, oldest first.
func (s *SQLiteStore) Transcript(ctx context.Context, profile string, limit int) ([]TranscriptEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile, source, content, created_at_ms FROM (
			SELECT id, profile, source, content, created_at_ms
			FROM transcript WHERE profile = ?
			ORDER BY created_at_ms DESC LIMIT ?
		) ORDER BY created_at_ms ASC`, profile, limit)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	defer rows.Close()

	var out []TranscriptEntry
	for rows.Next() {
		var e TranscriptEntry
		var createdMS int64
		if err := rows.Scan(&e.ID, &e.Profile, &e.Source, &e.Text, &createdMS); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, e)
	}
	return out, rows.Err()
}
