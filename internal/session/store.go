package session

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// UserStore persists the session user in a small SQLite database.
type UserStore struct {
	db *sql.DB
}

// NewUserStore opens (or creates) session.db under basePath.
// basePath ":memory:" keeps everything in memory.
func NewUserStore(basePath string) (*UserStore, error) {
	var dbPath string
	if basePath == ":memory:" {
		dbPath = ":memory:"
	} else {
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
		dbPath = filepath.Join(basePath, "session.db")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	s := &UserStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *UserStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS session_user (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		uid TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		signed_in_at TEXT NOT NULL
	);`)
	return err
}

// SaveUser replaces the stored user.
func (s *UserStore) SaveUser(u User) error {
	_, err := s.db.Exec(`
	INSERT INTO session_user (slot, uid, display_name, email, avatar_url, signed_in_at)
	VALUES (1, ?, ?, ?, ?, ?)
	ON CONFLICT(slot) DO UPDATE SET
		uid = excluded.uid,
		display_name = excluded.display_name,
		email = excluded.email,
		avatar_url = excluded.avatar_url,
		signed_in_at = excluded.signed_in_at`,
		u.ID, u.DisplayName, u.Email, u.AvatarURL, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// LoadUser returns the stored user, or nil if nobody is signed in.
func (s *UserStore) LoadUser() (*User, error) {
	var u User
	err := s.db.QueryRow(`SELECT uid, display_name, email, avatar_url FROM session_user WHERE slot = 1`).
		Scan(&u.ID, &u.DisplayName, &u.Email, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

// DeleteUser removes the stored user.
func (s *UserStore) DeleteUser() error {
	if _, err := s.db.Exec(`DELETE FROM session_user`); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *UserStore) Close() error {
	return s.db.Close()
}
