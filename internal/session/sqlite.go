package session

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite keeps the token in a local database file, the terminal equivalent
// of the browser's origin-scoped local storage.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the session database at dbPath
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	return err
}

// Save stores the token, replacing any previous one
func (s *SQLite) Save(token string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		TokenKey, token, time.Now().Unix(),
	)
	return err
}

// Load returns the stored token, if any
func (s *SQLite) Load() (string, bool, error) {
	var token string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", TokenKey).Scan(&token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, token != "", nil
}

// Clear forgets the token
func (s *SQLite) Clear() error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", TokenKey)
	return err
}
