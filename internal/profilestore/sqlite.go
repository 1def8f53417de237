// ABOUTME: SQLite implementation of the ProfileStore persistence interface
// ABOUTME: Uses modernc.org/sqlite with WAL and automatic schema creation

package profilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. Parent directories
// are created if needed and the schema is bootstrapped automatically.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "profilestore")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps concurrent readers cheap.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("profile store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			university TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateUser inserts a new record. The email key is unique; a second insert
// for the same email returns ErrDuplicate.
func (s *SQLiteStore) CreateUser(ctx context.Context, rec *UserRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Email = strings.ToLower(rec.Email)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, university, address, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Email, rec.Name, rec.University, rec.Address, rec.Phone, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser fetches a record by email.
func (s *SQLiteStore) GetUser(ctx context.Context, email string) (*UserRecord, error) {
	var rec UserRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, university, address, phone, created_at, updated_at
		FROM users WHERE email = ?`, strings.ToLower(email)).
		Scan(&rec.ID, &rec.Email, &rec.Name, &rec.University, &rec.Address, &rec.Phone,
			&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &rec, nil
}

// UpdateUser applies a partial update and returns the resulting record.
func (s *SQLiteStore) UpdateUser(ctx context.Context, email string, patch UserPatch) (*UserRecord, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.University != nil {
		sets = append(sets, "university = ?")
		args = append(args, *patch.University)
	}
	if patch.Address != nil {
		sets = append(sets, "address = ?")
		args = append(args, *patch.Address)
	}
	if patch.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, *patch.Phone)
	}
	args = append(args, strings.ToLower(email))

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE email = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.GetUser(ctx, email)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
