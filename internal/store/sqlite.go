// ABOUTME: SQLite implementation of the storage module backend using modernc.org/sqlite
// ABOUTME: Persists admin records under the module's install directory with bcrypt hashes

package store

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
	"golang.org/x/crypto/bcrypt"

	"github.com/mindevis/QMServer/internal/modules"

	_ "modernc.org/sqlite"
)

// DatabaseFile is the name of the SQLite database inside the module's data
// directory.
const DatabaseFile = "qmserver.db"

// SQLiteStore implements modules.Backend over a SQLite database owned by the
// installed sqlite module.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if needed) the module's database under
// moduleDir/data. The schema is created by InitDatabase, the module's
// initialization hook.
func New(moduleDir string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dataDir := filepath.Join(moduleDir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps concurrent reads from blocking on writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Factory adapts New to the modules.BackendFactory signature.
func Factory(moduleDir string) (modules.Backend, error) {
	return New(moduleDir)
}

// InitDatabase creates the admins table if it doesn't exist.
func (s *SQLiteStore) InitDatabase(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS admins (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_admins_email
			ON admins(email);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	s.logger.Info("sqlite store initialized")
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}

// CreateAdmin hashes the password with bcrypt and inserts a new admin.
// Returns modules.ErrAdminExists on a duplicate username.
func (s *SQLiteStore) CreateAdmin(ctx context.Context, username, password, email string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	query := `
		INSERT INTO admins (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.NewString(),
		username,
		email,
		string(hash),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return modules.ErrAdminExists
		}
		return fmt.Errorf("inserting admin: %w", err)
	}

	s.logger.Info("created admin", "username", username)
	return nil
}

// GetAdminByUsername retrieves an admin by username.
func (s *SQLiteStore) GetAdminByUsername(ctx context.Context, username string) (*modules.Admin, error) {
	return s.getAdmin(ctx, "username = ?", username)
}

// GetAdminByEmail retrieves an admin by email.
func (s *SQLiteStore) GetAdminByEmail(ctx context.Context, email string) (*modules.Admin, error) {
	return s.getAdmin(ctx, "email = ?", email)
}

func (s *SQLiteStore) getAdmin(ctx context.Context, where string, arg any) (*modules.Admin, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM admins
		WHERE ` + where

	var admin modules.Admin
	var email sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&admin.ID,
		&admin.Username,
		&email,
		&admin.PasswordHash,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, modules.ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin: %w", err)
	}

	admin.Email = email.String
	if t, err := time.Parse(time.RFC3339, createdAtStr); err == nil {
		admin.CreatedAt = t
	}
	return &admin, nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func (s *SQLiteStore) VerifyPassword(passwordHash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}

// UpdateAdminUsername renames an admin. Returns modules.ErrAdminNotFound if
// no admin has the old username and modules.ErrAdminExists if the new one is
// taken.
func (s *SQLiteStore) UpdateAdminUsername(ctx context.Context, oldUsername, newUsername string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE admins SET username = ? WHERE username = ?`,
		newUsername, oldUsername,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return modules.ErrAdminExists
		}
		return fmt.Errorf("updating admin username: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return modules.ErrAdminNotFound
	}

	s.logger.Info("updated admin username", "old", oldUsername, "new", newUsername)
	return nil
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed" in the error message
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "unique constraint"))
}
