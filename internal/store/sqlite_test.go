// ABOUTME: Tests for the SQLite admin store backend
// ABOUTME: Covers admin CRUD, duplicate detection, password verification, and renames

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mindevis/QMServer/internal/modules"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.InitDatabase(context.Background()); err != nil {
		t.Fatalf("InitDatabase failed: %v", err)
	}
	return s
}

func TestNew_CreatesDataDirectory(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, "data", DatabaseFile)); os.IsNotExist(err) {
		t.Error("database file was not created under the module data directory")
	}
}

func TestCreateAndGetAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAdmin(ctx, "alice", "s3cret", "alice@example.com"); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	admin, err := s.GetAdminByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAdminByUsername failed: %v", err)
	}
	if admin.Username != "alice" || admin.Email != "alice@example.com" {
		t.Errorf("unexpected admin: %+v", admin)
	}
	if admin.ID == "" {
		t.Error("admin ID should be generated")
	}
	if admin.PasswordHash == "s3cret" {
		t.Error("password must be stored hashed, not in plaintext")
	}
	if admin.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func TestCreateAdmin_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAdmin(ctx, "alice", "one", "a@example.com"); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	err := s.CreateAdmin(ctx, "alice", "two", "b@example.com")
	if !errors.Is(err, modules.ErrAdminExists) {
		t.Errorf("CreateAdmin error = %v, want ErrAdminExists", err)
	}
}

func TestGetAdminByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAdmin(ctx, "bob", "pw", "bob@example.com"); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	admin, err := s.GetAdminByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail failed: %v", err)
	}
	if admin.Username != "bob" {
		t.Errorf("Username = %q, want bob", admin.Username)
	}

	if _, err := s.GetAdminByEmail(ctx, "nobody@example.com"); !errors.Is(err, modules.ErrAdminNotFound) {
		t.Errorf("GetAdminByEmail error = %v, want ErrAdminNotFound", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAdmin(ctx, "carol", "correct-horse", ""); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}
	admin, err := s.GetAdminByUsername(ctx, "carol")
	if err != nil {
		t.Fatalf("GetAdminByUsername failed: %v", err)
	}

	if !s.VerifyPassword(admin.PasswordHash, "correct-horse") {
		t.Error("VerifyPassword should accept the correct password")
	}
	if s.VerifyPassword(admin.PasswordHash, "battery-staple") {
		t.Error("VerifyPassword should reject a wrong password")
	}
}

func TestUpdateAdminUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAdmin(ctx, "dave", "pw", "dave@example.com"); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	if err := s.UpdateAdminUsername(ctx, "dave", "david"); err != nil {
		t.Fatalf("UpdateAdminUsername failed: %v", err)
	}

	if _, err := s.GetAdminByUsername(ctx, "dave"); !errors.Is(err, modules.ErrAdminNotFound) {
		t.Errorf("old username still resolves, err = %v", err)
	}
	admin, err := s.GetAdminByUsername(ctx, "david")
	if err != nil {
		t.Fatalf("GetAdminByUsername(david) failed: %v", err)
	}
	if admin.Email != "dave@example.com" {
		t.Errorf("rename must keep other fields, got %+v", admin)
	}
}

func TestUpdateAdminUsername_Missing(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateAdminUsername(context.Background(), "ghost", "spirit")
	if !errors.Is(err, modules.ErrAdminNotFound) {
		t.Errorf("UpdateAdminUsername error = %v, want ErrAdminNotFound", err)
	}
}

func TestUpdateAdminUsername_Taken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAdmin(ctx, "erin", "pw", ""); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}
	if err := s.CreateAdmin(ctx, "frank", "pw", ""); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	err := s.UpdateAdminUsername(ctx, "frank", "erin")
	if !errors.Is(err, modules.ErrAdminExists) {
		t.Errorf("UpdateAdminUsername error = %v, want ErrAdminExists", err)
	}
}
