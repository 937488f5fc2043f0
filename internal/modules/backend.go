// ABOUTME: Storage backend contract that installed modules are expected to satisfy.
// ABOUTME: Backends are statically linked and selected by module name through registered factories.

package modules

import (
	"context"
	"time"
)

// Admin is an administrator record as exposed by a storage backend.
type Admin struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Backend is the capability surface of a storage module. The auth endpoints
// consume it through Manager.Backend; implementations own their persistence
// under the module's install directory.
type Backend interface {
	// InitDatabase is the module's initialization hook, invoked once on
	// activation. It sets up the module's persistent storage.
	InitDatabase(ctx context.Context) error

	CreateAdmin(ctx context.Context, username, password, email string) error
	GetAdminByUsername(ctx context.Context, username string) (*Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
	VerifyPassword(passwordHash, password string) bool
	UpdateAdminUsername(ctx context.Context, oldUsername, newUsername string) error

	Close() error
}

// BackendFactory constructs a Backend rooted at an installed module
// directory. Factories are registered per module name with the Manager;
// activating a module whose name has no factory is a warning, not a failure.
type BackendFactory func(moduleDir string) (Backend, error)
