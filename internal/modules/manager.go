// ABOUTME: Startup orchestrator sequencing fetch, install, metadata load, and activation.
// ABOUTME: Each stage failure degrades the registry entry and logging continues; the server always starts.

package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SourceMode selects how a module maps onto the remote repository.
type SourceMode string

const (
	// SourceBranch fetches one branch per module; the branch tree is the module.
	SourceBranch SourceMode = "branch"
	// SourceDirectory fetches the whole repository once; a module is a
	// subdirectory of that single working copy.
	SourceDirectory SourceMode = "directory"
)

// DefaultFetchTimeout bounds a single module fetch when the config doesn't.
const DefaultFetchTimeout = 60 * time.Second

// ManagerConfig configures the module Manager.
type ManagerConfig struct {
	// RepoURL and RepoToken locate the remote module repository. Leaving
	// either empty short-circuits the pipeline to a not-configured state
	// without network I/O.
	RepoURL   string
	RepoToken string

	// InstallRoot is the directory holding one subdirectory per installed
	// module. CacheRoot holds the reused git working copies.
	InstallRoot string
	CacheRoot   string

	// Modules are the module names to process at startup, in order.
	Modules []string

	Mode         SourceMode
	FetchTimeout time.Duration

	// Factories maps module names to their statically linked backends.
	Factories map[string]BackendFactory

	// Fetcher overrides the git fetcher. Nil uses NewFetcher over RepoURL.
	Fetcher RefFetcher

	Logger *slog.Logger
}

// RefFetcher resolves a module ref to a local source tree.
type RefFetcher interface {
	Fetch(ctx context.Context, ref string) (string, error)
}

// Manager owns the module registry and the active storage backend. It runs
// the startup pipeline once per configured module; the registry is read-only
// to everything else.
type Manager struct {
	cfg      ManagerConfig
	registry *Registry
	logger   *slog.Logger

	mu      sync.RWMutex
	backend Backend
}

// NewManager creates a Manager. It performs no I/O; call Sync to run the
// pipeline.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = SourceBranch
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Manager{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   cfg.Logger.With("component", "modules"),
	}
}

// Registry returns the module registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Backend returns the active storage backend, or nil when no module has
// activated.
func (m *Manager) Backend() Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

// Close releases the active backend, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backend == nil {
		return nil
	}
	err := m.backend.Close()
	m.backend = nil
	return err
}

// Sync runs the full pipeline for every configured module, sequentially.
// Stage failures are logged and recorded in the registry; Sync itself only
// fails on a context cancellation between modules.
func (m *Manager) Sync(ctx context.Context) error {
	for _, name := range m.cfg.Modules {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.syncModule(ctx, name)
	}
	return nil
}

// syncModule drives one module through fetch, install, metadata load, and
// activation, updating its registry entry as each stage completes or fails.
func (m *Manager) syncModule(ctx context.Context, name string) {
	m.registry.Put(ModuleInfo{
		Name:        name,
		Version:     DefaultVersion,
		Description: DefaultDescription,
		State:       StateUnknown,
	})

	if m.cfg.RepoURL == "" || m.cfg.RepoToken == "" {
		m.logger.Warn("module repository not configured, skipping module pipeline", "module", name)
		m.registry.Update(name, func(info *ModuleInfo) {
			info.State = StateNotConfigured
			info.Description = "Module repository is not configured."
		})
		return
	}

	src, err := m.fetch(ctx, name)
	if err != nil {
		m.logger.Error("module fetch failed", "module", name, "error", err)
		m.registry.Update(name, func(info *ModuleInfo) {
			info.State = StateFetchFailed
			info.Description = fmt.Sprintf("Fetch failed: %v", err)
		})
		return
	}

	m.registry.Update(name, func(info *ModuleInfo) { info.State = StateInstalling })
	installer, err := NewInstaller(m.cfg.InstallRoot, m.logger)
	if err == nil {
		err = installer.Install(name, src)
	}
	if err != nil {
		m.logger.Error("module install failed", "module", name, "error", err)
		m.registry.Update(name, func(info *ModuleInfo) {
			info.State = StateInstallFailed
			info.Description = fmt.Sprintf("Install failed: %v", err)
		})
		return
	}

	moduleDir := installer.Dir(name)
	m.registry.Update(name, func(info *ModuleInfo) { info.State = StateInstalled })
	m.logger.Info("module installed", "module", name, "dir", moduleDir)

	desc := LoadDescriptor(moduleDir, name, m.logger)
	m.registry.Update(name, func(info *ModuleInfo) {
		info.Name = desc.Name
		info.Version = desc.Version
		info.IsFree = desc.IsFree
		info.IsDefault = desc.IsDefault
		info.Description = desc.Description
		info.IsInstalled = true
		info.State = StateMetadataLoaded
	})

	m.activate(ctx, name, moduleDir)
}

// fetch resolves the module's source tree according to the configured source
// mode and returns its local path.
func (m *Manager) fetch(ctx context.Context, name string) (string, error) {
	fetcher := m.cfg.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(m.cfg.RepoURL, m.cfg.RepoToken, m.cfg.CacheRoot, m.logger)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()

	m.registry.Update(name, func(info *ModuleInfo) { info.State = StateFetching })

	ref := name
	if m.cfg.Mode == SourceDirectory {
		ref = WholeRepo
	}
	path, err := fetcher.Fetch(ctx, ref)
	if err != nil {
		return "", err
	}

	if m.cfg.Mode == SourceDirectory {
		path = filepath.Join(path, name)
		if _, err := os.Stat(path); err != nil {
			return "", &FetchError{Ref: name, Err: fmt.Errorf("module directory not found in repository: %w", err)}
		}
	}
	return path, nil
}

// activate constructs the registered backend for the module and invokes its
// initialization hook. A missing factory is logged and leaves the module
// installed but not activated; any error degrades to load_failed without
// aborting the pipeline.
func (m *Manager) activate(ctx context.Context, name, moduleDir string) {
	factory, ok := m.cfg.Factories[name]
	if !ok {
		m.logger.Warn("module has no registered backend, skipping activation", "module", name)
		return
	}

	m.registry.Update(name, func(info *ModuleInfo) { info.State = StateLoading })

	backend, err := factory(moduleDir)
	if err == nil {
		err = backend.InitDatabase(ctx)
		if err != nil {
			backend.Close()
		}
	}
	if err != nil {
		aerr := &ActivationError{Module: name, Err: err}
		m.logger.Error("module activation failed", "module", name, "error", aerr)
		m.registry.Update(name, func(info *ModuleInfo) { info.State = StateLoadFailed })
		return
	}

	// The new backend replaces any previous one wholesale.
	m.mu.Lock()
	old := m.backend
	m.backend = backend
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	m.registry.Update(name, func(info *ModuleInfo) {
		info.IsActivated = true
		info.State = StateActivated
	})
	m.logger.Info("module activated", "module", name)
}
