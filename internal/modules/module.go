// ABOUTME: Core types for installed modules: descriptor defaults, ModuleInfo, and pipeline states.
// ABOUTME: Defines the typed stage errors the startup pipeline reports without aborting.

package modules

import (
	"errors"
	"fmt"
)

// Descriptor defaults applied when module.json is absent or leaves fields unset.
const (
	DefaultVersion     = "0.0.0"
	DefaultDescription = "No description provided."
)

// DescriptorFile is the descriptor filename expected at the root of an installed module.
const DescriptorFile = "module.json"

// ErrModuleNotFound is returned when a requested module has no registry entry.
var ErrModuleNotFound = errors.New("module not found")

// ErrAdminNotFound is returned by backends when an admin record doesn't exist.
var ErrAdminNotFound = errors.New("admin not found")

// ErrAdminExists is returned by backends on a duplicate username or email.
var ErrAdminExists = errors.New("admin already exists")

// State tracks how far a module made it through the startup pipeline.
type State string

const (
	StateUnknown        State = "unknown"
	StateNotConfigured  State = "not_configured"
	StateFetching       State = "fetching"
	StateFetchFailed    State = "fetch_failed"
	StateInstalling     State = "installing"
	StateInstallFailed  State = "install_failed"
	StateInstalled      State = "installed"
	StateMetadataLoaded State = "metadata_loaded"
	StateLoading        State = "loading"
	StateLoadFailed     State = "load_failed"
	StateActivated      State = "activated"
)

// Descriptor is the declarative record a module ships as module.json.
type Descriptor struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	IsFree      bool   `json:"is_free"`
	IsDefault   bool   `json:"is_default"`
	Description string `json:"description"`
}

// ModuleInfo is the registry entry for a module. The descriptor fields are
// copied in once metadata loads; IsInstalled and IsActivated reflect only
// pipeline stages that actually completed.
type ModuleInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	IsFree      bool   `json:"is_free"`
	IsDefault   bool   `json:"is_default"`
	Description string `json:"description"`
	IsInstalled bool   `json:"is_installed"`
	IsActivated bool   `json:"is_activated"`
	State       State  `json:"state"`
}

// FetchError reports a failed clone or update of a module ref.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching ref %q: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// InstallError reports a filesystem failure while staging or swapping an install.
type InstallError struct {
	Module string
	Err    error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("installing module %q: %v", e.Module, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// ActivationError reports a backend construction or init-hook failure.
type ActivationError struct {
	Module string
	Err    error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activating module %q: %v", e.Module, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }
