// ABOUTME: Tests for the module registry's single-entry and copy semantics.
// ABOUTME: Validates lookups, overwrites, and snapshot isolation of returned records.

package modules

import (
	"errors"
	"testing"
)

func TestRegistry_PutAndGet(t *testing.T) {
	r := NewRegistry()
	r.Put(ModuleInfo{Name: "sqlite", Version: "1.0.0", State: StateActivated, IsInstalled: true, IsActivated: true})

	info, err := r.Get("sqlite")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if info.Version != "1.0.0" || info.State != StateActivated {
		t.Errorf("Get() = %+v", info)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("postgres")
	if !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("Get() error = %v, want ErrModuleNotFound", err)
	}
}

func TestRegistry_PutOverwritesSingleEntry(t *testing.T) {
	r := NewRegistry()
	r.Put(ModuleInfo{Name: "sqlite", Version: "1.0.0"})
	r.Put(ModuleInfo{Name: "sqlite", Version: "2.0.0"})

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	info, err := r.Get("sqlite")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if info.Version != "2.0.0" {
		t.Errorf("Version = %q, want overwrite to 2.0.0", info.Version)
	}
}

func TestRegistry_Update(t *testing.T) {
	r := NewRegistry()
	r.Put(ModuleInfo{Name: "sqlite", State: StateUnknown})

	r.Update("sqlite", func(info *ModuleInfo) {
		info.IsInstalled = true
		info.State = StateInstalled
	})

	info, _ := r.Get("sqlite")
	if !info.IsInstalled || info.State != StateInstalled {
		t.Errorf("Update not applied: %+v", info)
	}

	// Updating a missing entry is a no-op, not a panic.
	r.Update("postgres", func(info *ModuleInfo) { info.IsInstalled = true })
}

func TestRegistry_ListReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.Put(ModuleInfo{Name: "sqlite", Version: "1.0.0"})

	list := r.List()
	if len(list) != 1 {
		t.Fatalf("List() len = %d, want 1", len(list))
	}

	entry := list["sqlite"]
	entry.Version = "mutated"

	info, _ := r.Get("sqlite")
	if info.Version != "1.0.0" {
		t.Error("List() must return copies, registry entry was mutated")
	}
}
