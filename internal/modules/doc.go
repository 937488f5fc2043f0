// Package modules implements the module acquisition and installation
// pipeline behind QMServer's pluggable storage.
//
// # Pipeline
//
// At startup the Manager drives each configured module through four stages:
//
//  1. Fetch: clone or update a working copy of the module's ref from the
//     remote repository (Fetcher). Copies are cached per ref so repeated
//     startups pull instead of recloning.
//  2. Install: copy the fetched tree into the modules root, staged and
//     swapped in with an atomic rename (Installer).
//  3. Metadata: read module.json into a Descriptor, falling back to defaults
//     when absent or malformed (LoadDescriptor).
//  4. Activate: construct the statically linked Backend registered for the
//     module name and invoke its InitDatabase hook.
//
// A failure at any stage degrades the module's registry entry and the
// pipeline moves on; the server always starts, serving module metadata even
// for modules that never activated. Registry flags reflect only stages that
// actually completed.
//
// # Backends
//
// Fetched module code is never executed in-process. A module's behavior is
// provided by a Backend implementation compiled into the server and selected
// by module name through a BackendFactory, keeping the capability surface
// fixed: create/get admins, verify passwords, update usernames.
//
// # Source modes
//
// Two repository layouts are supported: one branch per module, where the
// branch tree is the module (SourceBranch), or a single default branch with
// one subdirectory per module (SourceDirectory).
package modules
