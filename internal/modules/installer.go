// ABOUTME: Installs fetched module trees into the modules root directory.
// ABOUTME: Copies into a staging directory then atomically renames over the previous install.

package modules

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Installer places module source trees under a root install directory, one
// subdirectory per module name. An install is a full replace: the source tree
// is staged next to the destination and swapped in with a rename, so a failed
// copy never removes a previously installed module.
type Installer struct {
	root   string
	logger *slog.Logger
}

// NewInstaller creates an Installer rooted at root, creating it if needed.
// Staging and .old directories orphaned by a crashed run are swept on creation.
func NewInstaller(root string, logger *slog.Logger) (*Installer, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating modules root: %w", err)
	}
	inst := &Installer{
		root:   root,
		logger: logger.With("component", "installer"),
	}
	inst.sweepOrphans()
	return inst, nil
}

// sweepOrphans removes leftover staging and .old directories from interrupted
// installs. Failures are logged and ignored; a leftover only wastes disk.
func (i *Installer) sweepOrphans() {
	for _, pattern := range []string{".*-staging-*", "*.old"} {
		matches, err := filepath.Glob(filepath.Join(i.root, pattern))
		if err != nil {
			continue
		}
		for _, match := range matches {
			if err := os.RemoveAll(match); err != nil {
				i.logger.Warn("failed to remove orphaned install directory", "path", match, "error", err)
				continue
			}
			i.logger.Debug("removed orphaned install directory", "path", match)
		}
	}
}

// Dir returns the install directory for a module name.
func (i *Installer) Dir(name string) string {
	return filepath.Join(i.root, name)
}

// Install copies the complete tree at src into the install directory for
// name, replacing any previous install. The .git directory of a working copy
// is not part of the module and is skipped. Failures are reported as
// *InstallError and leave the previous install untouched.
func (i *Installer) Install(name, src string) error {
	staging, err := os.MkdirTemp(i.root, "."+name+"-staging-*")
	if err != nil {
		return &InstallError{Module: name, Err: err}
	}

	// MkdirTemp creates 0700; the staging dir becomes the install dir on
	// rename, so give it the source root's mode instead.
	if srcInfo, err := os.Stat(src); err == nil {
		if err := os.Chmod(staging, srcInfo.Mode().Perm()); err != nil {
			os.RemoveAll(staging)
			return &InstallError{Module: name, Err: err}
		}
	}

	if err := copyTree(src, staging); err != nil {
		os.RemoveAll(staging)
		return &InstallError{Module: name, Err: err}
	}

	dest := i.Dir(name)
	old := dest + ".old"
	os.RemoveAll(old)

	replaced := false
	if _, err := os.Stat(dest); err == nil {
		replaced = true
		if err := os.Rename(dest, old); err != nil {
			os.RemoveAll(staging)
			return &InstallError{Module: name, Err: err}
		}
	}

	if err := os.Rename(staging, dest); err != nil {
		// Put the previous install back before reporting failure.
		if replaced {
			os.Rename(old, dest)
		}
		os.RemoveAll(staging)
		return &InstallError{Module: name, Err: err}
	}
	os.RemoveAll(old)

	i.logger.Debug("module installed", "module", name, "from", src, "to", dest, "replaced", replaced)
	return nil
}

// copyTree recursively copies the directory tree at src into dst, which must
// already exist. File modes are preserved; no entry is silently skipped
// except .git directories.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
