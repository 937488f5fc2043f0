// ABOUTME: Loads module.json descriptors from installed module directories.
// ABOUTME: Always produces a usable record; missing or malformed files fall back to defaults.

package modules

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// LoadDescriptor reads the module.json descriptor from dir. Fields present in
// the file override defaults; a missing or unparseable file is logged as a
// warning and yields an all-default descriptor named after the requested
// module. It never fails the pipeline.
func LoadDescriptor(dir, name string, logger *slog.Logger) Descriptor {
	desc := Descriptor{
		Name:        name,
		Version:     DefaultVersion,
		Description: DefaultDescription,
	}

	path := filepath.Join(dir, DescriptorFile)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("module descriptor not found, using defaults", "module", name, "path", path)
		return desc
	}

	if err := json.Unmarshal(data, &desc); err != nil {
		logger.Warn("module descriptor is malformed, using defaults", "module", name, "path", path, "error", err)
		return Descriptor{
			Name:        name,
			Version:     DefaultVersion,
			Description: DefaultDescription,
		}
	}

	// Unmarshal leaves absent fields at their prefilled defaults, but an
	// explicit empty name still needs the fallback.
	if desc.Name == "" {
		desc.Name = name
	}

	return desc
}
