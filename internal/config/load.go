package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is the outcome of Load. Exists is false when defaults were used.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load reads the config at explicitPath (or the XDG default), applies it
// over Default, and resolves home-relative paths. A missing file is a
// warning, never an error.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path}
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Config = Default()
		loaded.Warnings = []Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", path)}}
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		cfg, warnings, err := Parse(string(content), Default())
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	dir, err := ExpandHome(loaded.Config.Screenshots.Dir)
	if err != nil {
		return Loaded{}, fmt.Errorf("resolve screenshots.dir: %w", err)
	}
	loaded.Config.Screenshots.Dir = dir
	return loaded, nil
}
