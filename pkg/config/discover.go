package config

import (
	"os"
	"path/filepath"
)

// Find searches for .nodeview/config.yaml starting from dir (the working
// directory if empty) and walking up. The walk stops at the home directory.
func Find(dir string) (string, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return findConfig(dir)
}

// findConfig walks up from dir looking for a .nodeview/config.yaml file.
func findConfig(dir string) (string, error) {
	home, _ := os.UserHomeDir()

	for {
		candidate := filepath.Join(dir, DirName, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		// Don't go above home directory
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// ProjectPath returns where `nv init` writes the config for dir.
func ProjectPath(dir string) string {
	return filepath.Join(dir, DirName, FileName)
}
