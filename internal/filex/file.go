// Package filex contains small filesystem helpers for server start-up.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir makes sure dir exists and returns its absolute path. Relative
// paths are resolved against the working directory; an empty dir resolves
// to the system temp directory.
func EnsureDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return os.TempDir(), nil
	}

	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// EnsureParentDir creates the directory that will hold file path p.
func EnsureParentDir(p string) error {
	if strings.TrimSpace(p) == "" {
		return nil
	}
	_, err := EnsureDir(filepath.Dir(p))
	return err
}
