package manager

import (
	"fmt"
	"os"
	"path/filepath"
)

// TensorBoard accepts a single --logdir root, so a session's directories
// are aggregated by symlinking each one into a fresh temporary directory.
// Link names come from the last path segment, with a numeric suffix on
// collision.

const maxLinkSuffix = 10000

// ValidatePaths resolves each path and checks it is an existing directory.
// It returns the cleaned absolute paths with duplicates removed, preserving
// order.
func ValidatePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, &InvalidPathError{Reason: "at least one log directory is required"}
	}
	out := make([]string, 0, len(paths))
	seen := map[string]struct{}{}
	for _, raw := range paths {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return nil, &InvalidPathError{Path: raw, Reason: err.Error()}
		}
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &InvalidPathError{Path: raw, Reason: "does not exist"}
			}
			return nil, &InvalidPathError{Path: raw, Reason: err.Error()}
		}
		if !info.IsDir() {
			return nil, &InvalidPathError{Path: raw, Reason: "not a directory"}
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	if len(out) == 0 {
		return nil, &InvalidPathError{Reason: "at least one log directory is required"}
	}
	return out, nil
}

// BuildLogdir validates paths and materializes a new temporary directory
// containing one symlink per source directory. The caller owns the returned
// directory and removes it with RemoveLogdir when the process stops.
func BuildLogdir(paths []string) (string, error) {
	resolved, err := ValidatePaths(paths)
	if err != nil {
		return "", err
	}

	logdir, err := os.MkdirTemp("", "tbman-logdir-")
	if err != nil {
		return "", err
	}
	for _, src := range resolved {
		name, err := pickLinkName(logdir, filepath.Base(src))
		if err != nil {
			_ = RemoveLogdir(logdir)
			return "", err
		}
		if err := os.Symlink(src, filepath.Join(logdir, name)); err != nil {
			_ = RemoveLogdir(logdir)
			return "", err
		}
	}
	return logdir, nil
}

func pickLinkName(logdir, base string) (string, error) {
	name := base
	for n := 1; ; n++ {
		if _, err := os.Lstat(filepath.Join(logdir, name)); os.IsNotExist(err) {
			return name, nil
		} else if err != nil {
			return "", err
		}
		if n > maxLinkSuffix {
			return "", fmt.Errorf("unable to pick a link name for %q", base)
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
}

// RemoveLogdir deletes the symlink tree. Link targets are untouched and a
// missing directory is not an error.
func RemoveLogdir(logdir string) error {
	if logdir == "" {
		return nil
	}
	return os.RemoveAll(logdir)
}
