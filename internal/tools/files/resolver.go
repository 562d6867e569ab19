package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves and validates absolute paths against the workspace root.
type Resolver struct {
	Root string
}

// Resolve validates and normalizes path against the workspace root, per
// spec.md §4.4's path pre-flight contract: (1) reject relative paths —
// absolute required; (2) follow symlinks and normalize; (3) reject if the
// resolved path escapes the workspace root.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	if !filepath.IsAbs(clean) {
		return "", fmt.Errorf("path must be absolute, got relative path %q", clean)
	}

	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	rootResolved, err := evalSymlinksBestEffort(rootAbs)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}

	target := filepath.Clean(clean)
	targetResolved, err := evalSymlinksBestEffort(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(rootResolved, targetResolved)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return targetResolved, nil
}

// evalSymlinksBestEffort resolves symlinks in path the way filepath.EvalSymlinks
// does, but tolerates a path (or suffix of one) that doesn't exist yet — the
// case of write_file creating a new file — by resolving the nearest existing
// ancestor and rejoining the remaining, not-yet-created components verbatim.
func evalSymlinksBestEffort(path string) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		return filepath.EvalSymlinks(path)
	}
	parent, base := filepath.Dir(path), filepath.Base(path)
	if parent == path {
		return path, nil
	}
	resolvedParent, err := evalSymlinksBestEffort(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, base), nil
}
