// Package tracker implements the read tracker: the per-session precondition
// gate that requires a file be read before it can be edited.
package tracker

import (
	"path/filepath"
	"sync"
)

// ReadTracker records which absolute file paths have been read during a
// session. It is consulted by the edit tool as a precondition and is never
// cleared automatically — a file read once stays "read" for the lifetime of
// the tracker, even across many unrelated edits. This mirrors
// codefuse/core/read_tracker.py exactly, including the latent consequence
// that a file edited, then changed out-of-band, then edited again still
// counts as "read" with no re-read required.
type ReadTracker struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// New creates an empty ReadTracker.
func New() *ReadTracker {
	return &ReadTracker{paths: make(map[string]struct{})}
}

// MarkAsRead records path (resolved to an absolute, cleaned form) as read.
func (t *ReadTracker) MarkAsRead(path string) {
	abs := normalize(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths[abs] = struct{}{}
}

// IsRead reports whether path has previously been marked as read.
func (t *ReadTracker) IsRead(path string) bool {
	abs := normalize(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.paths[abs]
	return ok
}

// Clear removes all recorded reads. Not called by any built-in tool or loop
// path — provided only so a host embedding this package can reset state
// between unrelated sessions sharing one tracker instance.
func (t *ReadTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = make(map[string]struct{})
}

func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
