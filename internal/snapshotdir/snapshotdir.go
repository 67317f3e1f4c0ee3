// Package snapshotdir implements the Snapshot Directory Handle (spec §2 C4,
// §4.3): a single-assignment cell that lazily creates at most one
// timestamped directory per run, the first time any worker demands one.
package snapshotdir

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/snapvault/snapvault/internal/timestamp"
)

// Handle hands out the run's one snapshot directory, creating it (including
// parents) on first demand. Concurrent first callers block on the same
// sync.Once, so exactly one directory is created and every caller observes
// the same path (spec §4.3, §5 "single-assignment").
type Handle struct {
	historyRoot string
	clock       timestamp.Provider

	once sync.Once
	path string
	err  error
}

// New returns a Handle rooted at historyRoot (backupRoot/deleted). The
// timestamp is not chosen until GetOrCreate is first called.
func New(historyRoot string, clock timestamp.Provider) *Handle {
	return &Handle{historyRoot: historyRoot, clock: clock}
}

// GetOrCreate returns the run's snapshot directory path, creating it (and
// its parents) the first time it is called. Subsequent calls, concurrent or
// not, return the same path without touching the filesystem again.
func (h *Handle) GetOrCreate() (string, error) {
	h.once.Do(func() {
		h.path = filepath.Join(h.historyRoot, h.clock.Now())
		if err := os.MkdirAll(h.path, 0o755); err != nil {
			h.err = errors.Wrapf(err, "create snapshot directory %v", h.path)
		}
	})

	return h.path, h.err
}

// Created reports whether GetOrCreate has been called at least once. It is
// used only by tests checking that the directory is not created before the
// first demand (the laziness behind spec §8 P3).
func (h *Handle) Created() bool {
	// once.Do has either run or not; path is empty exactly when it hasn't,
	// because a successful creation always sets path to a non-empty join.
	return h.path != "" || h.err != nil
}
