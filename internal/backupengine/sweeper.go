package backupengine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/snapvault/snapvault/internal/catalogue"
	"github.com/snapvault/snapvault/internal/snapshotdir"
	"github.com/snapvault/snapvault/internal/timestamp"
)

// sweeper is the Deletion Sweeper (spec §2 C8, §4.7): after the
// enumerate/drain phase, it finds catalogue entries whose source file no
// longer exists and archives/removes them. It runs on a single thread,
// strictly happens-after every worker has joined (spec §5).
type sweeper struct {
	sourceRoot string
	mirrorRoot string

	snapshot *snapshotdir.Handle
	repo     catalogue.Repository
	clock    timestamp.Provider
	reporter Reporter
	dryRun   bool
}

// sweep implements spec §4.7. It returns false (and has already marked
// fail) on the first catalogue update failure, stopping the sweep early
// (spec §4.7 step 2, §7.4).
func (s *sweeper) sweep(ctx context.Context, fail *failFlag) bool {
	entries, err := s.repo.ListAll()
	if err != nil {
		fail.markFailed(ctx, err, "list catalogue entries for deletion sweep")
		return false
	}

	for _, e := range entries {
		if e.Status == catalogue.Deleted {
			continue
		}

		srcPath := filepath.Join(s.sourceRoot, filepath.FromSlash(e.Path))
		if _, err := os.Stat(srcPath); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			fail.markFailed(ctx, err, "stat source file for "+e.Path)
			return false
		}

		if err := s.archiveAndRemoveMirror(e.Path); err != nil {
			fail.markFailed(ctx, err, "archive deleted file "+e.Path)
			return false
		}

		if !s.dryRun {
			if err := s.repo.MarkDeleted(e.Path, s.clock.Now()); err != nil {
				fail.markFailed(ctx, err, "mark catalogue entry deleted "+e.Path)
				return false
			}
		}

		s.reporter.report(StageDeleted, 0, e.Path)
	}

	return true
}

// archiveAndRemoveMirror moves backup/path's current content into this
// run's snapshot directory, then removes backup/path (spec §4.7 step 2). A
// dry run never touches backup/ or deleted/, so it is a no-op here.
func (s *sweeper) archiveAndRemoveMirror(relPath string) error {
	if s.dryRun {
		return nil
	}

	mirrorPath := filepath.Join(s.mirrorRoot, filepath.FromSlash(relPath))

	if _, err := os.Stat(mirrorPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrapf(err, "stat mirror copy of %v", relPath)
	}

	snapshotDir, err := s.snapshot.GetOrCreate()
	if err != nil {
		return errors.Wrap(err, "create snapshot directory")
	}

	dst := filepath.Join(snapshotDir, filepath.FromSlash(relPath))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "create snapshot directory for %v", relPath)
	}

	if err := copyFile(mirrorPath, dst); err != nil {
		return err
	}

	return errors.Wrap(os.Remove(mirrorPath), "remove mirror copy of "+relPath)
}
