package backupengine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/snapvault/snapvault/internal/catalogue"
	"github.com/snapvault/snapvault/internal/digest"
	"github.com/snapvault/snapvault/internal/snapshotdir"
	"github.com/snapvault/snapvault/internal/timestamp"
)

// processor is the File Processor (spec §2 C7, §4.6): given one absolute
// path inside the source tree, it classifies the file against the
// catalogue, archives the previous mirror content if needed, refreshes the
// mirror, and updates the catalogue.
type processor struct {
	ctx context.Context //nolint:containedctx // bound once per run, handed to every worker closure

	sourceRoot string
	mirrorRoot string

	snapshot *snapshotdir.Handle
	repo     catalogue.WorkerRepository
	hash     digest.Func
	clock    timestamp.Provider
	reporter Reporter
	counter  *atomic.Int64
	fail     *failFlag
	dryRun   bool
}

// process implements workqueue.Process: it is invoked once per enqueued
// file, outside any lock, and must own its own failure reporting (spec
// §4.4, §4.6).
func (p *processor) process(file string) {
	relPath, err := relativePath(p.sourceRoot, file)
	if err != nil {
		p.fail.markFailed(p.ctx, err, "compute relative path for "+file)
		return
	}

	newHash, err := p.hash(file)
	if err != nil {
		p.fail.markFailed(p.ctx, err, "hash "+file)
		return
	}

	prior, hasPrior, err := p.repo.Get(relPath)
	if err != nil {
		p.fail.markFailed(p.ctx, err, "read catalogue entry for "+relPath)
		return
	}

	// A Deleted prior is mapped to "no prior" so the file resurrects
	// cleanly as Added rather than Unchanged (spec §4.6 step 3, §8 P5).
	if hasPrior && prior.Status == catalogue.Deleted {
		hasPrior = false
	}

	var (
		newStatus    catalogue.Status
		newTimestamp string
	)

	switch {
	case !hasPrior:
		newStatus = catalogue.Added
		newTimestamp = p.clock.Now()

		if err := p.writeMirror(file, relPath); err != nil {
			p.fail.markFailed(p.ctx, err, "write mirror copy of "+relPath)
			return
		}

	case newHash != prior.Hash:
		newStatus = catalogue.Modified
		newTimestamp = p.clock.Now()

		if err := p.archivePriorMirror(relPath); err != nil {
			p.fail.markFailed(p.ctx, err, "archive prior mirror copy of "+relPath)
			return
		}

		if err := p.writeMirror(file, relPath); err != nil {
			p.fail.markFailed(p.ctx, err, "write mirror copy of "+relPath)
			return
		}

	default:
		newStatus = catalogue.Unchanged
		newTimestamp = prior.LastUpdated
	}

	if !p.dryRun {
		if err := p.repo.Upsert(relPath, newHash, newStatus, newTimestamp); err != nil {
			p.fail.markFailed(p.ctx, err, "upsert catalogue entry for "+relPath)
			return
		}
	}

	n := p.counter.Add(1)
	p.reporter.report(StageCollecting, int(n), file)
}

// relativePath implements spec §4.6 step 1: the sentinel "." (single-file
// source at root) maps to the file's base name instead.
func relativePath(sourceRoot, file string) (string, error) {
	rel, err := filepath.Rel(sourceRoot, file)
	if err != nil {
		return "", errors.Wrapf(err, "relative path of %v under %v", file, sourceRoot)
	}

	if rel == "." {
		rel = filepath.Base(file)
	}

	// Catalogue keys are forward-slash normalized (spec §3).
	return filepath.ToSlash(rel), nil
}

// writeMirror copies file's bytes over backup/relPath, overwriting, and
// creating parent directories on the mirror side as needed (spec §4.6 step
// 4). It does not fabricate directories on the source side.
func (p *processor) writeMirror(file, relPath string) error {
	if p.dryRun {
		return nil
	}

	dst := filepath.Join(p.mirrorRoot, filepath.FromSlash(relPath))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "create mirror directory for %v", relPath)
	}

	return copyFile(file, dst)
}

// archivePriorMirror copies the existing backup/relPath into this run's
// snapshot directory before it is overwritten by the new content (spec
// §4.6 step 4, Modified branch). If the mirror copy is missing (an
// unexpected external deletion of backup/relPath), the snapshot step is
// skipped silently, matching the Open Question resolution in spec §9 /
// SPEC_FULL.md.
func (p *processor) archivePriorMirror(relPath string) error {
	if p.dryRun {
		return nil
	}

	src := filepath.Join(p.mirrorRoot, filepath.FromSlash(relPath))

	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			log(p.ctx).Infof("mirror copy missing for %v, skipping snapshot step", relPath)
			return nil
		}

		return errors.Wrapf(err, "stat mirror copy of %v", relPath)
	}

	snapshotDir, err := p.snapshot.GetOrCreate()
	if err != nil {
		return errors.Wrap(err, "create snapshot directory")
	}

	dst := filepath.Join(snapshotDir, filepath.FromSlash(relPath))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "create snapshot directory for %v", relPath)
	}

	return copyFile(src, dst)
}

// copyFile performs a byte-for-byte overwrite copy of src to dst.
// Preservation of timestamps/permissions is best-effort and not required
// (spec §4.6).
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %v", src)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %v", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return errors.Wrapf(err, "copy %v to %v", src, dst)
	}

	return errors.Wrap(out.Close(), "close "+dst)
}
