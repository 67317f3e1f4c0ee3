// Package backupengine implements the incremental, snapshot-based backup
// core described by spec.md: the File Processor (C7), Deletion Sweeper
// (C8), and Run Coordinator (C9) that ties them together with the Bounded
// Work Queue, Content Digest, File Enumerator, Snapshot Directory Handle,
// and State Repository from their own packages.
package backupengine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/snapvault/snapvault/internal/catalogue"
	"github.com/snapvault/snapvault/internal/digest"
	"github.com/snapvault/snapvault/internal/enumerate"
	"github.com/snapvault/snapvault/internal/snapshotdir"
	"github.com/snapvault/snapvault/internal/timestamp"
	"github.com/snapvault/snapvault/internal/workqueue"
)

// Config parameterizes one backup run (spec §6).
type Config struct {
	// SourceDir must be an existing directory or regular file.
	SourceDir string
	// BackupRoot will be created if it does not already exist.
	BackupRoot string
	// CatalogueLocation is the persistent catalogue's location, typically
	// BackupRoot/backup.db.
	CatalogueLocation string
	// Verbose is a hint for reporting; the core itself does not branch on
	// it, it is threaded through for the CLI's benefit.
	Verbose bool
	// DryRun enumerates and classifies every file but writes no mirror
	// copy, no snapshot directory, and no catalogue row (SPEC_FULL.md
	// supplemented feature; absent from spec.md's core). The backup/ and
	// deleted/ roots and the catalogue schema are still created.
	DryRun bool
	// Reporter receives progress events; may be nil.
	Reporter Reporter
	// Workers overrides the worker pool size; zero means
	// workqueue.DefaultWorkerCount().
	Workers int
	// Clock overrides the Timestamp Provider; nil means the system clock.
	Clock timestamp.Provider
	// Digest overrides the Content Digest function; nil means XXHash64.
	Digest digest.Func
}

// Summary aggregates the outcome of one run: per-status counts plus the
// overall success flag (SPEC_FULL.md "Run summary"; spec §3 says success is
// "reduced from per-file outcomes by logical AND"). The counts are the
// number of catalogue entries in each status once the run has finished, so
// Deleted also counts paths deleted in earlier runs.
type Summary struct {
	Added     int
	Modified  int
	Unchanged int
	Deleted   int
	Success   bool
}

type counts struct {
	added, modified, unchanged, deleted atomic.Int64
}

func (c *counts) snapshot(success bool) Summary {
	return Summary{
		Added:     int(c.added.Load()),
		Modified:  int(c.modified.Load()),
		Unchanged: int(c.unchanged.Load()),
		Deleted:   int(c.deleted.Load()),
		Success:   success,
	}
}

// RunBackup is the primary entry point (spec §6). It never panics or
// returns a Go error out of the top level (spec §7): every failure kind is
// reduced into Summary.Success, matching the boolean-only contract of
// spec §6's runBackup(config) -> success.
func RunBackup(ctx context.Context, cfg Config) Summary {
	c := &counts{}

	backupRoot, err := canonicalize(cfg.BackupRoot)
	if err != nil {
		log(ctx).Errorf("invalid backup root: %v", err)
		return c.snapshot(false)
	}

	mirrorRoot := filepath.Join(backupRoot, "backup")
	historyRoot := filepath.Join(backupRoot, "deleted")

	// backup/ and deleted/ are created unconditionally, even if the
	// source turns out to be invalid below (spec §8 scenario 6: a
	// nonexistent source still leaves both roots created and empty).
	if err := os.MkdirAll(mirrorRoot, 0o755); err != nil {
		log(ctx).Errorf("create mirror root: %v", err)
		return c.snapshot(false)
	}

	if err := os.MkdirAll(historyRoot, 0o755); err != nil {
		log(ctx).Errorf("create history root: %v", err)
		return c.snapshot(false)
	}

	enumeratePath, sourceRoot, err := normalizeSource(cfg.SourceDir)
	if err != nil {
		log(ctx).Errorf("invalid source: %v", err)
		return c.snapshot(false)
	}

	pool := catalogue.NewSQLitePool(cfg.CatalogueLocation)
	defer pool.Close() //nolint:errcheck

	if err := pool.InitializeSchema(); err != nil {
		log(ctx).Errorf("initialize catalogue schema: %v", err)
		return c.snapshot(false)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = timestamp.System{}
	}

	hash := cfg.Digest
	if hash == nil {
		hash = digest.XXHash64
	}

	snapshot := snapshotdir.New(historyRoot, clock)

	var (
		fail      failFlag
		reportMu  sync.Mutex
		processed atomic.Int64
		reported  int // guarded by reportMu
	)

	// Reporting callbacks are serialized under one mutex owned by the
	// coordinator, even though C7 runs concurrently across workers (spec
	// §2, §5). A worker can take its counter value and then lose the race
	// for reportMu to a worker holding a later value, so collecting-stage
	// events are renumbered under the lock; the processed values the
	// Reporter sees are therefore strictly increasing (spec §8 P8).
	reporter := func(stage string, p, total int, file string) {
		if cfg.Reporter == nil {
			return
		}

		reportMu.Lock()
		defer reportMu.Unlock()

		if stage == StageCollecting {
			reported++
			p = reported
		}

		cfg.Reporter(stage, p, total, file)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = workqueue.DefaultWorkerCount()
	}

	queue := workqueue.NewWithFactory(workers, 4*workers, func(int) workqueue.Process {
		workerID := uuid.NewString()

		repo, err := pool.ForWorker(workerID)
		if err != nil {
			// A worker that cannot obtain its dedicated connection can
			// never process any item; every item it would have handled
			// instead fails the run.
			fail.markFailed(ctx, err, "open dedicated catalogue connection")
			return func(string) {}
		}

		p := &processor{
			ctx:        ctx,
			sourceRoot: sourceRoot,
			mirrorRoot: mirrorRoot,
			snapshot:   snapshot,
			repo:       repo,
			hash:       hash,
			clock:      clock,
			reporter:   reporter,
			counter:    &processed,
			fail:       &fail,
			dryRun:     cfg.DryRun,
		}

		return p.process
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer queue.Finalize()

		return enumerate.Walk(enumeratePath, func(path string) error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			queue.Enqueue(path)

			return nil
		})
	})

	if err := g.Wait(); err != nil {
		fail.markFailed(ctx, err, "enumerate source tree")
	}

	if fail.ok() {
		repo, err := pool.ForWorker("sweeper")
		if err != nil {
			fail.markFailed(ctx, err, "open catalogue connection for deletion sweep")
		} else {
			sw := &sweeper{
				sourceRoot: sourceRoot,
				mirrorRoot: mirrorRoot,
				snapshot:   snapshot,
				repo:       repo,
				clock:      clock,
				reporter:   reporter,
				dryRun:     cfg.DryRun,
			}

			sw.sweep(ctx, &fail)
		}
	}

	// The summary's per-status counts are read back from the catalogue
	// once processing and sweeping have both finished, rather than
	// tallied incrementally by each worker: it is the simplest way to get
	// a consistent count without adding contention to the hot per-file
	// path, and it reflects exactly what a fresh listAll() would show a
	// caller inspecting the catalogue right after the run (SPEC_FULL.md
	// "Run summary").
	if !cfg.DryRun {
		tallyCounts(pool, c)
	}

	return c.snapshot(fail.ok())
}

// normalizeSource implements spec §4.8 step 1: a regular-file source's
// containing directory becomes the effective source root for relative-path
// math (spec §4.6 step 1), but enumeration must still walk the single named
// file, not everything else beside it in that directory (spec §4.2: "If
// path names a regular file, invoke once with that path"). enumeratePath is
// what the File Enumerator is given; sourceRoot is what relative paths are
// computed against. For a directory source the two are identical.
func normalizeSource(sourceDir string) (enumeratePath, sourceRoot string, err error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return "", "", errors.Wrapf(err, "access source %v", sourceDir)
	}

	enumeratePath, err = canonicalize(sourceDir)
	if err != nil {
		return "", "", err
	}

	if info.IsDir() {
		return enumeratePath, enumeratePath, nil
	}

	sourceRoot, err = canonicalize(filepath.Dir(sourceDir))
	if err != nil {
		return "", "", err
	}

	return enumeratePath, sourceRoot, nil
}

// canonicalize resolves path to an absolute, symlink-free form exactly once
// (the Open Question resolution recorded in SPEC_FULL.md / DESIGN.md), so
// catalogue keys are stable across invocations. Falls back to plain
// filepath.Abs if EvalSymlinks fails (e.g. backupRoot does not exist yet).
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolve absolute path for %v", path)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	return abs, nil
}

// tallyCounts reads the final catalogue and fills c with the number of
// entries in each status, for the CLI's end-of-run summary line.
func tallyCounts(pool catalogue.ConnectionPool, c *counts) {
	entries, err := pool.ListAll()
	if err != nil {
		return
	}

	c.added.Store(0)
	c.modified.Store(0)
	c.unchanged.Store(0)
	c.deleted.Store(0)

	for _, e := range entries {
		switch e.Status {
		case catalogue.Added:
			c.added.Add(1)
		case catalogue.Modified:
			c.modified.Add(1)
		case catalogue.Deleted:
			c.deleted.Add(1)
		default:
			c.unchanged.Add(1)
		}
	}
}
