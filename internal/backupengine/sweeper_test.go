package backupengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapvault/snapvault/internal/catalogue"
	"github.com/snapvault/snapvault/internal/snapshotdir"
	"github.com/snapvault/snapvault/internal/timestamp"
)

func TestSweeperArchivesMissingSourceFile(t *testing.T) {
	source := t.TempDir()
	backup := t.TempDir()
	mirrorRoot := filepath.Join(backup, "backup")
	historyRoot := filepath.Join(backup, "deleted")

	require.NoError(t, os.MkdirAll(mirrorRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mirrorRoot, "gone.txt"), []byte("old content"), 0o644))

	pool := catalogue.NewSQLitePool(filepath.Join(backup, "backup.db"))
	require.NoError(t, pool.InitializeSchema())
	defer pool.Close() //nolint:errcheck

	repo, err := pool.ForWorker("sweeper")
	require.NoError(t, err)
	require.NoError(t, repo.Upsert("gone.txt", "hash1", catalogue.Added, "2019-12-31_00-00-00"))

	sw := &sweeper{
		sourceRoot: source,
		mirrorRoot: mirrorRoot,
		snapshot:   snapshotdir.New(historyRoot, timestamp.Fixed("2020-01-01_00-00-00")),
		repo:       repo,
		clock:      timestamp.Fixed("2020-01-01_00-00-00"),
	}

	var fail failFlag
	ok := sw.sweep(context.Background(), &fail)

	require.True(t, ok)
	require.True(t, fail.ok())

	entry, found, err := repo.Get("gone.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, catalogue.Deleted, entry.Status)

	require.NoFileExists(t, filepath.Join(mirrorRoot, "gone.txt"))
	require.Equal(t, "old content", mustReadFile(t, filepath.Join(historyRoot, "2020-01-01_00-00-00", "gone.txt")))
}

func TestSweeperSkipsAlreadyDeletedAndPresentFiles(t *testing.T) {
	source := t.TempDir()
	backup := t.TempDir()
	mirrorRoot := filepath.Join(backup, "backup")
	historyRoot := filepath.Join(backup, "deleted")

	require.NoError(t, os.WriteFile(filepath.Join(source, "here.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(mirrorRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mirrorRoot, "here.txt"), []byte("x"), 0o644))

	pool := catalogue.NewSQLitePool(filepath.Join(backup, "backup.db"))
	require.NoError(t, pool.InitializeSchema())
	defer pool.Close() //nolint:errcheck

	repo, err := pool.ForWorker("sweeper")
	require.NoError(t, err)
	require.NoError(t, repo.Upsert("here.txt", "hash1", catalogue.Added, "2019-12-31_00-00-00"))
	require.NoError(t, repo.Upsert("already-gone.txt", "hash2", catalogue.Deleted, "2019-12-30_00-00-00"))

	sw := &sweeper{
		sourceRoot: source,
		mirrorRoot: mirrorRoot,
		snapshot:   snapshotdir.New(historyRoot, timestamp.Fixed("2020-01-01_00-00-00")),
		repo:       repo,
		clock:      timestamp.Fixed("2020-01-01_00-00-00"),
	}

	var fail failFlag
	require.True(t, sw.sweep(context.Background(), &fail))
	require.True(t, fail.ok())

	entry, _, err := repo.Get("here.txt")
	require.NoError(t, err)
	require.Equal(t, catalogue.Added, entry.Status, "present source file must not be swept")

	require.NoDirExists(t, filepath.Join(historyRoot, "2020-01-01_00-00-00"))
}

func TestSweeperDryRunTouchesNeitherMirrorNorCatalogue(t *testing.T) {
	source := t.TempDir()
	backup := t.TempDir()
	mirrorRoot := filepath.Join(backup, "backup")
	historyRoot := filepath.Join(backup, "deleted")

	require.NoError(t, os.MkdirAll(mirrorRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mirrorRoot, "gone.txt"), []byte("old content"), 0o644))

	pool := catalogue.NewSQLitePool(filepath.Join(backup, "backup.db"))
	require.NoError(t, pool.InitializeSchema())
	defer pool.Close() //nolint:errcheck

	repo, err := pool.ForWorker("sweeper")
	require.NoError(t, err)
	require.NoError(t, repo.Upsert("gone.txt", "hash1", catalogue.Added, "2019-12-31_00-00-00"))

	sw := &sweeper{
		sourceRoot: source,
		mirrorRoot: mirrorRoot,
		snapshot:   snapshotdir.New(historyRoot, timestamp.Fixed("2020-01-01_00-00-00")),
		repo:       repo,
		clock:      timestamp.Fixed("2020-01-01_00-00-00"),
		dryRun:     true,
	}

	var fail failFlag
	ok := sw.sweep(context.Background(), &fail)

	require.True(t, ok)
	require.True(t, fail.ok())

	entry, found, err := repo.Get("gone.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, catalogue.Added, entry.Status, "dry run must not mark the catalogue entry deleted")

	require.FileExists(t, filepath.Join(mirrorRoot, "gone.txt"), "dry run must not remove the mirror copy")
	require.NoDirExists(t, filepath.Join(historyRoot, "2020-01-01_00-00-00"), "dry run must not create a snapshot directory")
}

func mustReadFile(t *testing.T, path string) string {
	t.Helper()

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(b)
}
