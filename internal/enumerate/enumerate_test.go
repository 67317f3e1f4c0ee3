package enumerate_test

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapvault/snapvault/internal/enumerate"
)

func TestWalkDirectoryFindsOnlyRegularFiles(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("b"), 0o644))

	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")))
	}

	var found []string
	require.NoError(t, enumerate.Walk(root, func(p string) error {
		found = append(found, p)
		return nil
	}))

	sort.Strings(found)

	want := []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub", "b.txt"),
	}
	sort.Strings(want)

	require.Equal(t, want, found)
}

func TestWalkSingleRegularFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "only.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	var found []string
	require.NoError(t, enumerate.Walk(path, func(p string) error {
		found = append(found, p)
		return nil
	}))

	require.Equal(t, []string{path}, found)
}

func TestWalkSkipsUnreadableSubtree(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits behave differently on windows")
	}

	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permission bits")
	}

	root := t.TempDir()
	blocked := filepath.Join(root, "blocked")
	require.NoError(t, os.MkdirAll(blocked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "secret.txt"), []byte("s"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible.txt"), []byte("v"), 0o644))
	require.NoError(t, os.Chmod(blocked, 0o000))

	defer os.Chmod(blocked, 0o755) //nolint:errcheck

	var found []string
	err := enumerate.Walk(root, func(p string) error {
		found = append(found, p)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(root, "visible.txt")}, found)
}

func TestWalkMissingPath(t *testing.T) {
	err := enumerate.Walk(filepath.Join(t.TempDir(), "missing"), func(string) error {
		return nil
	})
	require.Error(t, err)
}
