// Package enumerate walks a source path and yields every regular file
// reachable from it (spec §2 C3, §4.2). It is not safe for concurrent use:
// the run coordinator owns exactly one enumerator per run, running on the
// producer goroutine only (spec §5).
package enumerate

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// OnFile is invoked once per regular file discovered, with its absolute
// path.
type OnFile func(absolutePath string) error

// Walk invokes onFile for every regular file reachable from path.
//
//   - If path names a regular file, onFile is invoked once with that path.
//   - If path names a directory, Walk recurses, invoking onFile only for
//     regular files; non-regular entries (symlinks, sockets, devices) and
//     unreadable subtrees are skipped silently, never turned into a hard
//     failure (spec §4.2). Symlinks to directories are treated as
//     non-regular, so Walk cannot be made to loop by a filesystem cycle.
//
// Order across directories is unspecified.
func Walk(path string, onFile OnFile) error {
	info, err := os.Lstat(path)
	if err != nil {
		return errors.Wrapf(err, "stat %v", path)
	}

	if info.Mode().IsRegular() {
		return onFile(path)
	}

	if !info.IsDir() {
		// Not a regular file and not a directory (symlink, device, socket
		// at the root itself): nothing to enumerate.
		return nil
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtree: skip it, don't fail the whole walk.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		// d.Type() reports the mode bits of the directory entry itself, so
		// a symlink (even one pointing at a regular file) is reported as
		// ModeSymlink here, not as regular - exactly the "non-regular"
		// classification spec §4.2 asks for.
		if d.Type().IsRegular() {
			return onFile(p)
		}

		return nil
	})
}
