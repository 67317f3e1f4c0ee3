// Package digest computes the content fingerprint used by the backup
// engine to decide whether a file has changed (spec §4.1): a 64-bit xxHash
// with seed 0, rendered as lower-case hex with no zero-padding.
package digest

import (
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// chunkSize is the read granularity, above the minimum of spec §4.1
// ("chunks of >=8 KiB"). bufio-free: xxhash.Digest.Write accepts arbitrarily
// large slices, so a single reusable buffer this size is all io.CopyBuffer
// needs.
const chunkSize = 64 * 1024

// Func computes the hex digest of path, or returns an error if the file
// cannot be opened or read. Errors here are non-fatal to a run (§4.1,
// §7.2): callers mark the current file failed and continue.
type Func func(path string) (string, error)

// XXHash64 is the default Func: a 64-bit xxHash with seed 0.
func XXHash64(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %v for hashing", path)
	}
	defer f.Close() //nolint:errcheck

	h := xxhash.New()

	// *os.File implements io.WriterTo, which would make io.CopyBuffer
	// ignore buf; wrapping it as a plain io.Reader keeps reads at chunkSize.
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{f}, buf); err != nil {
		return "", errors.Wrapf(err, "read %v while hashing", path)
	}

	return strconv.FormatUint(h.Sum64(), 16), nil
}
