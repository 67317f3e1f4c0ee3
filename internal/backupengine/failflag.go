package backupengine

import (
	"context"
	"sync/atomic"

	"github.com/snapvault/snapvault/internal/logging"
)

var log = logging.Module("snapvault/backupengine")

// failFlag is the run-level success flag of spec §3/§5/§7: an atomic
// boolean that only ever writes false, reduced from per-file outcomes by
// logical AND. A fresh failFlag is "successful" until something marks it
// failed.
type failFlag struct {
	failed atomic.Bool
}

// markFailed sets the flag to failed and logs err once, with msg as
// context. Safe for concurrent use by every worker and the sweeper (spec
// §5: "atomic boolean with AND-write-merge semantics").
func (f *failFlag) markFailed(ctx context.Context, err error, msg string) {
	f.failed.Store(true)
	log(ctx).Errorf("%v: %v", msg, err)
}

// ok reports whether the run is still fully successful.
func (f *failFlag) ok() bool {
	return !f.failed.Load()
}
