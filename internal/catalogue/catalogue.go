// Package catalogue implements the State Repository (spec §2 C5, §4.5): the
// persistent, per-path record of content hash, status, and last-update
// timestamp that successive backup runs use to classify files.
//
// The contract is abstracted behind the Repository interface so any
// transactional key-value/SQL store providing serializable single-row
// transactions can back it (spec §1); sqlite.go supplies the default,
// modernc.org/sqlite-backed implementation named in spec §6.
package catalogue

// Entry is one row of the catalogue (spec §3): path is the primary key,
// hash is hex text, lastUpdated is the canonical timestamp layout, status
// is the textual form of Status.
type Entry struct {
	Path        string
	Hash        string
	Status      Status
	LastUpdated string
}

// Repository is the State Repository contract of spec §4.5. Every method
// may be called concurrently by different workers, each of which owns a
// dedicated connection (spec §4.5, §5); implementations must make a single
// path's operations linearizable without requiring callers to take any
// external lock.
type Repository interface {
	// InitializeSchema creates the catalogue if absent. Idempotent.
	InitializeSchema() error

	// Upsert atomically inserts or replaces the row for path.
	Upsert(path, hash string, status Status, lastUpdated string) error

	// Get returns the current entry for path, or ok=false if there is none.
	Get(path string) (entry Entry, ok bool, err error)

	// ListAll returns a snapshot of every entry in the catalogue. The
	// snapshot must not be invalidated by concurrent Upserts from other
	// workers for the duration of the caller's sweep (spec §4.5).
	ListAll() ([]Entry, error)

	// MarkDeleted sets status=Deleted and lastUpdated=timestamp for path,
	// preserving hash.
	MarkDeleted(path, timestamp string) error

	// Close releases the connection this repository is bound to.
	Close() error
}

// WorkerRepository is a Repository bound to one worker's dedicated
// connection, handed out by a ConnectionPool keyed by worker identity (spec
// §4.5, §9 "per-worker store connections"). It embeds Repository so callers
// that don't care about connection affinity can use either interchangeably.
type WorkerRepository interface {
	Repository
}

// ConnectionPool hands out a dedicated Repository connection per worker
// identity, created on first use and owned exclusively by that worker until
// the pool is closed.
type ConnectionPool interface {
	// ForWorker returns the Repository bound to workerID's dedicated
	// connection, opening one if this is the first request for workerID.
	ForWorker(workerID string) (WorkerRepository, error)

	// InitializeSchema creates the catalogue schema once, ahead of any
	// per-worker connection being opened.
	InitializeSchema() error

	// ListAll returns a snapshot of every catalogue entry, read through a
	// short-lived connection that is not bound to any worker (used for the
	// run summary once processing and the sweep have finished).
	ListAll() ([]Entry, error)

	// Close closes every connection this pool has handed out via
	// ForWorker.
	Close() error
}
