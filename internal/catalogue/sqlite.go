package catalogue

import (
	"database/sql"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const (
	driverName = "sqlite"

	schemaDDL = `CREATE TABLE IF NOT EXISTS files (
		path         TEXT PRIMARY KEY,
		hash         TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		status       TEXT NOT NULL
	)`

	upsertSQL = `INSERT INTO files (path, hash, last_updated, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			hash=excluded.hash,
			last_updated=excluded.last_updated,
			status=excluded.status`

	getSQL = `SELECT hash, last_updated, status FROM files WHERE path = ?`

	listAllSQL = `SELECT path, hash, last_updated, status FROM files`

	markDeletedSQL = `UPDATE files SET status = ?, last_updated = ? WHERE path = ?`
)

// sqlitePool is the default ConnectionPool (spec §6: "SQLite by default"),
// backed by the pure-Go, cgo-free modernc.org/sqlite driver. Each worker
// identity is mapped to its own *sql.DB with SetMaxOpenConns(1), so it
// behaves as a single dedicated connection rather than a shared pool (spec
// §4.5, §9). The store is configured for busy-wait retry on lock contention
// and write-ahead logging, per spec §4.5.
type sqlitePool struct {
	location string

	// schemaLock is an advisory cross-process file lock guarding
	// InitializeSchema, so two concurrent runBackup invocations against the
	// same catalogueLocation don't race on CREATE TABLE IF NOT EXISTS.
	schemaLock *flock.Flock

	mu    sync.Mutex
	conns map[string]*sqliteRepository
}

// NewSQLitePool returns a ConnectionPool backed by the SQLite file at
// location. No connection is opened here; the file is created if necessary
// on first use.
func NewSQLitePool(location string) ConnectionPool {
	return &sqlitePool{
		location:   location,
		schemaLock: flock.New(location + ".lock"),
		conns:      make(map[string]*sqliteRepository),
	}
}

func (p *sqlitePool) InitializeSchema() error {
	if err := p.schemaLock.Lock(); err != nil {
		return errors.Wrap(err, "acquire catalogue schema lock")
	}
	defer p.schemaLock.Unlock() //nolint:errcheck

	db, err := openConn(p.location)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if _, err := db.Exec(schemaDDL); err != nil {
		return errors.Wrap(err, "create catalogue schema")
	}

	return nil
}

func (p *sqlitePool) ForWorker(workerID string) (WorkerRepository, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.conns[workerID]; ok {
		return r, nil
	}

	db, err := openConn(p.location)
	if err != nil {
		return nil, err
	}

	r := &sqliteRepository{db: db}
	p.conns[workerID] = r

	return r, nil
}

func (p *sqlitePool) ListAll() ([]Entry, error) {
	db, err := openConn(p.location)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	return listAll(db)
}

func (p *sqlitePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error

	for _, r := range p.conns {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.conns = make(map[string]*sqliteRepository)

	return firstErr
}

// openConn opens a fresh, single-connection *sql.DB against location, with
// busy-wait retry and WAL enabled (spec §4.5).
func openConn(location string) (*sql.DB, error) {
	db, err := sql.Open(driverName, location)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalogue %v", location)
	}

	// Model "a dedicated connection" rather than database/sql's own pool:
	// every worker's *sql.DB talks to exactly one underlying connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close() //nolint:errcheck
		return nil, errors.Wrap(err, "set busy_timeout")
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close() //nolint:errcheck
		return nil, errors.Wrap(err, "set journal_mode")
	}

	return db, nil
}

func listAll(db *sql.DB) ([]Entry, error) {
	rows, err := db.Query(listAllSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list catalogue entries")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry

	for rows.Next() {
		var (
			e      Entry
			status string
		)

		if err := rows.Scan(&e.Path, &e.Hash, &e.LastUpdated, &status); err != nil {
			return nil, errors.Wrap(err, "scan catalogue row")
		}

		e.Status = ParseStatus(status)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate catalogue rows")
	}

	return entries, nil
}

// sqliteRepository is a Repository bound to a single *sql.DB, used as a
// worker's dedicated connection. The pool's own InitializeSchema/ListAll
// open a separate short-lived *sql.DB instead.
type sqliteRepository struct {
	db *sql.DB
}

func (r *sqliteRepository) InitializeSchema() error {
	_, err := r.db.Exec(schemaDDL)
	return errors.Wrap(err, "create catalogue schema")
}

func (r *sqliteRepository) Upsert(path, hash string, status Status, lastUpdated string) error {
	_, err := r.db.Exec(upsertSQL, path, hash, lastUpdated, status.String())
	return errors.Wrapf(err, "upsert catalogue entry %v", path)
}

func (r *sqliteRepository) Get(path string) (Entry, bool, error) {
	var (
		e      Entry
		status string
	)
	e.Path = path

	err := r.db.QueryRow(getSQL, path).Scan(&e.Hash, &e.LastUpdated, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrapf(err, "get catalogue entry %v", path)
	}

	e.Status = ParseStatus(status)

	return e, true, nil
}

func (r *sqliteRepository) ListAll() ([]Entry, error) {
	return listAll(r.db)
}

func (r *sqliteRepository) MarkDeleted(path, ts string) error {
	res, err := r.db.Exec(markDeletedSQL, Deleted.String(), ts, path)
	if err != nil {
		return errors.Wrapf(err, "mark catalogue entry deleted %v", path)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "mark catalogue entry deleted %v", path)
	}

	if n == 0 {
		return errors.Errorf("mark catalogue entry deleted %v: no such entry", path)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	return errors.Wrap(r.db.Close(), "close catalogue connection")
}
