// Package config parses the thin CLI front-end's flags into the values the
// backup engine needs (spec §6 CLI surface). Flag parsing is explicitly out
// of the core's scope (spec §1); this package is the external collaborator
// that owns it.
package config

import (
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
)

// Flags holds the parsed CLI surface described by spec §6:
// -s/--source (required), -b/--backup (required), -v/--verbose,
// plus the SPEC_FULL.md supplements --dry-run and --workers.
type Flags struct {
	Source  string
	Backup  string
	Verbose bool
	DryRun  bool
	Workers int
}

// Register binds Flags onto app, returning the same *Flags Parse will fill
// in once app.Parse(os.Args[1:]) has run.
func Register(app *kingpin.Application) *Flags {
	f := &Flags{}

	app.Flag("source", "Path to the source file or directory to back up.").
		Short('s').Required().StringVar(&f.Source)
	app.Flag("backup", "Path to the backup root (created if missing).").
		Short('b').Required().StringVar(&f.Backup)
	app.Flag("verbose", "Print every file as it is processed.").
		Short('v').BoolVar(&f.Verbose)
	app.Flag("dry-run", "Classify files without writing the mirror, snapshot, or catalogue.").
		BoolVar(&f.DryRun)
	app.Flag("workers", "Override the worker pool size (default: available parallelism).").
		IntVar(&f.Workers)

	return f
}

// CatalogueLocation returns the default catalogue path for a given backup
// root: backupRoot/backup.db (spec §6).
func CatalogueLocation(backupRoot string) string {
	return filepath.Join(backupRoot, "backup.db")
}
