// Package app wires the thin CLI front-end onto the backup engine: it
// builds a backupengine.Config from parsed flags, attaches a progress
// printer, runs the backup, and prints the end-of-run summary.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/snapvault/snapvault/internal/backupengine"
	"github.com/snapvault/snapvault/internal/config"
	"github.com/snapvault/snapvault/internal/logging"
)

// Run executes one backup invocation and returns the run summary.
// summary.Success is the overall pass/fail outcome; Run additionally prints
// progress/results to out.
func Run(ctx context.Context, flags *config.Flags, out io.Writer) backupengine.Summary {
	noteColor := color.New(color.FgHiCyan)
	warnColor := color.New(color.FgYellow)
	errColor := color.New(color.FgHiRed)

	level := "info"
	if flags.Verbose {
		level = "debug"
	}

	if zl, err := logging.NewZap(level); err == nil {
		logging.SetDefault(zl)
	}

	cfg := backupengine.Config{
		SourceDir:         flags.Source,
		BackupRoot:        flags.Backup,
		CatalogueLocation: config.CatalogueLocation(flags.Backup),
		Verbose:           flags.Verbose,
		DryRun:            flags.DryRun,
		Workers:           flags.Workers,
		Reporter:          reporterFor(flags.Verbose, out, noteColor),
	}

	summary := backupengine.RunBackup(ctx, cfg)

	if summary.Success {
		noteColor.Fprintf(out, "backup complete: %d added, %d modified, %d deleted, %d unchanged\n", //nolint:errcheck
			summary.Added, summary.Modified, summary.Deleted, summary.Unchanged)
	} else {
		errColor.Fprintln(out, "backup failed; see log output above") //nolint:errcheck
	}

	if flags.DryRun {
		warnColor.Fprintln(out, "dry run: no files, snapshots, or catalogue rows were written") //nolint:errcheck
	}

	return summary
}

func reporterFor(verbose bool, out io.Writer, note *color.Color) backupengine.Reporter {
	if !verbose {
		return nil
	}

	return func(stage string, processed, total int, file string) {
		switch stage {
		case backupengine.StageCollecting:
			note.Fprintf(out, "[%d] %s\n", processed, file) //nolint:errcheck
		case backupengine.StageDeleted:
			note.Fprintf(out, "[deleted] %s\n", file) //nolint:errcheck
		default:
			fmt.Fprintf(out, "%s %s\n", stage, file) //nolint:errcheck
		}
	}
}
