package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapvault/snapvault/internal/app"
	"github.com/snapvault/snapvault/internal/config"
)

func TestRunReportsSuccessAndSummary(t *testing.T) {
	source := t.TempDir()
	backup := filepath.Join(t.TempDir(), "backup-root")

	require.NoError(t, os.WriteFile(filepath.Join(source, "a.txt"), []byte("hi"), 0o644))

	flags := &config.Flags{Source: source, Backup: backup, Verbose: true}

	var out bytes.Buffer
	summary := app.Run(context.Background(), flags, &out)

	require.True(t, summary.Success)
	require.Equal(t, 1, summary.Added)
	require.Contains(t, out.String(), "backup complete")
}

func TestRunDryRunPrintsNotice(t *testing.T) {
	source := t.TempDir()
	backup := filepath.Join(t.TempDir(), "backup-root")

	require.NoError(t, os.WriteFile(filepath.Join(source, "a.txt"), []byte("hi"), 0o644))

	flags := &config.Flags{Source: source, Backup: backup, DryRun: true}

	var out bytes.Buffer
	summary := app.Run(context.Background(), flags, &out)

	require.True(t, summary.Success)
	require.Contains(t, out.String(), "dry run")
}

func TestRunReportsFailureOnBadSource(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "backup-root")
	flags := &config.Flags{Source: filepath.Join(t.TempDir(), "missing"), Backup: backup}

	var out bytes.Buffer
	summary := app.Run(context.Background(), flags, &out)

	require.False(t, summary.Success)
	require.Contains(t, out.String(), "backup failed")
}
