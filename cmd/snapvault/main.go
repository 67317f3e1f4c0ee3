// Command snapvault is the CLI front-end for the incremental backup engine
// (spec §6). It parses flags, runs one backup, and exits 0 on success or 1
// on any setup or run failure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kingpin/v2"
	colorable "github.com/mattn/go-colorable"

	"github.com/snapvault/snapvault/internal/app"
	"github.com/snapvault/snapvault/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	kp := kingpin.New("snapvault", "Incremental, snapshot-based file backup.")
	flags := config.Register(kp)

	if _, err := kp.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "snapvault: %v\n", err) //nolint:errcheck
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	out := colorable.NewColorableStdout()

	summary := app.Run(ctx, flags, out)
	if !summary.Success {
		return 1
	}

	return 0
}
