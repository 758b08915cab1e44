// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/FLUSEC-25-26/flusec-cloud/cmd"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/observability"
)

// main is the entry point for the FluSec Cloud ingestion server.
func main() {
	os.Exit(run())
}

func run() int {
	// Flush any buffered log entries on the way out.
	defer observability.Sync()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM)
	// for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		// cmd.Execute handles the logging, we just handle the exit code.
		if errors.Is(err, context.Canceled) {
			return 0
		}
		return 1
	}
	return 0
}
