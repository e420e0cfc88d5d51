// Command orbs downloads the ORBS radiological monitoring tables and converts
// them into nested JSON station documents and flat CSV files.
//
// Usage:
//
//	orbs run      -d downloaded_CSVs -j stations/transformed/json -c stations/transformed/csv
//	orbs download -d downloaded_CSVs
//	orbs process  -d downloaded_CSVs -j stations/transformed/json
//	orbs flatten  -j stations/transformed/json -c stations/transformed/csv [Seawater Fish Seaweed]
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
