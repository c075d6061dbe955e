package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wellnesscoach/site-accounts/internal/app"
	"wellnesscoach/site-accounts/internal/config"
	"wellnesscoach/site-accounts/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	logger := observability.NewLogger(observability.Options{
		ServiceName: "waitforstorage",
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.WaitForStorage(ctx, cfg.Storage, cfg.Storage.WaitTimeout(), 2*time.Second, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%s storage ready\n", cfg.Storage.Backend)
}
