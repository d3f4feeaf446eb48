// File: cmd/seed/main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/cmd"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/observability"
)

// main is the entry point of the application.
func main() {
	// Listen for interrupt signals (SIGINT, SIGTERM) for graceful shutdown; a
	// cancellation mid-cycle abandons the mutation, never half-applies it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer observability.Sync()

	cmd.Execute(ctx)
}
