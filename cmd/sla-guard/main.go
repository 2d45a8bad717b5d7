// Command sla-guard runs the SLA monitor loop and its HTTP API.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"service-sla-guard/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container := app.MustBuildContainer(ctx)
	app.NewRunner().MustRun(container)
}
