// Command worker consumes order lifecycle events from Kafka and applies
// them to the PostgreSQL order store through the reassignment executor.
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

	container := app.MustBuildWorkerContainer(ctx)
	app.NewWorkerRunner().MustRun(container)
}
