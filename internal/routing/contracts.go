// Package routing provides the pluggable distance service used by driver scoring.
package routing

import (
	"context"

	"service-sla-guard/internal/domain"
)

// Distancer computes distances in meters. Implementations may be
// straight-line or road-network based.
type Distancer interface {
	// Distances returns one distance per origin, in the same order.
	Distances(ctx context.Context, origins []domain.Location, dest domain.Location) ([]float64, error)
	DistanceBetween(ctx context.Context, a, b domain.Location) (float64, error)
}

type counter interface {
	Inc()
}
