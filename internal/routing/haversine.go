package routing

import (
	"context"
	"math"

	"service-sla-guard/internal/domain"
)

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between a and b.
func HaversineMeters(a, b domain.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Haversine is a Distancer that never leaves the process.
type Haversine struct{}

// Distances returns straight-line distances from every origin to dest.
func (Haversine) Distances(_ context.Context, origins []domain.Location, dest domain.Location) ([]float64, error) {
	out := make([]float64, len(origins))
	for i, o := range origins {
		out[i] = HaversineMeters(o, dest)
	}
	return out, nil
}

// DistanceBetween returns the straight-line distance between a and b.
func (Haversine) DistanceBetween(_ context.Context, a, b domain.Location) (float64, error) {
	return HaversineMeters(a, b), nil
}
