package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-sla-guard/internal/metrics"
)

type metricsOut struct {
	dig.Out

	RateLimitExceededTotal prometheus.Counter `name:"rate_limit_exceeded_total"`
	RoutingRetriesTotal    prometheus.Counter `name:"routing_retries_total"`
	SLA                    *metrics.SLA
	HTTP                   *metrics.HTTP
}

func provideMetrics(reg prometheus.Registerer) (metricsOut, error) {
	rl, err := registerCounter(reg, "rate_limit_exceeded_total", metrics.NewRateLimitExceededTotal())
	if err != nil {
		return metricsOut{}, err
	}
	rr, err := registerCounter(reg, "routing_retries_total", metrics.NewRoutingRetriesTotal())
	if err != nil {
		return metricsOut{}, err
	}
	sla := metrics.NewSLA()
	if err := sla.Register(reg); err != nil {
		return metricsOut{}, fmt.Errorf("register sla collectors: %w", err)
	}
	httpm := metrics.NewHTTP()
	if err := httpm.Register(reg); err != nil {
		return metricsOut{}, fmt.Errorf("register http collectors: %w", err)
	}
	return metricsOut{RateLimitExceededTotal: rl, RoutingRetriesTotal: rr, SLA: sla, HTTP: httpm}, nil
}

// registerCounter registers c, or returns the counter already registered under the same name.
func registerCounter(reg prometheus.Registerer, name string, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return c, nil
}
