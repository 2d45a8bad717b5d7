package app

import (
	"os"

	"service-sla-guard/internal/config"
	"service-sla-guard/internal/logx"
)

// NewLogger returns the JSON logger at the configured level.
func NewLogger(cfg *config.Config) logx.Logger {
	return logx.NewJSON(os.Stdout, cfg.LogLevel).With(logx.String("service", "sla-guard"))
}
