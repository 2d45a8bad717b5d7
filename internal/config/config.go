// Package config loads service settings in order: .env (if present),
// environment, command line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"service-sla-guard/internal/domain"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config stores service settings.
type Config struct {
	Port     int
	LogLevel string
	Store    string

	DB       DB
	Monitor  Monitor
	Reassign Reassign
	Weights  Weights
	Routing  Routing
	Kafka    Kafka
	Notify   Notify
	Trigger  RateLimit
	Pprof    Pprof

	ProfilesFile string
	Profiles     map[domain.ServiceClass]domain.SLAProfile
}

// DB stores PostgreSQL connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN returns the connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Monitor stores cycle scheduling settings.
type Monitor struct {
	PollingInterval     time.Duration
	CycleTimeout        time.Duration
	RecheckInterval     time.Duration
	ReassignCooldown    time.Duration
	BatchSize           int
	Workers             int
	CandidateLimit      int
	ReplacementAttempts int
}

// Reassign stores executor and driver eligibility settings.
type Reassign struct {
	MaxOrdersPerDriver       int
	MaxConsecutiveDeliveries int
	OperationTimeout         time.Duration
}

// Weights stores driver scoring weights.
type Weights struct {
	Distance    float64
	Performance float64
	Load        float64
	TargetGap   float64
}

// Routing stores distance provider settings. An empty OSRMURL means
// straight-line distances only.
type Routing struct {
	OSRMURL     string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Kafka stores broker and topic settings. Empty brokers disable Kafka.
type Kafka struct {
	Brokers            []string
	GroupID            string
	OrdersTopic        string
	NotificationsTopic string
	AuditTopic         string
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Notify stores the async notification dispatcher settings.
type Notify struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// RateLimit stores per-client limits for manual operations.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Pprof stores the debug server settings. An empty Addr disables it.
type Pprof struct {
	Addr string
	User string
	Pass string
}

// Load reads configuration in order: .env (if present), environment, flags.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	fs := pflag.CommandLine
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "order store driver: postgres or memory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.DurationVar(&cfg.Monitor.PollingInterval, "polling-interval", cfg.Monitor.PollingInterval, "monitor cycle interval")
	fs.StringVar(&cfg.ProfilesFile, "sla-profiles", cfg.ProfilesFile, "YAML file with service class SLA profiles")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	profiles, err := LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		return nil, err
	}
	cfg.Profiles = profiles

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config filled with defaults.
func Default() *Config {
	return &Config{
		Port:     DefaultPort(),
		LogLevel: "info",
		Store:    StorePostgres,
		DB:       DefaultDB(),
		Monitor:  DefaultMonitor(),
		Reassign: DefaultReassign(),
		Weights:  DefaultWeights(),
		Routing:  DefaultRouting(),
		Kafka:    DefaultKafka(),
		Notify:   DefaultNotify(),
		Trigger:  DefaultTrigger(),
	}
}

func (c *Config) applyEnv() error {
	var errs []error
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Store, "STORE_DRIVER")
	setString(&c.ProfilesFile, "SLA_PROFILES_FILE")
	errs = append(errs, setInt(&c.Port, "PORT"))

	setString(&c.DB.Host, "POSTGRES_HOST")
	setString(&c.DB.User, "POSTGRES_USER")
	setString(&c.DB.Pass, "POSTGRES_PASSWORD")
	setString(&c.DB.Name, "POSTGRES_DB")
	if v := strings.TrimSpace(os.Getenv("POSTGRES_PORT")); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			errs = append(errs, fmt.Errorf("invalid POSTGRES_PORT %q: %w", v, err))
		}
		c.DB.Port = v
	}

	errs = append(errs,
		setDuration(&c.Monitor.PollingInterval, "SLA_POLLING_INTERVAL"),
		setDuration(&c.Monitor.CycleTimeout, "SLA_CYCLE_TIMEOUT"),
		setDuration(&c.Monitor.RecheckInterval, "SLA_RECHECK_INTERVAL"),
		setDuration(&c.Monitor.ReassignCooldown, "SLA_REASSIGN_COOLDOWN"),
		setInt(&c.Monitor.BatchSize, "SLA_BATCH_SIZE"),
		setInt(&c.Monitor.Workers, "SLA_WORKERS"),
		setInt(&c.Monitor.CandidateLimit, "SLA_CANDIDATE_LIMIT"),
		setInt(&c.Monitor.ReplacementAttempts, "SLA_REPLACEMENT_ATTEMPTS"),

		setInt(&c.Reassign.MaxOrdersPerDriver, "SLA_MAX_ORDERS_PER_DRIVER"),
		setInt(&c.Reassign.MaxConsecutiveDeliveries, "SLA_MAX_CONSECUTIVE_DELIVERIES"),
		setDuration(&c.Reassign.OperationTimeout, "SLA_OPERATION_TIMEOUT"),

		setFloat(&c.Weights.Distance, "SLA_WEIGHT_DISTANCE"),
		setFloat(&c.Weights.Performance, "SLA_WEIGHT_PERFORMANCE"),
		setFloat(&c.Weights.Load, "SLA_WEIGHT_LOAD"),
		setFloat(&c.Weights.TargetGap, "SLA_WEIGHT_TARGET_GAP"),

		setDuration(&c.Routing.Timeout, "OSRM_TIMEOUT"),

		setInt(&c.Notify.QueueSize, "NOTIFY_QUEUE_SIZE"),
		setInt(&c.Notify.Workers, "NOTIFY_WORKERS"),
		setDuration(&c.Notify.SendTimeout, "NOTIFY_SEND_TIMEOUT"),

		setFloat(&c.Trigger.RPS, "SLA_MANUAL_TRIGGER_RPS"),
		setInt(&c.Trigger.Burst, "SLA_MANUAL_TRIGGER_BURST"),
	)
	setString(&c.Routing.OSRMURL, "OSRM_URL")

	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	setString(&c.Kafka.GroupID, "KAFKA_GROUP_ID")
	setString(&c.Kafka.OrdersTopic, "KAFKA_ORDERS_TOPIC")
	setString(&c.Kafka.NotificationsTopic, "KAFKA_NOTIFICATIONS_TOPIC")
	setString(&c.Kafka.AuditTopic, "KAFKA_AUDIT_TOPIC")

	setString(&c.Pprof.Addr, "PPROF_ADDR")
	setString(&c.Pprof.User, "PPROF_USER")
	setString(&c.Pprof.Pass, "PPROF_PASSWORD")

	return errors.Join(errs...)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid store driver %q", c.Store))
	}
	if c.Monitor.PollingInterval <= 0 {
		errs = append(errs, fmt.Errorf("invalid polling interval: %s", c.Monitor.PollingInterval))
	}
	if c.Monitor.CycleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid cycle timeout: %s", c.Monitor.CycleTimeout))
	}
	if c.Monitor.RecheckInterval < 0 {
		errs = append(errs, fmt.Errorf("invalid recheck interval: %s", c.Monitor.RecheckInterval))
	}
	if c.Monitor.ReassignCooldown < 0 {
		errs = append(errs, fmt.Errorf("invalid reassign cooldown: %s", c.Monitor.ReassignCooldown))
	}
	if c.Monitor.ReplacementAttempts <= 0 {
		errs = append(errs, fmt.Errorf("invalid replacement attempts: %d", c.Monitor.ReplacementAttempts))
	}
	if c.Monitor.BatchSize <= 0 || c.Monitor.Workers <= 0 {
		errs = append(errs, fmt.Errorf("batch size and workers must be positive"))
	}
	if c.Reassign.MaxOrdersPerDriver <= 0 {
		errs = append(errs, fmt.Errorf("invalid max orders per driver: %d", c.Reassign.MaxOrdersPerDriver))
	}
	if c.Reassign.MaxConsecutiveDeliveries < 0 {
		errs = append(errs, fmt.Errorf("invalid max consecutive deliveries: %d", c.Reassign.MaxConsecutiveDeliveries))
	}
	w := c.Weights
	if w.Distance < 0 || w.Performance < 0 || w.Load < 0 || w.TargetGap < 0 ||
		w.Distance+w.Performance+w.Load+w.TargetGap <= 0 {
		errs = append(errs, fmt.Errorf("invalid scoring weights: %+v", w))
	}
	// zero rate disables the limit
	if c.Trigger.RPS < 0 || (c.Trigger.RPS > 0 && c.Trigger.Burst <= 0) {
		errs = append(errs, fmt.Errorf("invalid manual trigger rate: %v/%d", c.Trigger.RPS, c.Trigger.Burst))
	}
	if c.Routing.OSRMURL != "" {
		if u, err := url.Parse(c.Routing.OSRMURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid OSRM_URL %q", c.Routing.OSRMURL))
		}
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
