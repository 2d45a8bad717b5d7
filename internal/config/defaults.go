package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "test_db",
}

var defaultMonitor = Monitor{
	PollingInterval:     10 * time.Second,
	CycleTimeout:        8 * time.Second,
	RecheckInterval:     2 * time.Minute,
	ReassignCooldown:    0,
	BatchSize:           500,
	Workers:             8,
	CandidateLimit:      50,
	ReplacementAttempts: 3,
}

var defaultReassign = Reassign{
	MaxOrdersPerDriver:       3,
	MaxConsecutiveDeliveries: 0,
	OperationTimeout:         3 * time.Second,
}

var defaultWeights = Weights{
	Distance:    0.4,
	Performance: 0.3,
	Load:        0.2,
	TargetGap:   0.1,
}

var defaultRouting = Routing{
	Timeout:     2 * time.Second,
	MaxAttempts: 4,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    200 * time.Millisecond,
}

var defaultKafka = Kafka{
	GroupID:            "sla-guard",
	OrdersTopic:        "orders",
	NotificationsTopic: "sla.notifications",
	AuditTopic:         "sla.reassignments",
}

var defaultNotify = Notify{
	QueueSize:   1024,
	Workers:     4,
	SendTimeout: 5 * time.Second,
}

var defaultTrigger = RateLimit{
	RPS:   1,
	Burst: 2,
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultMonitor returns the default cycle settings.
func DefaultMonitor() Monitor {
	return defaultMonitor
}

// DefaultReassign returns the default executor settings.
func DefaultReassign() Reassign {
	return defaultReassign
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return defaultWeights
}

// DefaultRouting returns the default routing settings.
func DefaultRouting() Routing {
	return defaultRouting
}

// DefaultKafka returns the default topics. Brokers are empty, so Kafka is
// off until KAFKA_BROKERS is set.
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultNotify returns the default dispatcher settings.
func DefaultNotify() Notify {
	return defaultNotify
}

// DefaultTrigger returns the default manual operation rate.
func DefaultTrigger() RateLimit {
	return defaultTrigger
}
