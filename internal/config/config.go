// Package config provides configuration loading from environment variables.
package config

import (
	"time"
)

// ServiceConfig holds configuration for the rest-server.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	AdminUsers        []string      // Users allowed to manage any job
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
	ExitSpecPath      string        // Exit-spec table source; load failure aborts startup
	DefaultQueue      string        // Virtual cluster used when a job spec names none
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "9186"),
		MetricsPort:       GetEnv("METRICS_PORT", "9187"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		AdminUsers:        GetListEnv("ADMIN_USERS"),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		ExitSpecPath:      GetEnv("EXIT_SPEC_PATH", "config/job-exit-spec.yaml"),
		DefaultQueue:      GetEnv("DEFAULT_QUEUE", "default"),
	}
}
