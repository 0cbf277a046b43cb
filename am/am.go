// Package am loads hireflow's configuration ("I am"): defaults, TOML files in
// system, user and project locations, then HIREFLOW_* environment variables.
package am

import (
	"time"

	"github.com/teranos/hireflow/pulse/schedule"
)

// Config represents the hireflow configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	Server    ServerConfig    `mapstructure:"server" toml:"server" json:"server" yaml:"server"`
	Auth      AuthConfig      `mapstructure:"auth" toml:"auth" json:"auth" yaml:"auth"`
	Pulse     PulseConfig     `mapstructure:"pulse" toml:"pulse" json:"pulse" yaml:"pulse"`
	Bulk      BulkConfig      `mapstructure:"bulk" toml:"bulk" json:"bulk" yaml:"bulk"`
	Notify    NotifyConfig    `mapstructure:"notify" toml:"notify" json:"notify" yaml:"notify"`
	Redis     RedisConfig     `mapstructure:"redis" toml:"redis" json:"redis" yaml:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" toml:"telemetry" json:"telemetry" yaml:"telemetry"`
}

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects the job post store
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" toml:"driver" json:"driver" yaml:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`         // sqlite file
	DSN    string `mapstructure:"dsn" toml:"dsn" json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port           int      `mapstructure:"port" toml:"port" json:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins" json:"allowed_origins" yaml:"allowed_origins"`
}

// DefaultServerPort is the API port when none is configured
const DefaultServerPort = 8730

// AuthConfig configures bearer-token verification
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" toml:"jwt_secret" json:"jwt_secret,omitempty" yaml:"jwt_secret,omitempty"`
	Issuer    string `mapstructure:"issuer" toml:"issuer" json:"issuer,omitempty" yaml:"issuer,omitempty"`
}

// PulseConfig configures the automation scheduler
type PulseConfig struct {
	TickerIntervalSeconds   int     `mapstructure:"ticker_interval_seconds" toml:"ticker_interval_seconds" json:"ticker_interval_seconds" yaml:"ticker_interval_seconds"` // 0 = scheduler disabled
	ItemTimeoutSeconds      int     `mapstructure:"item_timeout_seconds" toml:"item_timeout_seconds" json:"item_timeout_seconds" yaml:"item_timeout_seconds"`
	BatchSize               int     `mapstructure:"batch_size" toml:"batch_size" json:"batch_size" yaml:"batch_size"`                                                                 // 0 = unlimited
	MaxTransitionsPerSecond float64 `mapstructure:"max_transitions_per_second" toml:"max_transitions_per_second" json:"max_transitions_per_second" yaml:"max_transitions_per_second"` // 0 = unlimited
	LeaseTTLSeconds         int     `mapstructure:"lease_ttl_seconds" toml:"lease_ttl_seconds" json:"lease_ttl_seconds" yaml:"lease_ttl_seconds"`
}

// Enabled reports whether the scheduler should run
func (p PulseConfig) Enabled() bool {
	return p.TickerIntervalSeconds > 0
}

// TickerConfig converts to scheduler settings
func (p PulseConfig) TickerConfig() schedule.TickerConfig {
	return schedule.TickerConfig{
		Interval:                time.Duration(p.TickerIntervalSeconds) * time.Second,
		ItemTimeout:             time.Duration(p.ItemTimeoutSeconds) * time.Second,
		BatchSize:               p.BatchSize,
		MaxTransitionsPerSecond: p.MaxTransitionsPerSecond,
		LeaseTTL:                time.Duration(p.LeaseTTLSeconds) * time.Second,
	}
}

// BulkConfig bounds bulk actions
type BulkConfig struct {
	MaxItems    int `mapstructure:"max_items" toml:"max_items" json:"max_items" yaml:"max_items"`
	Concurrency int `mapstructure:"concurrency" toml:"concurrency" json:"concurrency" yaml:"concurrency"`
}

// NotifyConfig configures event delivery. Empty values disable a channel.
type NotifyConfig struct {
	AMQPURL    string `mapstructure:"amqp_url" toml:"amqp_url" json:"amqp_url,omitempty" yaml:"amqp_url,omitempty"`
	Exchange   string `mapstructure:"exchange" toml:"exchange" json:"exchange" yaml:"exchange"`
	WebhookURL string `mapstructure:"webhook_url" toml:"webhook_url" json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
}

// RedisConfig points the scheduler lease at a shared Redis; empty Addr uses a local lease
type RedisConfig struct {
	Addr     string `mapstructure:"addr" toml:"addr" json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `mapstructure:"password" toml:"password" json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" toml:"db" json:"db" yaml:"db"`
}

// TelemetryConfig exports traces and metrics to an OTLP/HTTP collector.
// An empty endpoint leaves the otel no-op providers in place.
type TelemetryConfig struct {
	OTLPEndpoint          string `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty"` // e.g. http://localhost:4318
	ServiceName           string `mapstructure:"service_name" toml:"service_name" json:"service_name" yaml:"service_name"`
	MetricIntervalSeconds int    `mapstructure:"metric_interval_seconds" toml:"metric_interval_seconds" json:"metric_interval_seconds" yaml:"metric_interval_seconds"`
}

// Enabled reports whether an exporter endpoint is configured
func (t TelemetryConfig) Enabled() bool {
	return t.OTLPEndpoint != ""
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)
