package am

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/teranos/hireflow/notify"
	"github.com/teranos/hireflow/workflow"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "hireflow.db")

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})

	v.SetDefault("auth.issuer", "hireflow")

	v.SetDefault("pulse.ticker_interval_seconds", 60)
	v.SetDefault("pulse.item_timeout_seconds", 10)
	v.SetDefault("pulse.batch_size", 200)
	v.SetDefault("pulse.max_transitions_per_second", 50.0)
	v.SetDefault("pulse.lease_ttl_seconds", 30)

	v.SetDefault("bulk.max_items", workflow.DefaultBulkMaxItems)
	v.SetDefault("bulk.concurrency", workflow.DefaultBulkConcurrency)

	v.SetDefault("notify.exchange", notify.DefaultExchange)

	v.SetDefault("redis.db", 0)

	v.SetDefault("telemetry.service_name", "hireflow")
	v.SetDefault("telemetry.metric_interval_seconds", 60)
}

// BindSensitiveEnvVars binds secrets to explicit environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("auth.jwt_secret", "HIREFLOW_AUTH_JWT_SECRET")
	v.BindEnv("database.dsn", "HIREFLOW_DATABASE_DSN")
	v.BindEnv("database.path", "HIREFLOW_DATABASE_PATH")
	v.BindEnv("notify.amqp_url", "HIREFLOW_NOTIFY_AMQP_URL")
	v.BindEnv("redis.password", "HIREFLOW_REDIS_PASSWORD")
}

// GetDatabasePath returns the sqlite path, falling back to the default
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "hireflow.db"
	}
	return c.Database.Path
}

// GetServerPort returns the API port, falling back to DefaultServerPort
func (c *Config) GetServerPort() int {
	if c.Server.Port == 0 {
		return DefaultServerPort
	}
	return c.Server.Port
}

// String returns a short description without secrets
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s %s, Server: {Port: %d}, Pulse: {Interval: %ds}}",
		c.Database.Driver, c.GetDatabasePath(), c.GetServerPort(), c.Pulse.TickerIntervalSeconds)
}
