package am

import (
	"net/url"

	"github.com/teranos/hireflow/errors"
)

// Validate checks that the configuration is usable. Zero means disabled or
// default where a field documents it; negative values are always invalid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required when database.driver is postgres")
		}
	default:
		return errors.Newf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Pulse.TickerIntervalSeconds < 0 {
		return errors.Newf("pulse.ticker_interval_seconds must be >= 0, got %d", c.Pulse.TickerIntervalSeconds)
	}
	if c.Pulse.ItemTimeoutSeconds < 0 {
		return errors.Newf("pulse.item_timeout_seconds must be >= 0, got %d", c.Pulse.ItemTimeoutSeconds)
	}
	if c.Pulse.BatchSize < 0 {
		return errors.Newf("pulse.batch_size must be >= 0, got %d", c.Pulse.BatchSize)
	}
	if c.Pulse.MaxTransitionsPerSecond < 0 {
		return errors.Newf("pulse.max_transitions_per_second must be >= 0, got %f", c.Pulse.MaxTransitionsPerSecond)
	}
	if c.Pulse.LeaseTTLSeconds < 0 {
		return errors.Newf("pulse.lease_ttl_seconds must be >= 0, got %d", c.Pulse.LeaseTTLSeconds)
	}

	if c.Bulk.MaxItems < 0 {
		return errors.Newf("bulk.max_items must be >= 0, got %d", c.Bulk.MaxItems)
	}
	if c.Bulk.Concurrency < 0 {
		return errors.Newf("bulk.concurrency must be >= 0, got %d", c.Bulk.Concurrency)
	}

	if c.Redis.DB < 0 {
		return errors.Newf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Telemetry.Enabled() {
		u, err := url.Parse(c.Telemetry.OTLPEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.Newf("telemetry.otlp_endpoint must be an http(s) URL, got %q", c.Telemetry.OTLPEndpoint)
		}
	}
	if c.Telemetry.MetricIntervalSeconds < 0 {
		return errors.Newf("telemetry.metric_interval_seconds must be >= 0, got %d", c.Telemetry.MetricIntervalSeconds)
	}
	return nil
}
