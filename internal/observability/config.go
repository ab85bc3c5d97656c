package observability

import (
	"strings"
	"time"

	"github.com/smallbiznis/paylink/internal/config"
	"github.com/smallbiznis/paylink/internal/observability/logger"
	"github.com/smallbiznis/paylink/internal/observability/metrics"
	"github.com/smallbiznis/paylink/internal/observability/tracing"
	gormlogger "gorm.io/gorm/logger"
)

const defaultServiceName = "paylink"

// Config is the telemetry view of the service configuration. Each of the
// logger, tracer, meter and SQL log reads its settings from here.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Telemetry    config.TelemetryConfig
	OTLPEndpoint string
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = defaultServiceName
	}
	return Config{
		ServiceName:  name,
		Environment:  strings.TrimSpace(cfg.Environment),
		Version:      strings.TrimSpace(cfg.AppVersion),
		Telemetry:    cfg.Telemetry,
		OTLPEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
	}
}

// Debug turns on request/response body logging and stack traces. Local and
// test deployments always get it.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.Telemetry.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) Logger() logger.Config {
	debug := c.Debug()
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.Telemetry.LogLevel,
		Format:              c.Telemetry.LogFormat,
		Debug:               debug,
		IncludeCaller:       true,
		IncludeStackOnError: debug,
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.Telemetry.TracingEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OTLPEndpoint,
		ExporterProtocol: c.Telemetry.OTLPProtocol,
		SamplingRatio:    c.Telemetry.SamplingRatio,
	}
}

func (c Config) Metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.Telemetry.TracingEnabled,
		ExporterEndpoint: c.OTLPEndpoint,
		ExporterProtocol: c.Telemetry.OTLPProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}

// SQL logs failed statements always, slow ones at warn, and every statement
// when debugging.
func (c Config) SQL() logger.GormLoggerConfig {
	level := gormlogger.Warn
	if c.Debug() {
		level = gormlogger.Info
	}
	slow := c.Telemetry.SlowQuery
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return logger.GormLoggerConfig{
		Level:         level,
		SlowThreshold: slow,
	}
}
