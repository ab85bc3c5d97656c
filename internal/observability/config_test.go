package observability

import (
	"testing"
	"time"

	"github.com/smallbiznis/paylink/internal/config"
	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:  "production",
		AppVersion:   "1.2.3",
		OTLPEndpoint: " collector:4317 ",
		Telemetry:    config.TelemetryConfig{LogLevel: "info", SamplingRatio: 0.5, TracingEnabled: true, OTLPProtocol: "grpc"},
	})

	assert.Equal(t, "paylink", cfg.ServiceName)
	assert.False(t, cfg.Debug())

	tr := cfg.Tracing()
	assert.Equal(t, "collector:4317", tr.ExporterEndpoint)
	assert.Equal(t, 0.5, tr.SamplingRatio)
	assert.True(t, tr.Enabled)
	assert.Equal(t, "1.2.3", tr.ServiceVersion)

	assert.Equal(t, "collector:4317", cfg.Metrics().ExporterEndpoint)
	assert.False(t, cfg.Logger().IncludeStackOnError)
}

func TestDebugInDevelopment(t *testing.T) {
	assert.True(t, Config{Environment: "local"}.Debug())
	assert.True(t, Config{Environment: "production", Telemetry: config.TelemetryConfig{LogLevel: "DEBUG"}}.Debug())
	assert.True(t, Config{Environment: "test"}.Logger().IncludeStackOnError)
}

func TestSQLLogLevel(t *testing.T) {
	prod := Config{Environment: "production", Telemetry: config.TelemetryConfig{SlowQuery: time.Second}}.SQL()
	assert.Equal(t, gormlogger.Warn, prod.Level)
	assert.Equal(t, time.Second, prod.SlowThreshold)

	local := Config{Environment: "local"}.SQL()
	assert.Equal(t, gormlogger.Info, local.Level)
	assert.Equal(t, 200*time.Millisecond, local.SlowThreshold)
}
