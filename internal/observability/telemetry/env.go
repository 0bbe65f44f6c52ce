package telemetry

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvTelemetryEnabled toggles exporting telemetry events to the logger.
	// Prometheus collectors are always fed.
	EnvTelemetryEnabled = "ASSISTANT_TELEMETRY_ENABLED"
	// EnvTelemetryQueueCapacity sets in-memory queue capacity.
	EnvTelemetryQueueCapacity = "ASSISTANT_TELEMETRY_QUEUE_CAPACITY"
	// EnvTelemetryLogSampleRate sets the debug-log sample rate.
	EnvTelemetryLogSampleRate = "ASSISTANT_TELEMETRY_LOG_SAMPLE_RATE"
	// EnvTelemetryExportTimeoutMS sets export timeout in milliseconds.
	EnvTelemetryExportTimeoutMS = "ASSISTANT_TELEMETRY_EXPORT_TIMEOUT_MS"
)

// RuntimeConfig captures env-configured telemetry settings.
type RuntimeConfig struct {
	Enabled         bool
	QueueCapacity   int
	LogSampleRate   int
	ExportTimeoutMS int
}

// RuntimeConfigFromEnv parses telemetry config from environment.
func RuntimeConfigFromEnv() (RuntimeConfig, error) {
	cfg := RuntimeConfig{
		Enabled:         true,
		QueueCapacity:   256,
		LogSampleRate:   1,
		ExportTimeoutMS: 200,
	}

	if raw := strings.TrimSpace(os.Getenv(EnvTelemetryEnabled)); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return RuntimeConfig{}, fmt.Errorf("%s parse error: %w", EnvTelemetryEnabled, err)
		}
		cfg.Enabled = enabled
	}
	for _, field := range []struct {
		name string
		dst  *int
	}{
		{name: EnvTelemetryQueueCapacity, dst: &cfg.QueueCapacity},
		{name: EnvTelemetryLogSampleRate, dst: &cfg.LogSampleRate},
		{name: EnvTelemetryExportTimeoutMS, dst: &cfg.ExportTimeoutMS},
	} {
		raw := strings.TrimSpace(os.Getenv(field.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return RuntimeConfig{}, fmt.Errorf("%s must be integer >=1", field.name)
		}
		*field.dst = v
	}
	return cfg, nil
}

// Config converts the env settings into pipeline settings.
func (c RuntimeConfig) Config() Config {
	return Config{
		QueueCapacity: c.QueueCapacity,
		LogSampleRate: c.LogSampleRate,
		ExportTimeout: time.Duration(c.ExportTimeoutMS) * time.Millisecond,
	}
}
