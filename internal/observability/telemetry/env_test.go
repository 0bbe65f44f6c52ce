package telemetry

import (
	"testing"
	"time"
)

func TestRuntimeConfigFromEnvDefaults(t *testing.T) {
	cfg, err := RuntimeConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected default env parse error: %v", err)
	}
	if !cfg.Enabled || cfg.QueueCapacity != 256 || cfg.LogSampleRate != 1 || cfg.ExportTimeoutMS != 200 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
}

func TestRuntimeConfigFromEnvRejectsInvalidValues(t *testing.T) {
	t.Run("invalid_enabled", func(t *testing.T) {
		t.Setenv(EnvTelemetryEnabled, "not-bool")
		if _, err := RuntimeConfigFromEnv(); err == nil {
			t.Fatalf("expected invalid enabled parse error")
		}
	})

	t.Run("invalid_queue_capacity", func(t *testing.T) {
		t.Setenv(EnvTelemetryQueueCapacity, "0")
		if _, err := RuntimeConfigFromEnv(); err == nil {
			t.Fatalf("expected queue capacity validation error")
		}
	})

	t.Run("invalid_sample_rate", func(t *testing.T) {
		t.Setenv(EnvTelemetryLogSampleRate, "-1")
		if _, err := RuntimeConfigFromEnv(); err == nil {
			t.Fatalf("expected sample rate validation error")
		}
	})

	t.Run("invalid_timeout", func(t *testing.T) {
		t.Setenv(EnvTelemetryExportTimeoutMS, "abc")
		if _, err := RuntimeConfigFromEnv(); err == nil {
			t.Fatalf("expected timeout validation error")
		}
	})
}

func TestRuntimeConfigFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvTelemetryEnabled, "false")
	t.Setenv(EnvTelemetryQueueCapacity, "32")
	t.Setenv(EnvTelemetryExportTimeoutMS, "50")
	cfg, err := RuntimeConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enabled {
		t.Fatalf("expected telemetry logging to be disabled")
	}
	pipelineCfg := cfg.Config()
	if pipelineCfg.QueueCapacity != 32 || pipelineCfg.ExportTimeout != 50*time.Millisecond {
		t.Fatalf("unexpected pipeline config: %+v", pipelineCfg)
	}
}
