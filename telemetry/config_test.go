package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "otlp", cfg.Exporter.Type)
	assert.Equal(t, "yogan", cfg.Metrics.Namespace)
	assert.True(t, cfg.Metrics.Limiter.Enabled)
	assert.NoError(t, cfg.Validate())

	cfg.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"service name", func(c *Config) { c.ServiceName = "" }, "service_name"},
		{"exporter type", func(c *Config) { c.Exporter.Type = "jaeger" }, "unsupported exporter type"},
		{"otlp endpoint", func(c *Config) { c.Exporter.Endpoint = "" }, "endpoint is required"},
		{"sampler type", func(c *Config) { c.Sampler.Type = "sometimes" }, "unsupported sampler type"},
		{"sampler ratio", func(c *Config) {
			c.Sampler.Type = "trace_id_ratio"
			c.Sampler.Ratio = 1.5
		}, "between 0 and 1"},
		{"batch queue", func(c *Config) { c.Batch.MaxQueueSize = 0 }, "max_queue_size"},
		{"metrics interval", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ExportInterval = 0
		}, "export_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Enabled = true
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestResourceAttributes(t *testing.T) {
	t.Setenv("RL_TEST_REGION", "eu-west")
	cfg := DefaultConfig()
	cfg.ServiceName = "ratelimit"
	cfg.ResourceAttrs = map[string]interface{}{
		"team":   "edge",
		"region": "${RL_TEST_REGION}",
		"deployment": map[string]interface{}{
			"environment": "test",
			"replicas":    3,
		},
	}

	got := make(map[string]string)
	for _, kv := range resourceAttributes(cfg) {
		got[string(kv.Key)] = kv.Value.Emit()
	}

	assert.Equal(t, "ratelimit", got["service.name"])
	assert.Equal(t, "edge", got["team"])
	assert.Equal(t, "eu-west", got["region"])
	assert.Equal(t, "test", got["deployment.environment"])
	assert.Equal(t, "3", got["deployment.replicas"])
}
