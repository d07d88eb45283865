package telemetry

import (
	"fmt"
	"io"
	"time"
)

// Config OpenTelemetry settings
type Config struct {
	Enabled        bool                   `mapstructure:"enabled"`
	ServiceName    string                 `mapstructure:"service_name"`
	ServiceVersion string                 `mapstructure:"service_version"`
	Exporter       ExporterConfig         `mapstructure:"exporter"`
	Sampler        SamplerConfig          `mapstructure:"sampler"`
	ResourceAttrs  map[string]interface{} `mapstructure:"resource_attributes"` // nested maps are flattened with "."
	Batch          BatchConfig            `mapstructure:"batch"`
	Metrics        MetricsConfig          `mapstructure:"metrics"`
}

// ExporterConfig where spans and metrics go
type ExporterConfig struct {
	Type     string            `mapstructure:"type"` // otlp or stdout
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Headers  map[string]string `mapstructure:"headers"`

	// Writer stdout exporter destination (default os.Stdout)
	Writer io.Writer `mapstructure:"-"`
}

// SamplerConfig trace sampling
type SamplerConfig struct {
	Type  string  `mapstructure:"type"`  // always_on, always_off, trace_id_ratio, parent_based_always_on
	Ratio float64 `mapstructure:"ratio"` // trace_id_ratio only
}

// BatchConfig span batching; disabled means synchronous export
type BatchConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	MaxQueueSize       int           `mapstructure:"max_queue_size"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size"`
	ScheduleDelay      time.Duration `mapstructure:"schedule_delay"`
	ExportTimeout      time.Duration `mapstructure:"export_timeout"`
}

// MetricsConfig meter provider and the instrument groups it feeds
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
	ExportTimeout  time.Duration `mapstructure:"export_timeout"`
	Namespace      string        `mapstructure:"namespace"`

	HTTP    HTTPMetricsConfig `mapstructure:"http"`
	Limiter ToggleConfig      `mapstructure:"limiter"`
	Redis   ToggleConfig      `mapstructure:"redis"`
}

// HTTPMetricsConfig server instruments
type HTTPMetricsConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	RecordResponseSize bool `mapstructure:"record_response_size"`
}

// ToggleConfig on/off switch for one instrument group
type ToggleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultConfig telemetry off; when switched on, OTLP to localhost:4317
func DefaultConfig() Config {
	return Config{
		ServiceName:    "ratelimit",
		ServiceVersion: "1.0.0",
		Exporter: ExporterConfig{
			Type:     "otlp",
			Endpoint: "localhost:4317",
			Insecure: true,
			Timeout:  10 * time.Second,
		},
		Sampler: SamplerConfig{
			Type:  "parent_based_always_on",
			Ratio: 1.0,
		},
		ResourceAttrs: make(map[string]interface{}),
		Batch: BatchConfig{
			Enabled:            true,
			MaxQueueSize:       2048,
			MaxExportBatchSize: 512,
			ScheduleDelay:      5 * time.Second,
			ExportTimeout:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			ExportInterval: 10 * time.Second,
			ExportTimeout:  5 * time.Second,
			Namespace:      "yogan",
			HTTP:           HTTPMetricsConfig{Enabled: true},
			Limiter:        ToggleConfig{Enabled: true},
			Redis:          ToggleConfig{Enabled: true},
		},
	}
}

// Validate a disabled config is always valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}

	switch c.Exporter.Type {
	case "otlp":
		if c.Exporter.Endpoint == "" {
			return fmt.Errorf("exporter endpoint is required for otlp exporter")
		}
	case "stdout":
	default:
		return fmt.Errorf("unsupported exporter type: %s (supported: otlp, stdout)", c.Exporter.Type)
	}

	switch c.Sampler.Type {
	case "", "always_on", "always_off", "parent_based_always_on":
	case "trace_id_ratio":
		if c.Sampler.Ratio < 0 || c.Sampler.Ratio > 1 {
			return fmt.Errorf("sampler ratio must be between 0 and 1, got: %f", c.Sampler.Ratio)
		}
	default:
		return fmt.Errorf("unsupported sampler type: %s", c.Sampler.Type)
	}

	if c.Batch.Enabled {
		if c.Batch.MaxQueueSize <= 0 {
			return fmt.Errorf("batch max_queue_size must be positive, got: %d", c.Batch.MaxQueueSize)
		}
		if c.Batch.MaxExportBatchSize <= 0 {
			return fmt.Errorf("batch max_export_batch_size must be positive, got: %d", c.Batch.MaxExportBatchSize)
		}
	}

	if c.Metrics.Enabled && c.Metrics.ExportInterval <= 0 {
		return fmt.Errorf("metrics export_interval must be positive, got: %s", c.Metrics.ExportInterval)
	}
	return nil
}
