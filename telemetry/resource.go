package telemetry

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// createResource identifies this process on every span and metric: the
// service name and version, the configured resource_attributes, then host,
// process and SDK details.
func (m *Manager) createResource(ctx context.Context) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(resourceAttributes(m.config)...),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
	)
}

// resourceAttributes nested resource_attributes become dotted keys, so
// {deployment: {environment: prod}} yields deployment.environment=prod.
// String values expand ${ENV} references. Keys are sorted for stable output.
func resourceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}

	flat := make(map[string]string)
	var walk func(prefix string, m map[string]interface{})
	walk = func(prefix string, m map[string]interface{}) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			switch val := v.(type) {
			case map[string]interface{}:
				walk(key, val)
			case string:
				flat[key] = os.ExpandEnv(val)
			default:
				flat[key] = fmt.Sprint(val)
			}
		}
	}
	walk("", cfg.ResourceAttrs)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, flat[k]))
	}
	return attrs
}
