package redis

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// MetricsHook go-redis hook feeding Metrics; add it with client.AddHook
type MetricsHook struct {
	m        *Metrics
	instance string
}

// NewMetricsHook instance labels every data point, e.g. "ratelimit"
func NewMetricsHook(m *Metrics, instance string) *MetricsHook {
	return &MetricsHook{m: m, instance: instance}
}

func (h *MetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.m.RecordCommand(ctx, h.instance, "dial", 0, err)
		}
		return conn, err
	}
}

func (h *MetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.m.RecordCommand(ctx, h.instance, cmd.Name(), time.Since(start), err)
		return err
	}
}

// ProcessPipelineHook splits the pipeline's round trip evenly across its commands
func (h *MetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if n := len(cmds); n > 0 {
			share := time.Since(start) / time.Duration(n)
			for _, cmd := range cmds {
				h.m.RecordCommand(ctx, h.instance, cmd.Name(), share, cmd.Err())
			}
		}
		return err
	}
}
