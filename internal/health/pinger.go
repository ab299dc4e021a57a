package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthPinger is a component that can answer a single liveness check.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// PingChecker pings a HealthPinger on an interval and caches the result.
type PingChecker struct {
	name        string
	target      HealthPinger
	healthy     atomic.Int32
	log         zerolog.Logger
	pingTimeout time.Duration
}

// NewPingChecker creates a checker that starts unhealthy until the first successful ping.
func NewPingChecker(name string, target HealthPinger, log zerolog.Logger, pingTimeout time.Duration) *PingChecker {
	return &PingChecker{name: name, target: target, log: log, pingTimeout: pingTimeout}
}

func (c *PingChecker) Name() string { return c.name }

// IsHealthy returns the cached health status (non-blocking).
func (c *PingChecker) IsHealthy() bool { return c.healthy.Load() == 1 }

// Start begins periodic health checking.
func (c *PingChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check runs a single ping and updates the cached status.
func (c *PingChecker) Check(ctx context.Context) bool {
	to := c.pingTimeout
	if to <= 0 {
		to = 2 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, to)
	defer cancel()

	if err := c.target.HealthPing(checkCtx); err != nil {
		c.log.Error().Stack().
			Str("checker", c.name).
			Err(err).
			Msg("health check failed")
		c.healthy.Store(0)
		return false
	}
	c.healthy.Store(1)
	return true
}
