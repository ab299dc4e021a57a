// Package health tracks dependency liveness for readiness reporting.
package health

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is implemented by component-level checkers (store, AI backend).
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// ServiceHealthChecker folds component checkers into one service-level flag.
// The service is up only while every required component is up; optional
// components are reported but never take the service down.
type ServiceHealthChecker struct {
	up       atomic.Bool
	deps     []HealthChecker
	optional []HealthChecker
	log      zerolog.Logger
}

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	return &ServiceHealthChecker{deps: deps, log: log}
}

// WithOptional adds components that only appear in Components.
func (h *ServiceHealthChecker) WithOptional(checkers ...HealthChecker) *ServiceHealthChecker {
	h.optional = append(h.optional, checkers...)
	return h
}

// IsHealthy returns the result of the latest evaluation.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.up.Load() }

// Components reports the cached health of each dependency by name.
func (h *ServiceHealthChecker) Components() map[string]bool {
	out := make(map[string]bool, len(h.deps)+len(h.optional))
	for _, c := range h.deps {
		out[c.Name()] = c.IsHealthy()
	}
	for _, c := range h.optional {
		out[c.Name()] = c.IsHealthy()
	}
	return out
}

// down lists the names of unhealthy required components in sorted order.
func (h *ServiceHealthChecker) down() []string {
	var names []string
	for _, c := range h.deps {
		if !c.IsHealthy() {
			names = append(names, c.Name())
		}
	}
	sort.Strings(names)
	return names
}

// evaluate refreshes the service flag and logs when it flips.
func (h *ServiceHealthChecker) evaluate() {
	failing := h.down()
	now := len(failing) == 0
	if h.up.Swap(now) == now {
		return
	}
	if now {
		h.log.Info().Msg("service health: UP")
	} else {
		h.log.Error().Strs("failing", failing).Msg("service health: DOWN")
	}
}

// Start re-evaluates on every tick until ctx is done.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.evaluate()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.evaluate()
		}
	}
}
