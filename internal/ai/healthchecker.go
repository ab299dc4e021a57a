package ai

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/health"
)

var errNotConfigured = errors.New("AI backend is not configured")

type backendPinger struct{ backend Backend }

func (p backendPinger) HealthPing(ctx context.Context) error {
	if p.backend == nil {
		return errNotConfigured
	}
	if hp, ok := p.backend.(health.HealthPinger); ok {
		return hp.HealthPing(ctx)
	}
	return nil
}

// NewBackendHealthChecker reports the AI backend unhealthy while it is
// unconfigured or its model lookup fails.
func NewBackendHealthChecker(b Backend, log zerolog.Logger, pingTimeout time.Duration) *health.PingChecker {
	return health.NewPingChecker("ai_backend", backendPinger{backend: b}, log, pingTimeout)
}
