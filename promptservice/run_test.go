package promptservice

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptguild/promptguild/internal/config"
	"github.com/promptguild/promptguild/internal/health"
)

func TestCalculateStartupHealthTimeout(t *testing.T) {
	assert.Equal(t, 60, calculateStartupHealthTimeout(1))
	assert.Equal(t, 60, calculateStartupHealthTimeout(30))
	assert.Equal(t, 120, calculateStartupHealthTimeout(60))
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.NewForTesting()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "svc.db")
	return cfg
}

func TestInitDependencies_WithoutAI(t *testing.T) {
	cfg := testConfig(t)
	d, err := initDependencies(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer d.close(zerolog.Nop())

	assert.Nil(t, d.backend)
	assert.False(t, d.ai.Configured())
	assert.Nil(t, d.analyzer)
	assert.Nil(t, d.storage.Listener)
}

func TestInitDependencies_WithAI(t *testing.T) {
	cfg := testConfig(t)
	cfg.AIAPIKey = "sk-test"
	d, err := initDependencies(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer d.close(zerolog.Nop())

	assert.True(t, d.ai.Configured())
	assert.NotNil(t, d.analyzer)

	cfg2 := testConfig(t)
	cfg2.AIAPIKey = "sk-test"
	cfg2.AnalyzeOnCreate = false
	d2, err := initDependencies(context.Background(), cfg2, zerolog.Nop())
	require.NoError(t, err)
	defer d2.close(zerolog.Nop())
	assert.Nil(t, d2.analyzer)
}

func TestWaitUntilHealthy_StoreOnly(t *testing.T) {
	cfg := testConfig(t)
	d, err := initDependencies(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer d.close(zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svcHealth := startHealthCheckers(ctx, cfg, zerolog.Nop(), d)
	require.NoError(t, waitUntilHealthy(ctx, cfg, svcHealth))
	assert.Equal(t, map[string]bool{"store": true}, svcHealth.Components())
}

func TestWaitUntilHealthy_Canceled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitUntilHealthy(ctx, cfg, health.NewServiceHealthChecker(zerolog.Nop()))
	assert.ErrorIs(t, err, context.Canceled)
}

type unreachableBackend struct{}

func (unreachableBackend) Generate(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (unreachableBackend) HealthPing(context.Context) error { return errors.New("connection refused") }

func TestWaitUntilHealthy_AIBackendDownDoesNotBlock(t *testing.T) {
	cfg := testConfig(t)
	d, err := initDependencies(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer d.close(zerolog.Nop())
	d.backend = unreachableBackend{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svcHealth := startHealthCheckers(ctx, cfg, zerolog.Nop(), d)
	require.NoError(t, waitUntilHealthy(ctx, cfg, svcHealth))

	require.Eventually(t, func() bool {
		c := svcHealth.Components()
		up, reported := c["ai_backend"]
		return reported && !up && c["store"]
	}, 3*time.Second, 20*time.Millisecond)
	assert.True(t, svcHealth.IsHealthy())
}
