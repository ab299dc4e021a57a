// Package promptservice wires configuration, storage, identity and the AI
// backend into the prompt library HTTP service.
package promptservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/promptguild/promptguild/internal/ai"
	"github.com/promptguild/promptguild/internal/api"
	"github.com/promptguild/promptguild/internal/auth"
	"github.com/promptguild/promptguild/internal/config"
	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/factory"
	"github.com/promptguild/promptguild/internal/health"
	"github.com/promptguild/promptguild/internal/logger"
	"github.com/promptguild/promptguild/internal/services"
	"github.com/promptguild/promptguild/internal/store"
)

// dependencies holds everything constructed at startup.
type dependencies struct {
	bus      *events.Bus
	storage  *factory.Storage
	backend  ai.Backend
	prompts  *services.PromptService
	guilds   *services.GuildService
	ai       *ai.Service
	analyzer *ai.Analyzer
	authn    *auth.Middleware
}

// Run starts the prompt service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("prompt-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	if cfg.LogFile != "" {
		var closer io.Closer
		log, closer = logger.NewWithFile("prompt-service", logger.FileOptions{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogFileMaxSizeMB,
			MaxBackups: cfg.LogFileMaxBackups,
		})
		defer closer.Close()
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("auth_mode", cfg.AuthMode).
		Bool("ai_configured", cfg.AIConfigured()).
		Msg("Prompt service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize dependencies")
		return err
	}
	defer deps.close(log)

	// Background workers share one group; the first failure cancels the rest.
	g, gctx := errgroup.WithContext(ctx)
	startWorkers(gctx, g, deps)

	// Start health checkers and bind service health
	svcHealth := startHealthCheckers(gctx, cfg, log, deps)
	router := buildRouter(deps, svcHealth, log)

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(gctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(gctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	var runErr error
	select {
	case <-gctx.Done():
		log.Info().Msg("Shutting down server")
	case runErr = <-errCh:
		log.Error().Stack().Err(runErr).Msg("HTTP server failed")
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error().Stack().Err(err).Msg("Server forced to shutdown")
		runErr = errors.Join(runErr, err)
	}

	stop()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("background worker failed")
		runErr = errors.Join(runErr, err)
	}
	log.Info().Msg("Server exited")
	return runErr
}

// initDependencies constructs required components and enforces fail-fast on missing deps.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	bus := events.NewBus(cfg.LiveBufferSize)

	storage, err := factory.NewStore(ctx, cfg, bus, log)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("store init: %w", err)
	}

	authenticator, err := auth.New(ctx, cfg)
	if err != nil {
		_ = storage.Store.Close()
		bus.Close()
		return nil, fmt.Errorf("identity provider init: %w", err)
	}

	var st store.Store = storage.Store
	d := &dependencies{
		bus:     bus,
		storage: storage,
		prompts: services.NewPromptService(st, bus, log.With().Str("component", "prompts").Logger(), cfg.LiveBufferSize),
		guilds:  services.NewGuildService(st, bus, log.With().Str("component", "guilds").Logger(), cfg.LiveBufferSize),
		authn:   auth.NewMiddleware(authenticator, st.Users(), log.With().Str("component", "auth").Logger()),
	}

	d.backend = factory.NewAIBackend(cfg, log)
	aiLog := log.With().Str("component", "ai").Logger()
	d.ai = ai.NewService(d.backend, st.Prompts(), aiLog)
	if d.ai.Configured() && cfg.AnalyzeOnCreate {
		d.analyzer = ai.NewAnalyzer(d.ai, st.Prompts(), bus, ai.AnalyzerConfig{
			Concurrency: cfg.AnalyzerConcurrency,
			Timeout:     time.Duration(cfg.AITimeoutSeconds) * time.Second,
		}, aiLog.With().Str("worker", "analyzer").Logger())
	}
	return d, nil
}

func (d *dependencies) close(log zerolog.Logger) {
	d.bus.Close()
	if err := d.storage.Store.Close(); err != nil {
		log.Error().Err(err).Msg("store close failed")
	}
}

func startWorkers(ctx context.Context, g *errgroup.Group, d *dependencies) {
	if l := d.storage.Listener; l != nil {
		g.Go(func() error {
			l.Run(ctx)
			return nil
		})
	}
	if d.analyzer != nil {
		g.Go(func() error { return d.analyzer.Run(ctx) })
	}
}

func buildRouter(d *dependencies, svcHealth *health.ServiceHealthChecker, log zerolog.Logger) *mux.Router {
	return api.NewRouter(api.Deps{
		Prompts:    d.prompts,
		Guilds:     d.guilds,
		AI:         d.ai,
		Auth:       d.authn,
		Healthy:    svcHealth.IsHealthy,
		Components: svcHealth.Components,
		Log:        log,
	})
}

// startHealthCheckers launches component health checks and the aggregate checker.
// The AI backend is checked and reported, but it is optional: its outages
// surface on AI calls only and never gate startup or service health.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, d *dependencies) *health.ServiceHealthChecker {
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second
	pingTimeout := time.Duration(cfg.HealthPingTimeoutSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(d.storage.Store, log, pingTimeout)
	go storeChecker.Start(ctx, interval)
	svcHealth := health.NewServiceHealthChecker(log, storeChecker)

	if d.backend != nil {
		aiChecker := ai.NewBackendHealthChecker(d.backend, log, pingTimeout)
		go aiChecker.Start(ctx, interval)
		svcHealth.WithOptional(aiChecker)
	}

	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
