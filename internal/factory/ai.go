package factory

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/ai"
	"github.com/promptguild/promptguild/internal/config"
)

// NewAIBackend returns nil when no credential is configured; the AI service
// then answers FailedPrecondition and the analyzer stays idle.
func NewAIBackend(cfg *config.Config, log zerolog.Logger) ai.Backend {
	if !cfg.AIConfigured() {
		log.Warn().Msg("AI backend not configured; suggestions and analysis disabled")
		return nil
	}
	return ai.NewOpenAIBackend(ai.OpenAIConfig{
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
		BaseURL: cfg.AIBaseURL,
		Timeout: time.Duration(cfg.AITimeoutSeconds) * time.Second,
	})
}
