// Package ai implements prompt rewriting and prompt analysis on top of a
// generative-AI backend.
package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/metrics"
	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/store"
	"github.com/promptguild/promptguild/internal/validate"
)

const (
	kindRewrite  = "rewrite"
	kindAnalysis = "analysis"

	stateRejected  = "rejected"
	stateFailed    = "failed"
	stateSucceeded = "succeeded"
)

// Service turns raw prompts into rewrite suggestions and analysis metadata.
// A nil backend means no upstream credential is configured.
type Service struct {
	backend Backend
	prompts store.Prompts
	log     zerolog.Logger
}

func NewService(backend Backend, prompts store.Prompts, log zerolog.Logger) *Service {
	return &Service{backend: backend, prompts: prompts, log: log}
}

// Configured reports whether a backend is available.
func (s *Service) Configured() bool { return s.backend != nil }

// RequestRewrite asks the backend for an improved version of raw and returns
// its text unchanged. Failures are not retried.
func (s *Service) RequestRewrite(ctx context.Context, callerID, raw string) (string, error) {
	if callerID == "" {
		metrics.AIRequests.WithLabelValues(kindRewrite, stateRejected).Inc()
		return "", model.Unauthenticated("sign in required")
	}
	if err := validate.NonEmpty("prompt", raw); err != nil {
		metrics.AIRequests.WithLabelValues(kindRewrite, stateRejected).Inc()
		return "", err
	}
	if err := validate.Content(raw); err != nil {
		metrics.AIRequests.WithLabelValues(kindRewrite, stateRejected).Inc()
		return "", err
	}
	if !s.Configured() {
		metrics.AIRequests.WithLabelValues(kindRewrite, stateRejected).Inc()
		return "", model.FailedPrecondition("AI backend is not configured")
	}

	instruction, err := render(rewriteTemplate, raw)
	if err != nil {
		return "", model.Internal("render rewrite instruction", err)
	}
	out, err := s.call(ctx, kindRewrite, instruction)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", callerID).Msg("rewrite request failed")
		return "", model.Upstream("AI suggestion failed", err)
	}
	return out, nil
}

// RequestAnalysis asks the backend to describe content and writes the parsed
// summary, use case and tags onto promptID.
func (s *Service) RequestAnalysis(ctx context.Context, promptID, content string) (*model.Analysis, error) {
	if !s.Configured() {
		metrics.AIRequests.WithLabelValues(kindAnalysis, stateRejected).Inc()
		return nil, model.FailedPrecondition("AI backend is not configured")
	}
	instruction, err := render(analyzeTemplate, content)
	if err != nil {
		return nil, model.Internal("render analysis instruction", err)
	}
	reply, err := s.call(ctx, kindAnalysis, instruction)
	if err != nil {
		return nil, model.Upstream("AI analysis failed", err)
	}
	a, err := parseAnalysis(reply)
	if err != nil {
		s.log.Warn().Err(err).Str("prompt_id", promptID).Int("reply_len", len(reply)).Msg("unparseable analysis reply")
		return nil, model.Internal("AI analysis unparseable", err)
	}
	if err := s.prompts.SetAnalysis(ctx, promptID, a); err != nil {
		if model.IsCode(err, model.CodeNotFound) {
			return nil, model.NotFound("prompt not found")
		}
		return nil, model.Internal("store analysis", err)
	}
	return &a, nil
}

func (s *Service) call(ctx context.Context, kind, instruction string) (string, error) {
	start := time.Now()
	out, err := s.backend.Generate(ctx, instruction)
	metrics.AIDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AIRequests.WithLabelValues(kind, stateFailed).Inc()
		return "", err
	}
	metrics.AIRequests.WithLabelValues(kind, stateSucceeded).Inc()
	return out, nil
}
