package ai

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/store"
)

type fakeBackend struct {
	mu       sync.Mutex
	reply    string
	err      error
	received []string
	gate     chan struct{} // when set, Generate waits for it to close
}

func (f *fakeBackend) Generate(ctx context.Context, prompt string) (string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, prompt)
	return f.reply, f.err
}

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

// fakePrompts implements the parts of store.Prompts the AI service touches.
type fakePrompts struct {
	store.Prompts

	mu       sync.Mutex
	prompts  map[string]*model.Prompt
	analyses map[string]model.Analysis
	written  chan string
}

func newFakePrompts(ps ...*model.Prompt) *fakePrompts {
	f := &fakePrompts{
		prompts:  make(map[string]*model.Prompt),
		analyses: make(map[string]model.Analysis),
		written:  make(chan string, 16),
	}
	for _, p := range ps {
		f.prompts[p.PromptID] = p
	}
	return f
}

func (f *fakePrompts) Get(_ context.Context, id string) (*model.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prompts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return p, nil
}

func (f *fakePrompts) SetAnalysis(_ context.Context, id string, a model.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prompts[id]; !ok {
		return model.ErrNotFound
	}
	f.analyses[id] = a
	f.written <- id
	return nil
}

func (f *fakePrompts) ListUnanalyzed(_ context.Context, limit int) ([]*model.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.prompts))
	for id := range f.prompts {
		if _, done := f.analyses[id]; !done {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*model.Prompt, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.prompts[id])
	}
	return out, nil
}

func (f *fakePrompts) analysis(id string) (model.Analysis, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.analyses[id]
	return a, ok
}

func TestRequestRewrite_Rejections(t *testing.T) {
	configured := NewService(&fakeBackend{reply: "x"}, newFakePrompts(), zerolog.Nop())
	unconfigured := NewService(nil, newFakePrompts(), zerolog.Nop())

	cases := []struct {
		name   string
		svc    *Service
		caller string
		raw    string
		code   model.Code
	}{
		{"no caller", configured, "", "write a poem", model.CodeUnauthenticated},
		{"empty prompt", configured, "u1", "", model.CodeInvalidArgument},
		{"blank prompt", configured, "u1", "   \n", model.CodeInvalidArgument},
		{"oversized prompt", configured, "u1", strings.Repeat("a", 100001), model.CodeInvalidArgument},
		{"no credential", unconfigured, "u1", "write a poem", model.CodeFailedPrecondition},
		{"no caller beats no credential", unconfigured, "", "write a poem", model.CodeUnauthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.svc.RequestRewrite(context.Background(), tc.caller, tc.raw)
			require.Error(t, err)
			assert.Equal(t, tc.code, model.CodeOf(err))
		})
	}
}

func TestRequestRewrite_ReturnsBackendTextVerbatim(t *testing.T) {
	be := &fakeBackend{reply: "  You are a poet. Write a haiku about autumn.\n"}
	svc := NewService(be, newFakePrompts(), zerolog.Nop())

	out, err := svc.RequestRewrite(context.Background(), "u1", "poem autumn")
	require.NoError(t, err)
	assert.Equal(t, be.reply, out)

	sent := be.calls()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "poem autumn")
	for _, part := range []string{"Role:", "Objective:", "Style:", "Tone:", "Audience:", "rewritten prompt text only"} {
		assert.Contains(t, sent[0], part)
	}
}

func TestRequestRewrite_UpstreamFailureIsInternalWithMessage(t *testing.T) {
	be := &fakeBackend{err: errors.New("quota exceeded")}
	svc := NewService(be, newFakePrompts(), zerolog.Nop())

	_, err := svc.RequestRewrite(context.Background(), "u1", "hello")
	require.Error(t, err)
	assert.Equal(t, model.CodeInternal, model.CodeOf(err))
	assert.Contains(t, model.MessageOf(err), "quota exceeded")
	assert.Len(t, be.calls(), 1, "no automatic retry")
}

func TestRequestAnalysis_WritesBack(t *testing.T) {
	prompts := newFakePrompts(&model.Prompt{PromptID: "p1", Content: "explain recursion"})
	be := &fakeBackend{reply: `Here you go: {"summary":"s","useCase":"u","tags":["a","b"]} thanks`}
	svc := NewService(be, prompts, zerolog.Nop())

	a, err := svc.RequestAnalysis(context.Background(), "p1", "explain recursion")
	require.NoError(t, err)
	assert.Equal(t, model.Analysis{Summary: "s", UseCase: "u", Tags: []string{"a", "b"}}, *a)

	stored, ok := prompts.analysis("p1")
	require.True(t, ok)
	assert.Equal(t, *a, stored)
	assert.Contains(t, be.calls()[0], "explain recursion")
	assert.Contains(t, be.calls()[0], `"useCase"`)
}

func TestRequestAnalysis_Failures(t *testing.T) {
	t.Run("no json", func(t *testing.T) {
		prompts := newFakePrompts(&model.Prompt{PromptID: "p1"})
		svc := NewService(&fakeBackend{reply: "sorry"}, prompts, zerolog.Nop())
		_, err := svc.RequestAnalysis(context.Background(), "p1", "x")
		assert.ErrorIs(t, err, ErrNoJSON)
		_, written := prompts.analysis("p1")
		assert.False(t, written)
	})
	t.Run("prompt deleted", func(t *testing.T) {
		svc := NewService(&fakeBackend{reply: `{"summary":"s"}`}, newFakePrompts(), zerolog.Nop())
		_, err := svc.RequestAnalysis(context.Background(), "gone", "x")
		assert.Equal(t, model.CodeNotFound, model.CodeOf(err))
	})
	t.Run("unconfigured", func(t *testing.T) {
		svc := NewService(nil, newFakePrompts(), zerolog.Nop())
		_, err := svc.RequestAnalysis(context.Background(), "p1", "x")
		assert.Equal(t, model.CodeFailedPrecondition, model.CodeOf(err))
	})
}
