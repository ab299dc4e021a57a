package ai

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/store"
)

// AnalyzerConfig controls how many analyses run at once and how long each may take.
type AnalyzerConfig struct {
	Concurrency int
	Timeout     time.Duration
	Buffer      int // bus subscription buffer
	Backlog     int // prompts waiting for a free slot
	SweepLimit  int // prompts loaded per recovery sweep
}

// Analyzer analyzes every prompt created by this instance in the background.
// Results are written onto the prompt; failures are only logged.
//
// The event loop never waits for a free slot. Ids wait in a bounded backlog;
// when the backlog or the bus buffer overflows, the analyzer falls back to
// sweeping the store for prompts that still have no summary.
type Analyzer struct {
	svc     *Service
	prompts store.Prompts
	bus     *events.Bus
	sem     *semaphore.Weighted
	cfg     AnalyzerConfig
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewAnalyzer(svc *Service, prompts store.Prompts, bus *events.Bus, cfg AnalyzerConfig, log zerolog.Logger) *Analyzer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 1024
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = 4096
	}
	return &Analyzer{
		svc:     svc,
		prompts: prompts,
		bus:     bus,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		cfg:     cfg,
		log:     log,
	}
}

// Remote creations are analyzed by the instance that committed them.
func isLocalCreate(evt events.Event) bool {
	return evt.Kind == events.EventPromptCreated && !evt.Remote
}

// Run consumes prompt creation events until ctx is canceled, then waits for
// in-flight analyses to finish.
func (a *Analyzer) Run(ctx context.Context) error {
	feed := a.bus.Watch(a.cfg.Buffer, isLocalCreate)
	defer feed.Cancel()
	defer a.wg.Wait()
	stopped := make(chan struct{})
	defer close(stopped)

	finished := make(chan string, a.cfg.Concurrency)
	tracked := make(map[string]bool) // queued or in flight
	var backlog []string
	sweep := false

	enqueue := func(id string) {
		if tracked[id] {
			return
		}
		if len(backlog) >= a.cfg.Backlog {
			sweep = true
			return
		}
		tracked[id] = true
		backlog = append(backlog, id)
	}

	a.log.Info().Int("concurrency", a.cfg.Concurrency).Dur("timeout", a.cfg.Timeout).Msg("analyzer starting")
	for {
		if feed.Lagged() {
			sweep = true
		}
		if sweep && len(backlog) == 0 {
			ids, err := a.pending(ctx)
			if err != nil {
				a.log.Error().Err(err).Msg("analyzer: sweep failed")
			}
			// A full page means more may remain; continue once this one drains.
			sweep = len(ids) == a.cfg.SweepLimit
			for _, id := range ids {
				if !tracked[id] {
					tracked[id] = true
					backlog = append(backlog, id)
				}
			}
		}
		for len(backlog) > 0 && a.sem.TryAcquire(1) {
			id := backlog[0]
			backlog = backlog[1:]
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				defer a.sem.Release(1)
				a.handle(ctx, id)
				select {
				case finished <- id:
				case <-stopped:
				}
			}()
		}

		select {
		case <-ctx.Done():
			a.log.Info().Msg("analyzer stopping")
			return ctx.Err()
		case id := <-finished:
			delete(tracked, id)
		case evt, ok := <-feed.Events():
			if !ok {
				return nil
			}
			enqueue(evt.PromptID)
		}
	}
}

// pending lists prompts that were created but never analyzed.
func (a *Analyzer) pending(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	ps, err := a.prompts.ListUnanalyzed(ctx, a.cfg.SweepLimit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.PromptID)
	}
	a.log.Info().Int("prompts", len(ids)).Msg("analyzer: sweeping unanalyzed prompts")
	return ids, nil
}

func (a *Analyzer) handle(ctx context.Context, promptID string) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	p, err := a.prompts.Get(ctx, promptID)
	if err != nil {
		a.log.Warn().Err(err).Str("prompt_id", promptID).Msg("analyzer: prompt gone before analysis")
		return
	}
	res, err := a.svc.RequestAnalysis(ctx, promptID, p.Content)
	if err != nil {
		a.log.Error().Err(err).Str("prompt_id", promptID).Msg("analyzer: analysis failed")
		return
	}
	a.log.Debug().Str("prompt_id", promptID).Strs("tags", res.Tags).Msg("analyzer: prompt analyzed")
}
