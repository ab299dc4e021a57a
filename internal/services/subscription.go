package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/metrics"
	"github.com/promptguild/promptguild/internal/model"
)

// Subscription is a live query. Updates delivers the complete ordered result
// set on start and again after every committed change that can affect it.
// Only the newest result is buffered; a slow reader skips stale ones.
type Subscription[T any] struct {
	updates chan []T
	done    chan struct{}
	exited  chan struct{}
	once    sync.Once
	feed    *events.Feed
}

// Updates is closed after Cancel, or when access to the query is lost.
func (s *Subscription[T]) Updates() <-chan []T { return s.updates }

// Cancel stops the subscription. Once it returns no further result is
// delivered and Updates is closed. Safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		close(s.done)
		<-s.exited
		s.feed.Cancel()
	})
}

type liveQuery[T any] struct {
	// match also filters at the bus, on the publisher goroutine; it must not block.
	match func(events.Event) bool
	load  func(ctx context.Context) ([]T, error)
	log   zerolog.Logger
}

func startSubscription[T any](bus *events.Bus, buffer int, q liveQuery[T]) *Subscription[T] {
	s := &Subscription[T]{
		updates: make(chan []T, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		feed:    bus.Watch(buffer, q.match),
	}
	metrics.LiveSubscriptions.Inc()
	go s.run(q)
	return s
}

func (s *Subscription[T]) run(q liveQuery[T]) {
	evts := s.feed.Events()
	defer close(s.exited)
	defer func() {
		select {
		case <-s.done:
			// nothing may be read after Cancel returns
			select {
			case <-s.updates:
			default:
			}
		default:
		}
		close(s.updates)
	}()
	defer metrics.LiveSubscriptions.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	dirty := true
	for {
		if dirty {
			dirty = false
			res, err := q.load(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case model.IsCode(err, model.CodeNotFound), model.IsCode(err, model.CodePermissionDenied):
				q.log.Info().Str("reason", model.MessageOf(err)).Msg("live query closed")
				return
			case err != nil:
				q.log.Error().Stack().Err(err).Msg("live query reload failed")
			default:
				if !s.deliver(res) {
					return
				}
			}
		}

		select {
		case <-s.done:
			return
		case evt, ok := <-evts:
			if !ok {
				return
			}
			dirty = q.match(evt)
		}
		// Coalesce whatever else is already queued into a single reload.
	drain:
		for {
			select {
			case evt, ok := <-evts:
				if !ok {
					return
				}
				if q.match(evt) {
					dirty = true
				}
			default:
				break drain
			}
		}
		// A dropped event may have been a matching one.
		if s.feed.Lagged() {
			dirty = true
		}
	}
}

// deliver replaces any unread result with res. It never blocks on the reader.
func (s *Subscription[T]) deliver(res []T) bool {
	for {
		select {
		case <-s.done:
			return false
		default:
		}
		select {
		case s.updates <- res:
			return true
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}
