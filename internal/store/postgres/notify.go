package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/events"
)

// Channel is the NOTIFY channel used to fan change events out across instances.
const Channel = "promptguild_events"

type envelope struct {
	Origin string       `json:"origin"`
	Event  events.Event `json:"event"`
}

// NewRelay returns a sqlstore.Options.Relay func that forwards committed
// events to other instances via pg_notify. Failures are logged, not returned.
func NewRelay(db *sql.DB, origin string, log zerolog.Logger) func(ctx context.Context, evt events.Event) {
	return func(ctx context.Context, evt events.Event) {
		if evt.Remote {
			return
		}
		payload, err := json.Marshal(envelope{Origin: origin, Event: evt})
		if err != nil {
			log.Error().Err(err).Msg("encode change event")
			return
		}
		if _, err := db.ExecContext(context.WithoutCancel(ctx), `SELECT pg_notify($1, $2)`, Channel, string(payload)); err != nil {
			log.Error().Stack().Err(err).Str("kind", string(evt.Kind)).Msg("pg_notify failed")
		}
	}
}

// Listener relays NOTIFY payloads from other instances onto the local bus.
type Listener struct {
	dsn    string
	origin string
	bus    *events.Bus
	log    zerolog.Logger
}

func NewListener(dsn, origin string, bus *events.Bus, log zerolog.Logger) *Listener {
	return &Listener{dsn: dsn, origin: origin, bus: bus, log: log}
}

// Run listens until ctx is cancelled, reconnecting with backoff on failure.
func (l *Listener) Run(ctx context.Context) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 10 * time.Second
	exp.MaxElapsedTime = 0
	exp.Reset()

	for {
		err := l.listen(ctx, exp)
		if ctx.Err() != nil {
			return
		}
		wait := exp.NextBackOff()
		l.log.Warn().Err(err).Dur("retry_in", wait).Msg("change listener disconnected")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) listen(ctx context.Context, exp *backoff.ExponentialBackOff) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return err
	}
	exp.Reset()
	l.log.Info().Str("channel", Channel).Msg("change listener started")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.handle(n.Payload)
	}
}

func (l *Listener) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		l.log.Warn().Err(err).Msg("discarding malformed change event")
		return
	}
	if env.Origin == l.origin {
		return
	}
	env.Event.Remote = true
	l.bus.Publish(env.Event)
}
