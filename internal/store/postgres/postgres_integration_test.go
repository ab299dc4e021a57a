package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/store"
	"github.com/promptguild/promptguild/internal/store/sqlstore"
	"github.com/promptguild/promptguild/internal/store/storetest"
)

var (
	pgOnce      sync.Once
	pgDSN       string
	pgErr       error
	pgContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	code := m.Run()
	if pgContainer != nil {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			fmt.Printf("Failed to terminate postgres container: %v\n", err)
		}
	}
	os.Exit(code)
}

// postgresDSN returns PROMPTGUILD_POSTGRES_DSN when set, otherwise starts a
// throwaway postgres container shared by every test in the package.
func postgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	if dsn := os.Getenv("PROMPTGUILD_POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgOnce.Do(func() {
		ctx := context.Background()
		req := testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "promptguild",
				"POSTGRES_PASSWORD": "promptguild",
				"POSTGRES_DB":       "promptguild",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		}
		ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			pgErr = fmt.Errorf("failed to start container: %w", err)
			return
		}
		pgContainer = ctr

		host, err := ctr.Host(ctx)
		if err != nil {
			pgErr = fmt.Errorf("failed to get container host: %w", err)
			return
		}
		port, err := ctr.MappedPort(ctx, "5432")
		if err != nil {
			pgErr = fmt.Errorf("failed to get container port: %w", err)
			return
		}
		pgDSN = fmt.Sprintf("postgres://promptguild:promptguild@%s:%s/promptguild?sslmode=disable", host, port.Port())
	})
	if pgErr != nil {
		t.Fatalf("postgres container: %v", pgErr)
	}
	return pgDSN
}

func makePGStore(t *testing.T, bus *events.Bus) store.Store {
	t.Helper()
	s, err := New(context.Background(), postgresDSN(t), sqlstore.Options{Bus: bus, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStore_Compliance(t *testing.T) {
	storetest.Run(t, makePGStore)
}

func TestListener_RelaysRemoteEvents(t *testing.T) {
	dsn := postgresDSN(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remoteBus := events.NewBus(8)
	ch, unsubscribe := remoteBus.Subscribe(8)
	defer unsubscribe()
	go NewListener(dsn, "instance-b", remoteBus, zerolog.Nop()).Run(ctx)

	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	relay := NewRelay(db, "instance-a", zerolog.Nop())

	// The listener connects asynchronously; keep notifying until one arrives.
	deadline := time.After(15 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case evt := <-ch:
			if evt.PromptID != "p-remote" || !evt.Remote {
				t.Fatalf("unexpected event: %+v", evt)
			}
			return
		case <-tick.C:
			relay(ctx, events.Event{Kind: events.EventPromptUpdated, PromptID: "p-remote", OwnerID: "u1"})
		case <-deadline:
			t.Fatalf("no event relayed")
		}
	}
}

func TestListener_IgnoresOwnOrigin(t *testing.T) {
	bus := events.NewBus(1)
	ch, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	l := NewListener("", "self", bus, zerolog.Nop())
	l.handle(`{"origin":"self","event":{"kind":"prompt_created","promptId":"p1"}}`)
	l.handle(`not json`)

	select {
	case evt := <-ch:
		t.Fatalf("expected no event, got %+v", evt)
	default:
	}
}

func TestRebindAndFilter(t *testing.T) {
	d := Dialect{}
	if got := d.Rebind("SELECT 1 FROM guilds WHERE " + d.MemberFilter()); got != "SELECT 1 FROM guilds WHERE guilds.member_ids @> jsonb_build_array(CAST($1 AS TEXT))" {
		t.Fatalf("unexpected rebind: %s", got)
	}
}
