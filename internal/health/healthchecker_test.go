package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeChecker struct {
	name    string
	healthy atomic.Int32
}

func (f *fakeChecker) Name() string                               { return f.name }
func (f *fakeChecker) IsHealthy() bool                            { return f.healthy.Load() == 1 }
func (f *fakeChecker) Start(ctx context.Context, _ time.Duration) { /* no-op */ }

func TestServiceHealthChecker_FollowsComponents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeChecker{name: "store"}
	backend := &fakeChecker{name: "ai_backend"}
	store.healthy.Store(1)
	backend.healthy.Store(1)

	svc := NewServiceHealthChecker(zerolog.Nop(), store, backend)
	if svc.IsHealthy() {
		t.Fatalf("service must start unhealthy before the first evaluation")
	}
	go svc.Start(ctx, 10*time.Millisecond)
	waitTrue(t, func() bool { return svc.IsHealthy() })

	backend.healthy.Store(0)
	waitTrue(t, func() bool { return !svc.IsHealthy() })
	if got := svc.Components(); got["store"] != true || got["ai_backend"] != false {
		t.Fatalf("unexpected components: %v", got)
	}
	if got := svc.down(); len(got) != 1 || got[0] != "ai_backend" {
		t.Fatalf("unexpected failing list: %v", got)
	}

	backend.healthy.Store(1)
	waitTrue(t, func() bool { return svc.IsHealthy() })
}

func TestServiceHealthChecker_OptionalComponents(t *testing.T) {
	store := &fakeChecker{name: "store"}
	store.healthy.Store(1)
	backend := &fakeChecker{name: "ai_backend"}

	svc := NewServiceHealthChecker(zerolog.Nop(), store).WithOptional(backend)
	svc.evaluate()
	if !svc.IsHealthy() {
		t.Fatalf("an unhealthy optional component must not take the service down")
	}
	if got := svc.Components(); got["store"] != true || got["ai_backend"] != false {
		t.Fatalf("unexpected components: %v", got)
	}
}

func TestServiceHealthChecker_NoDependencies(t *testing.T) {
	svc := NewServiceHealthChecker(zerolog.Nop())
	svc.evaluate()
	if !svc.IsHealthy() {
		t.Fatalf("a service without dependencies is healthy once evaluated")
	}
}

type fakePinger struct{ err atomic.Value }

func (p *fakePinger) HealthPing(context.Context) error {
	if v, ok := p.err.Load().(error); ok {
		return v
	}
	return nil
}

func TestPingChecker(t *testing.T) {
	p := &fakePinger{}
	c := NewPingChecker("store", p, zerolog.Nop(), 0)
	if c.IsHealthy() {
		t.Fatalf("checker must start unhealthy")
	}
	if !c.Check(context.Background()) || !c.IsHealthy() {
		t.Fatalf("expected healthy after successful ping")
	}
	p.err.Store(errors.New("down"))
	if c.Check(context.Background()) || c.IsHealthy() {
		t.Fatalf("expected unhealthy after failed ping")
	}
}

func waitTrue(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}
