package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(max int) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)}
	return NewStore(Options{IdleTimeout: 30 * time.Minute, MaxSessions: max, Now: clock.Now}), clock
}

func TestAcquireSaveRoundTrip(t *testing.T) {
	store, clock := newTestStore(0)
	ctx := context.Background()

	lease, release, err := store.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if lease.Session != nil || lease.Expired {
		t.Fatalf("expected empty lease, got %+v", lease)
	}
	sess := domain.NewSession("s1", "u1", clock.Now())
	sess.State = domain.StateAwaitingBranch
	if err := store.Save("u1", sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	release()

	lease, release, err = store.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()
	if lease.Session != sess {
		t.Fatalf("expected saved session back")
	}
	stats := store.Stats()
	if stats.Active != 1 || stats.ByState[string(domain.StateAwaitingBranch)] != 1 || stats.Created != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAcquireExpiresIdleSession(t *testing.T) {
	store, clock := newTestStore(0)
	ctx := context.Background()

	_, release, _ := store.Acquire(ctx, "u1")
	if err := store.Save("u1", domain.NewSession("s1", "u1", clock.Now())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	release()

	clock.Advance(31 * time.Minute)

	lease, release, err := store.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()
	if lease.Session != nil || !lease.Expired {
		t.Fatalf("expected expired lease, got %+v", lease)
	}
	if stats := store.Stats(); stats.Active != 0 || stats.Expired != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAcquireSerializesSameUser(t *testing.T) {
	store, _ := newTestStore(0)
	ctx := context.Background()

	_, release, err := store.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		_, r, err := store.Acquire(ctx, "u1")
		if err == nil {
			r()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("second acquire must wait for release")
	case <-time.After(20 * time.Millisecond):
	}

	// Other users are not blocked.
	_, other, err := store.Acquire(ctx, "u2")
	if err != nil {
		t.Fatalf("Acquire(u2) error = %v", err)
	}
	other()

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second acquire never completed")
	}
}

func TestAcquireHonoursContext(t *testing.T) {
	store, _ := newTestStore(0)
	_, release, _ := store.Acquire(context.Background(), "u1")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, _, err := store.Acquire(ctx, "u1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestInterruptBumpsGeneration(t *testing.T) {
	store, _ := newTestStore(0)
	lease, release, _ := store.Acquire(context.Background(), "u1")
	defer release()

	store.Interrupt("u1")
	if store.Generation("u1") == lease.Generation {
		t.Fatalf("generation did not change")
	}
	store.Interrupt("unknown")
	if store.Generation("unknown") != 0 {
		t.Fatalf("unknown users have no generation")
	}
}

func TestSaveRespectsCapacity(t *testing.T) {
	store, clock := newTestStore(1)
	ctx := context.Background()

	_, r1, _ := store.Acquire(ctx, "u1")
	if err := store.Save("u1", domain.NewSession("s1", "u1", clock.Now())); err != nil {
		t.Fatalf("Save(u1) error = %v", err)
	}
	r1()

	_, r2, _ := store.Acquire(ctx, "u2")
	defer r2()
	err := store.Save("u2", domain.NewSession("s2", "u2", clock.Now()))
	if !domain.IsKind(err, domain.ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}

	_, r1, _ = store.Acquire(ctx, "u1")
	store.Clear("u1")
	r1()
	if err := store.Save("u2", domain.NewSession("s2", "u2", clock.Now())); err != nil {
		t.Fatalf("Save(u2) after clear error = %v", err)
	}
}

func TestCapacityIgnoresTimedOutSessions(t *testing.T) {
	store, clock := newTestStore(1)
	ctx := context.Background()

	_, r1, _ := store.Acquire(ctx, "u1")
	sess := domain.NewSession("s1", "u1", clock.Now())
	sess.State = domain.StateAwaitingBranch
	if err := store.Save("u1", sess); err != nil {
		t.Fatalf("Save(u1) error = %v", err)
	}
	r1()
	if stats := store.Stats(); stats.Active != 1 || stats.ByState[string(domain.StateAwaitingBranch)] != 1 {
		t.Fatalf("unexpected stats before timeout %+v", stats)
	}

	clock.Advance(2 * time.Hour)
	if stats := store.Stats(); stats.Active != 0 || len(stats.ByState) != 0 {
		t.Fatalf("timed out session must not count as active, got %+v", stats)
	}

	_, r2, _ := store.Acquire(ctx, "u2")
	defer r2()
	if err := store.Save("u2", domain.NewSession("s2", "u2", clock.Now())); err != nil {
		t.Fatalf("Save(u2) error = %v", err)
	}
	if stats := store.Stats(); stats.Active != 1 {
		t.Fatalf("expected only u2 active, got %+v", stats)
	}
}

func TestSweepRemovesExpiredUnheldEntries(t *testing.T) {
	store, clock := newTestStore(0)
	ctx := context.Background()

	for _, id := range []string{"u1", "u2"} {
		_, r, _ := store.Acquire(ctx, id)
		if err := store.Save(id, domain.NewSession("s-"+id, id, clock.Now())); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		r()
	}
	clock.Advance(45 * time.Minute)

	_, held, _ := store.Acquire(ctx, "u2")
	defer held()

	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed entry, got %d", removed)
	}
	if _, ok := store.entries["u2"]; !ok {
		t.Fatalf("held entry must survive the sweep")
	}
}
