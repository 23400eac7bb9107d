package filelock

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joewaller/claustrum/internal/registry"
	"github.com/joewaller/claustrum/internal/store"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *registry.Registry, *fakeClock) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "coord.db"), store.DefaultOptions())
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	clock := &fakeClock{t: time.Now()}
	mgr := New(s, ttl, WithClock(clock.Now))
	reg := registry.New(s, ttl, registry.WithClock(clock.Now))
	return mgr, reg, clock
}

func heartbeat(t *testing.T, reg *registry.Registry, id, task string) {
	t.Helper()
	if err := reg.Heartbeat(id, registry.Info{Task: task}); err != nil {
		t.Fatalf("Heartbeat(%s) error: %v", id, err)
	}
}

func TestClaimGrantsUnclaimedPath(t *testing.T) {
	mgr, reg, _ := newTestManager(t, 5*time.Minute)
	heartbeat(t, reg, "a", "")

	res, err := mgr.Claim("a", "auth/service.go")
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if !res.Granted || res.AlreadyHeld {
		t.Errorf("Claim() = %+v, want granted fresh claim", res)
	}

	owner, ok, err := mgr.Owner("auth/service.go")
	if err != nil || !ok || owner != "a" {
		t.Errorf("Owner() = %q, %v, %v, want a", owner, ok, err)
	}
}

func TestClaimConflictNamesOwner(t *testing.T) {
	mgr, reg, _ := newTestManager(t, 5*time.Minute)
	heartbeat(t, reg, "a", "refactor auth")
	heartbeat(t, reg, "b", "")

	if _, err := mgr.Claim("a", "auth/service.go"); err != nil {
		t.Fatalf("Claim(a) error: %v", err)
	}

	res, err := mgr.Claim("b", "auth/service.go")
	if err != nil {
		t.Fatalf("Claim(b) error: %v", err)
	}
	if res.Granted {
		t.Fatal("Claim(b) granted, want conflict")
	}
	if res.OwnerID != "a" {
		t.Errorf("OwnerID = %q, want a", res.OwnerID)
	}
	if res.OwnerTask != "refactor auth" {
		t.Errorf("OwnerTask = %q, want refactor auth", res.OwnerTask)
	}
}

func TestReclaimOwnPathIsIdempotent(t *testing.T) {
	mgr, reg, _ := newTestManager(t, 5*time.Minute)
	heartbeat(t, reg, "a", "")

	for i := 0; i < 3; i++ {
		res, err := mgr.Claim("a", "pkg/foo.go")
		if err != nil {
			t.Fatalf("Claim #%d error: %v", i, err)
		}
		if !res.Granted {
			t.Fatalf("Claim #%d not granted", i)
		}
	}

	claims, err := mgr.ListActive()
	if err != nil {
		t.Fatalf("ListActive() error: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("claims = %d rows, want 1 (no duplicates)", len(claims))
	}
}

func TestClaimNormalizesPath(t *testing.T) {
	mgr, reg, _ := newTestManager(t, 5*time.Minute)
	heartbeat(t, reg, "a", "")
	heartbeat(t, reg, "b", "")

	if _, err := mgr.Claim("a", "pkg/foo.go"); err != nil {
		t.Fatalf("Claim(a) error: %v", err)
	}
	res, err := mgr.Claim("b", "pkg//sub/../foo.go")
	if err != nil {
		t.Fatalf("Claim(b) error: %v", err)
	}
	if res.Granted {
		t.Error("equivalent path spelling bypassed the existing claim")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	mgr, reg, _ := newTestManager(t, 5*time.Minute)
	heartbeat(t, reg, "a", "")
	heartbeat(t, reg, "b", "")

	if _, err := mgr.Claim("a", "pkg/foo.go"); err != nil {
		t.Fatalf("Claim() error: %v", err)
	}

	// Release of an unclaimed path: no-op success.
	if err := mgr.Release("a", "pkg/never-claimed.go"); err != nil {
		t.Errorf("Release(unclaimed) = %v, want nil", err)
	}
	// Release by a non-owner: no-op success, claim survives.
	if err := mgr.Release("b", "pkg/foo.go"); err != nil {
		t.Errorf("Release(non-owner) = %v, want nil", err)
	}
	if owner, ok, _ := mgr.Owner("pkg/foo.go"); !ok || owner != "a" {
		t.Errorf("Owner() = %q, %v after foreign release, want a", owner, ok)
	}
	// Release by owner, twice.
	for i := 0; i < 2; i++ {
		if err := mgr.Release("a", "pkg/foo.go"); err != nil {
			t.Errorf("Release #%d = %v, want nil", i, err)
		}
	}
	if _, ok, _ := mgr.Owner("pkg/foo.go"); ok {
		t.Error("Owner() still set after release")
	}
}

func TestClaimSucceedsAfterRelease(t *testing.T) {
	mgr, reg, _ := newTestManager(t, 5*time.Minute)
	heartbeat(t, reg, "a", "")
	heartbeat(t, reg, "b", "")

	if _, err := mgr.Claim("a", "auth/service.go"); err != nil {
		t.Fatalf("Claim(a) error: %v", err)
	}
	if res, _ := mgr.Claim("b", "auth/service.go"); res.Granted {
		t.Fatal("Claim(b) granted while a holds the path")
	}
	if err := mgr.Release("a", "auth/service.go"); err != nil {
		t.Fatalf("Release(a) error: %v", err)
	}

	res, err := mgr.Claim("b", "auth/service.go")
	if err != nil {
		t.Fatalf("Claim(b) error: %v", err)
	}
	if !res.Granted {
		t.Error("Claim(b) rejected after release")
	}
}

func TestClaimTakesOverExpiredOwner(t *testing.T) {
	mgr, reg, clock := newTestManager(t, time.Minute)
	heartbeat(t, reg, "a", "")

	if _, err := mgr.Claim("a", "pkg/foo.go"); err != nil {
		t.Fatalf("Claim(a) error: %v", err)
	}

	// a goes silent past the TTL; its claim is treated as absent.
	clock.Advance(2 * time.Minute)
	heartbeat(t, reg, "b", "")

	res, err := mgr.Claim("b", "pkg/foo.go")
	if err != nil {
		t.Fatalf("Claim(b) error: %v", err)
	}
	if !res.Granted {
		t.Errorf("Claim(b) = %+v, want takeover of expired owner", res)
	}
	if owner, ok, _ := mgr.Owner("pkg/foo.go"); !ok || owner != "b" {
		t.Errorf("Owner() = %q, %v, want b", owner, ok)
	}
}

func TestReleaseAll(t *testing.T) {
	mgr, reg, _ := newTestManager(t, 5*time.Minute)
	heartbeat(t, reg, "a", "")
	heartbeat(t, reg, "b", "")

	for _, p := range []string{"x.go", "y.go"} {
		if _, err := mgr.Claim("a", p); err != nil {
			t.Fatalf("Claim(a, %s) error: %v", p, err)
		}
	}
	if _, err := mgr.Claim("b", "z.go"); err != nil {
		t.Fatalf("Claim(b) error: %v", err)
	}

	if err := mgr.ReleaseAll("a"); err != nil {
		t.Fatalf("ReleaseAll() error: %v", err)
	}

	claims, err := mgr.ListActive()
	if err != nil {
		t.Fatalf("ListActive() error: %v", err)
	}
	if len(claims) != 1 || claims[0].OwnerID != "b" {
		t.Errorf("claims = %+v, want only b's", claims)
	}
}

func TestListActiveHidesExpiredOwners(t *testing.T) {
	mgr, reg, clock := newTestManager(t, time.Minute)
	heartbeat(t, reg, "stale", "")
	if _, err := mgr.Claim("stale", "pkg/foo.go"); err != nil {
		t.Fatalf("Claim() error: %v", err)
	}

	clock.Advance(2 * time.Minute)

	claims, err := mgr.ListActive()
	if err != nil {
		t.Fatalf("ListActive() error: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("ListActive() = %+v, want empty once owner expired", claims)
	}
}

// TestConcurrentClaimSingleWinner races N sessions, each through its
// own store handle on the same database file, for one path. Exactly
// one claim may win; the store's write serialization is the only thing
// preventing a double grant.
func TestConcurrentClaimSingleWinner(t *testing.T) {
	const n = 8
	dbPath := filepath.Join(t.TempDir(), "coord.db")
	ttl := 5 * time.Minute

	// Register all contenders up front through one handle.
	setup, err := store.Open(dbPath, store.DefaultOptions())
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	reg := registry.New(setup, ttl)
	for i := 0; i < n; i++ {
		if err := reg.Heartbeat(fmt.Sprintf("s%d", i), registry.Info{}); err != nil {
			t.Fatalf("Heartbeat(s%d) error: %v", i, err)
		}
	}
	if err := setup.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	opts := store.DefaultOptions()
	opts.MaxAttempts = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted []string
		start   = make(chan struct{})
	)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			s, err := store.Open(dbPath, opts)
			if err != nil {
				errs <- err
				return
			}
			defer s.Close()

			<-start
			res, err := New(s, ttl).Claim(id, "contested/file.go")
			if err != nil {
				errs <- err
				return
			}
			if res.Granted {
				mu.Lock()
				granted = append(granted, id)
				mu.Unlock()
			}
		}(fmt.Sprintf("s%d", i))
	}

	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent claim error: %v", err)
	}

	if len(granted) != 1 {
		t.Fatalf("granted = %v (%d winners), want exactly 1", granted, len(granted))
	}

	verify, err := store.Open(dbPath, store.DefaultOptions())
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	defer verify.Close()
	owner, ok, err := New(verify, ttl).Owner("contested/file.go")
	if err != nil || !ok || owner != granted[0] {
		t.Errorf("Owner() = %q, %v, %v, want %q", owner, ok, err, granted[0])
	}
}
