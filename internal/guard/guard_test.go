package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/licitaflow/stagegate/internal/domain"
)

func newTestGuard(limit int) (*Guard, *time.Time) {
	g := NewGuard(GuardConfig{RateLimitPerMinute: limit})
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	g.Now = func() time.Time { return now }
	return g, &now
}

func TestCheckRateLimit_WithinLimit(t *testing.T) {
	g, _ := newTestGuard(3)
	for i := 0; i < 3; i++ {
		if err := g.CheckRateLimit("Ana"); err != nil {
			t.Fatalf("call %d: unexpected error %v", i+1, err)
		}
	}
}

func TestCheckRateLimit_Exceeded(t *testing.T) {
	g, _ := newTestGuard(2)
	g.CheckRateLimit("Ana")
	g.CheckRateLimit("Ana")

	err := g.CheckRateLimit("Ana")
	if !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}

	// Other callers have their own window.
	if err := g.CheckRateLimit("Bruno"); err != nil {
		t.Errorf("Bruno: unexpected error %v", err)
	}
}

func TestCheckRateLimit_WindowResets(t *testing.T) {
	g, now := newTestGuard(1)
	if err := g.CheckRateLimit("Ana"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := g.CheckRateLimit("Ana"); err == nil {
		t.Fatal("expected second call in window to fail")
	}

	*now = now.Add(time.Minute)
	if err := g.CheckRateLimit("Ana"); err != nil {
		t.Errorf("after window: unexpected error %v", err)
	}
}

func TestCheckRateLimit_Disabled(t *testing.T) {
	g, _ := newTestGuard(0)
	for i := 0; i < 100; i++ {
		if err := g.CheckRateLimit("Ana"); err != nil {
			t.Fatalf("call %d: unexpected error %v", i+1, err)
		}
	}
}

func TestReset(t *testing.T) {
	g, _ := newTestGuard(1)
	g.CheckRateLimit("Ana")
	g.Reset("Ana")
	if err := g.CheckRateLimit("Ana"); err != nil {
		t.Errorf("after reset: unexpected error %v", err)
	}
}

func TestCheckRateLimit_DropsExpiredBuckets(t *testing.T) {
	g, now := newTestGuard(5)
	for _, key := range []string{"a", "b", "c"} {
		if err := g.CheckRateLimit(key); err != nil {
			t.Fatalf("%s: %v", key, err)
		}
	}

	*now = now.Add(61 * time.Second)
	if err := g.CheckRateLimit("d"); err != nil {
		t.Fatalf("d: %v", err)
	}
	if len(g.rateCounts) != 1 {
		t.Errorf("expected only the fresh bucket to remain, got %d", len(g.rateCounts))
	}
	if _, ok := g.rateCounts["d"]; !ok {
		t.Error("bucket for d missing")
	}
}
