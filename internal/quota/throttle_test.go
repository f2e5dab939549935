package quota

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestThrottle(limit int) *Throttle {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewThrottle(NewMemCounter(), limit, logger)
}

func TestCheckAndIncrementStopsAtLimit(t *testing.T) {
	th := newTestThrottle(3)
	ctx := context.Background()
	day := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		allowed, err := th.CheckAndIncrement(ctx, "guest-1", day)
		if err != nil {
			t.Fatalf("CheckAndIncrement #%d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("CheckAndIncrement #%d = false, want true", i+1)
		}
	}

	// Fourth same-day attempt is rejected and does not increment.
	allowed, err := th.CheckAndIncrement(ctx, "guest-1", day)
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("CheckAndIncrement over limit = true, want false")
	}

	// Still rejected: the denied attempt must not have consumed anything.
	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day); allowed {
		t.Error("denied attempt incremented the counter")
	}
}

func TestQuotaResetsOnNewDay(t *testing.T) {
	th := newTestThrottle(1)
	ctx := context.Background()
	day1 := time.Date(2026, 8, 31, 23, 30, 0, 0, time.UTC)
	day2 := day1.Add(time.Hour) // crosses midnight UTC

	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day1); !allowed {
		t.Fatal("first action of day 1 denied")
	}
	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day1); allowed {
		t.Fatal("second action of day 1 allowed over limit")
	}
	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day2); !allowed {
		t.Error("first action of day 2 denied; counter did not reset")
	}
}

func TestRefundRestoresSlot(t *testing.T) {
	th := newTestThrottle(2)
	ctx := context.Background()
	day := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day); !allowed {
		t.Fatal("first check denied")
	}
	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day); !allowed {
		t.Fatal("second check denied")
	}
	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day); allowed {
		t.Fatal("third check allowed over limit")
	}

	if err := th.Refund(ctx, "guest-1", day); err != nil {
		t.Fatal(err)
	}
	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day); !allowed {
		t.Error("check after refund denied; slot was not returned")
	}
}

func TestRefundFloorsAtZero(t *testing.T) {
	th := newTestThrottle(2)
	ctx := context.Background()
	day := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	// Refund with nothing reserved must not create a negative balance.
	if err := th.Refund(ctx, "guest-1", day); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day); !allowed {
			t.Fatalf("check #%d denied after no-op refund", i+1)
		}
	}
	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day); allowed {
		t.Error("limit not enforced after floor refund; count went negative")
	}
}

func TestQuotaIsPerUser(t *testing.T) {
	th := newTestThrottle(1)
	ctx := context.Background()
	day := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	if allowed, _ := th.CheckAndIncrement(ctx, "guest-1", day); !allowed {
		t.Fatal("guest-1 first action denied")
	}
	if allowed, _ := th.CheckAndIncrement(ctx, "guest-2", day); !allowed {
		t.Error("guest-2 blocked by guest-1's usage")
	}
}
