package scheduler

import (
	"context"
	"testing"
	"time"

	"NewsDigest/internal/logging"
)

func TestCronSchedulerAdd(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(time.UTC, logging.Discard())

	if err := s.Add("0 5 * * *", func() {}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := s.Add("0 7 * * *", func() {}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if s.Entries() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Entries())
	}

	if err := s.Add("not a spec", func() {}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if err := s.Add("0 5 * * *", nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestCronSchedulerRunsAndStops(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := NewCronScheduler(loc, logging.Discard())

	fired := make(chan struct{}, 1)
	if err := s.Add("@every 1s", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	s.Start()
	s.Start()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
}
