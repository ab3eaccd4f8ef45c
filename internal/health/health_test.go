package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProbe struct {
	name string
	err  error
	wait time.Duration
}

func (p fakeProbe) Name() string { return p.name }

func (p fakeProbe) Ping(ctx context.Context) error {
	if p.wait > 0 {
		select {
		case <-time.After(p.wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func TestCheckAllHealthy(t *testing.T) {
	c := NewCollector(time.Second,
		fakeProbe{name: "documentStore"},
		fakeProbe{name: "cache"},
	)

	status := c.Check(context.Background())
	if status.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", status.Status)
	}
	for name, s := range status.Services {
		if s != StatusHealthy {
			t.Fatalf("service %s reported %s", name, s)
		}
	}
	if status.Timestamp.IsZero() {
		t.Fatal("timestamp must be set")
	}
}

func TestCheckDegradedOnFailure(t *testing.T) {
	c := NewCollector(time.Second,
		fakeProbe{name: "documentStore"},
		fakeProbe{name: "relationalStore", err: errors.New("connection refused")},
		fakeProbe{name: "cache"},
	)

	status := c.Check(context.Background())
	if status.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", status.Status)
	}
	if status.Services["relationalStore"] != StatusUnhealthy {
		t.Fatalf("failed backend must read unhealthy, got %s", status.Services["relationalStore"])
	}
	if status.Services["documentStore"] != StatusHealthy || status.Services["cache"] != StatusHealthy {
		t.Fatalf("healthy backends must stay healthy: %v", status.Services)
	}
}

func TestCheckTimesOutSlowProbe(t *testing.T) {
	c := NewCollector(20*time.Millisecond,
		fakeProbe{name: "cache"},
		fakeProbe{name: "searchIndex", wait: time.Second},
	)

	start := time.Now()
	status := c.Check(context.Background())
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("check must not wait for the slow probe, took %v", elapsed)
	}

	if status.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", status.Status)
	}
	if status.Services["searchIndex"] != StatusUnhealthy {
		t.Fatalf("timed-out backend must read unhealthy, got %s", status.Services["searchIndex"])
	}
	if status.Services["cache"] != StatusHealthy {
		t.Fatalf("fast backend must stay healthy, got %s", status.Services["cache"])
	}
}
