// Package health probes backend adapters and aggregates liveness into a
// single status.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/nextcart/platform/internal/storage"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status is the point-in-time result of a health check. Never persisted.
type Status struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Collector probes a fixed set of backend adapters.
type Collector struct {
	probes  []storage.Pinger
	timeout time.Duration
}

// NewCollector creates a Collector over the given adapters. A non-positive
// timeout defaults to two seconds per probe.
func NewCollector(timeout time.Duration, probes ...storage.Pinger) *Collector {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Collector{probes: probes, timeout: timeout}
}

// Check probes every adapter concurrently. A failed or timed-out probe marks
// that backend unhealthy and the overall status degraded; the check itself
// never fails.
func (c *Collector) Check(ctx context.Context) Status {
	status := Status{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]string, len(c.probes)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, probe := range c.probes {
		wg.Add(1)
		go func(p storage.Pinger) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			result := StatusHealthy
			if err := p.Ping(probeCtx); err != nil {
				result = StatusUnhealthy
			}

			mu.Lock()
			status.Services[p.Name()] = result
			if result == StatusUnhealthy {
				status.Status = StatusDegraded
			}
			mu.Unlock()
		}(probe)
	}
	wg.Wait()

	return status
}
