package broker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// HealthStatus is the rollup state of one check or of the whole broker.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	Healthy         HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is one subsystem verdict.
type HealthCheck struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Detail    string       `json:"detail,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

// HealthReport aggregates the broker's checks; Overall is the worst check.
type HealthReport struct {
	Overall   HealthStatus  `json:"overall"`
	Checks    []HealthCheck `json:"checks"`
	Generated time.Time     `json:"generated"`
}

// Health thresholds. Rebuild ratios only apply once enough rebuilds ran to
// be meaningful; the coordinator check reacts to failed fetches, harder once
// no fetch has succeeded for a while.
const (
	healthCacheTTL         = 2 * time.Second
	rebuildMinSamples      = 5
	rebuildDegradedRatio   = 0.1
	rebuildUnhealthyRatio  = 0.5
	coordinatorStaleCutoff = 10 * time.Minute
)

type healthState struct {
	mu     sync.Mutex
	cached HealthReport
}

// Health evaluates the broker's checks, serving a cached report within the
// TTL. With health disabled in the config the report is empty with Overall
// unknown.
func (b *Broker) Health(ctx context.Context) HealthReport {
	if !b.cfg.HealthEnabled {
		return HealthReport{Overall: HealthUnknown}
	}

	b.health.mu.Lock()
	defer b.health.mu.Unlock()
	if b.health.cached.Generated.Add(healthCacheTTL).After(time.Now()) {
		return b.health.cached
	}

	now := time.Now()
	checks := []HealthCheck{
		b.routingHealth(now),
		b.coordinatorHealth(now),
		b.metricsHealth(ctx, now),
	}
	overall := Healthy
	for _, c := range checks {
		switch c.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall != HealthUnhealthy {
				overall = HealthDegraded
			}
		}
	}
	b.health.cached = HealthReport{Overall: overall, Checks: checks, Generated: now}
	return b.health.cached
}

// routingHealth judges the rebuild failure ratio.
func (b *Broker) routingHealth(now time.Time) HealthCheck {
	check := HealthCheck{Name: "routing", Status: Healthy, CheckedAt: now}
	total, failed := b.manager.Rebuilds()
	if total < rebuildMinSamples {
		return check
	}
	ratio := float64(failed) / float64(total)
	switch {
	case ratio >= rebuildUnhealthyRatio:
		check.Status = HealthUnhealthy
	case ratio >= rebuildDegradedRatio:
		check.Status = HealthDegraded
	default:
		return check
	}
	check.Detail = fmt.Sprintf("%d of %d rebuilds failed", failed, total)
	return check
}

// coordinatorHealth judges the staleness of the last successful coordinator
// fetch. A broker that has never fetched reports unknown; one whose latest
// attempt failed is degraded, and unhealthy once no success has been seen
// within the stale cutoff.
func (b *Broker) coordinatorHealth(now time.Time) HealthCheck {
	check := HealthCheck{Name: "coordinator", Status: Healthy, CheckedAt: now}
	lastOK, lastErr := b.manager.CoordinatorFetchTimes()
	switch {
	case lastOK.IsZero() && lastErr.IsZero():
		check.Status = HealthUnknown
		check.Detail = "no coordinator fetch yet"
	case lastErr.After(lastOK):
		if lastOK.IsZero() || now.Sub(lastOK) > coordinatorStaleCutoff {
			check.Status = HealthUnhealthy
		} else {
			check.Status = HealthDegraded
		}
		check.Detail = fmt.Sprintf("last fetch failed %s ago", now.Sub(lastErr).Round(time.Second))
	}
	return check
}

// metricsHealth surfaces provider registration problems.
func (b *Broker) metricsHealth(ctx context.Context, now time.Time) HealthCheck {
	check := HealthCheck{Name: "metrics", Status: Healthy, CheckedAt: now}
	if err := b.provider.Health(ctx); err != nil {
		check.Status = HealthDegraded
		check.Detail = err.Error()
	}
	return check
}
