package builder

import (
	"math/rand"
	"sync"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/routing"
)

// Offline builds balanced-random routing tables for offline tables. Each plan
// covers every routable segment exactly once, assigning it to the eligible
// ONLINE server that currently carries the fewest segments within that plan;
// ties break randomly so the plan set spreads load when the query path picks
// plans uniformly.
//
// Segments with no eligible ONLINE replica are left out of the plans: a
// partially unavailable table still routes the segments it can.
type Offline struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewOffline returns an offline builder randomized by rng. The builder owns
// rng after the call.
func NewOffline(rng *rand.Rand) *Offline {
	return &Offline{rng: rng}
}

// Compute implements Builder.
func (b *Offline) Compute(table string, ev *cluster.ExternalView, instanceConfigs []cluster.InstanceConfig) ([]*routing.Plan, error) {
	if ev == nil || len(ev.Segments) == 0 {
		return nil, nil
	}
	eligible := eligibleInstances(instanceConfigs)

	segments := sortedSegments(ev)
	candidates := make(map[string][]string, len(segments))
	routable := segments[:0]
	for _, segment := range segments {
		servers := eligibleServersInState(ev, segment, cluster.SegmentOnline, eligible)
		if len(servers) == 0 {
			continue
		}
		candidates[segment] = servers
		routable = append(routable, segment)
	}
	if len(routable) == 0 {
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	plans := make([]*routing.Plan, 0, maxPlans)
	for i := 0; i < maxPlans; i++ {
		counts := make(map[string]int, eligible.Size())
		assignments := make(map[string][]string, len(counts))
		for _, segment := range routable {
			server := b.pickLeastLoaded(candidates[segment], counts)
			counts[server]++
			assignments[server] = append(assignments[server], segment)
		}
		plans = append(plans, routing.NewPlan(assignments))
	}
	return routing.DedupePlans(plans), nil
}

// pickLeastLoaded returns the candidate with the lowest in-plan segment
// count, breaking ties uniformly at random.
func (b *Offline) pickLeastLoaded(servers []string, counts map[string]int) string {
	best := servers[:0:0]
	bestCount := -1
	for _, server := range servers {
		c := counts[server]
		switch {
		case bestCount < 0 || c < bestCount:
			bestCount = c
			best = append(best[:0], server)
		case c == bestCount:
			best = append(best, server)
		}
	}
	if len(best) == 1 {
		return best[0]
	}
	return best[b.rng.Intn(len(best))]
}
