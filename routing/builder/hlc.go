package builder

import (
	"fmt"
	"sort"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/routing"
)

// HLC builds routing tables for realtime tables ingested through high-level
// consumers. Segments are grouped by the consumer-group tag in their names; a
// server qualifies for a group only when it holds every segment of that group
// ONLINE, and a plan assigns whole groups to single servers. Plans enumerate
// the per-group candidates by modulo indexing, which realizes the candidate
// cross-product up to the plan cap.
type HLC struct{}

// NewHLC returns the high-level-consumer builder.
func NewHLC() *HLC { return &HLC{} }

// Compute implements Builder.
func (b *HLC) Compute(table string, ev *cluster.ExternalView, instanceConfigs []cluster.InstanceConfig) ([]*routing.Plan, error) {
	if ev == nil || len(ev.Segments) == 0 {
		return nil, nil
	}
	eligible := eligibleInstances(instanceConfigs)

	// Segments of the other consumer family (or with foreign names) are
	// skipped: a table ingested purely through low-level consumers yields
	// an empty HLC routing table, not a failure.
	groups := make(map[string][]string)
	for _, segment := range sortedSegments(ev) {
		name, ok := cluster.ParseHLCSegmentName(segment)
		if !ok {
			continue
		}
		groups[name.GroupID] = append(groups[name.GroupID], segment)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	groupIDs := make([]string, 0, len(groups))
	for id := range groups {
		groupIDs = append(groupIDs, id)
	}
	sort.Strings(groupIDs)

	// A group's candidates are the servers holding all of its segments.
	candidates := make(map[string][]string, len(groups))
	numPlans := 1
	for _, id := range groupIDs {
		segments := groups[id]
		servers := eligibleServersInState(ev, segments[0], cluster.SegmentOnline, eligible)
		for _, segment := range segments[1:] {
			servers = intersectSorted(servers, eligibleServersInState(ev, segment, cluster.SegmentOnline, eligible))
		}
		if len(servers) == 0 {
			return nil, fmt.Errorf("table %s: no eligible server holds all segments of consumer group %s", table, id)
		}
		candidates[id] = servers
		if len(servers) > numPlans {
			numPlans = len(servers)
		}
	}
	if numPlans > maxPlans {
		numPlans = maxPlans
	}

	plans := make([]*routing.Plan, 0, numPlans)
	for i := 0; i < numPlans; i++ {
		assignments := make(map[string][]string, len(groupIDs))
		for _, id := range groupIDs {
			server := candidates[id][i%len(candidates[id])]
			assignments[server] = append(assignments[server], groups[id]...)
		}
		plans = append(plans, routing.NewPlan(assignments))
	}
	return routing.DedupePlans(plans), nil
}
