package builder

import (
	"fmt"
	"sort"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/routing"
)

// LLC builds routing tables for realtime tables ingested through low-level
// (per-partition) consumers. Each stream partition is a sequence of completed
// segments plus at most one segment still being consumed. A plan sends all of
// a partition's completed segments to one server that holds every one of them
// ONLINE, and the consuming segment to a server reporting it CONSUMING.
type LLC struct{}

// NewLLC returns the low-level-consumer builder.
func NewLLC() *LLC { return &LLC{} }

type llcPartition struct {
	completed []string // sorted by sequence
	consuming string   // empty when the partition has no open segment
}

// Compute implements Builder.
func (b *LLC) Compute(table string, ev *cluster.ExternalView, instanceConfigs []cluster.InstanceConfig) ([]*routing.Plan, error) {
	if ev == nil || len(ev.Segments) == 0 {
		return nil, nil
	}
	eligible := eligibleInstances(instanceConfigs)

	partitions, err := b.partitionSegments(table, ev)
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return nil, nil
	}

	partitionIDs := make([]int, 0, len(partitions))
	for id := range partitions {
		partitionIDs = append(partitionIDs, id)
	}
	sort.Ints(partitionIDs)

	completedCandidates := make(map[int][]string, len(partitions))
	consumingCandidates := make(map[int][]string, len(partitions))
	numPlans := 1
	for _, id := range partitionIDs {
		p := partitions[id]
		if len(p.completed) > 0 {
			servers := eligibleServersInState(ev, p.completed[0], cluster.SegmentOnline, eligible)
			for _, segment := range p.completed[1:] {
				servers = intersectSorted(servers, eligibleServersInState(ev, segment, cluster.SegmentOnline, eligible))
			}
			if len(servers) == 0 {
				return nil, fmt.Errorf("table %s: no eligible server holds all completed segments of partition %d", table, id)
			}
			completedCandidates[id] = servers
			if len(servers) > numPlans {
				numPlans = len(servers)
			}
		}
		if p.consuming != "" {
			servers := eligibleServersInState(ev, p.consuming, cluster.SegmentConsuming, eligible)
			if len(servers) == 0 {
				return nil, fmt.Errorf("table %s: no eligible consuming server for segment %s", table, p.consuming)
			}
			consumingCandidates[id] = servers
			if len(servers) > numPlans {
				numPlans = len(servers)
			}
		}
	}
	if numPlans > maxPlans {
		numPlans = maxPlans
	}

	plans := make([]*routing.Plan, 0, numPlans)
	for i := 0; i < numPlans; i++ {
		assignments := make(map[string][]string)
		for _, id := range partitionIDs {
			p := partitions[id]
			if len(p.completed) > 0 {
				servers := completedCandidates[id]
				server := servers[i%len(servers)]
				assignments[server] = append(assignments[server], p.completed...)
			}
			if p.consuming != "" {
				servers := consumingCandidates[id]
				server := servers[i%len(servers)]
				assignments[server] = append(assignments[server], p.consuming)
			}
		}
		plans = append(plans, routing.NewPlan(assignments))
	}
	return routing.DedupePlans(plans), nil
}

// partitionSegments splits the view's segments into per-partition sequences.
// A segment with any ONLINE replica counts as completed; otherwise a replica
// in CONSUMING marks it as the partition's open segment. Segments exposing
// neither state (errored or dropped everywhere) are skipped.
func (b *LLC) partitionSegments(table string, ev *cluster.ExternalView) (map[int]*llcPartition, error) {
	type sequenced struct {
		segment  string
		sequence int
	}
	completed := make(map[int][]sequenced)
	partitions := make(map[int]*llcPartition)

	// Non-LLC segment names (the high-level consumer family) are skipped;
	// a pure-HLC table yields an empty LLC routing table, not a failure.
	for _, segment := range sortedSegments(ev) {
		name, ok := cluster.ParseLLCSegmentName(segment)
		if !ok {
			continue
		}
		p := partitions[name.Partition]
		if p == nil {
			p = &llcPartition{}
			partitions[name.Partition] = p
		}
		switch {
		case ev.HasReplicaInState(segment, cluster.SegmentOnline):
			completed[name.Partition] = append(completed[name.Partition], sequenced{segment, name.Sequence})
		case ev.HasReplicaInState(segment, cluster.SegmentConsuming):
			if p.consuming != "" {
				return nil, fmt.Errorf("table %s: partition %d has two consuming segments (%s, %s)", table, name.Partition, p.consuming, segment)
			}
			p.consuming = segment
		}
	}

	for id, segs := range completed {
		sort.Slice(segs, func(i, j int) bool { return segs[i].sequence < segs[j].sequence })
		for _, s := range segs {
			partitions[id].completed = append(partitions[id].completed, s.segment)
		}
	}
	for id, p := range partitions {
		if len(p.completed) == 0 && p.consuming == "" {
			delete(partitions, id)
		}
	}
	return partitions, nil
}
