// Package builder contains the routing table builders. Each builder turns an
// external view plus the instance-config registry into a list of equivalent
// routing plans; the manager picks the builder by table type.
package builder

import (
	"sort"

	"github.com/hashicorp/go-set/v3"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/routing"
)

// maxPlans caps the number of equivalent plans a builder emits.
const maxPlans = 10

// Builder computes routing plans for one table. Builders run entirely in
// memory and never fail on empty input — an empty external view yields an
// empty plan list.
type Builder interface {
	Compute(table string, ev *cluster.ExternalView, instanceConfigs []cluster.InstanceConfig) ([]*routing.Plan, error)
}

// eligibleInstances collects the instances allowed to serve traffic.
func eligibleInstances(instanceConfigs []cluster.InstanceConfig) *set.Set[string] {
	eligible := set.New[string](len(instanceConfigs))
	for _, ic := range instanceConfigs {
		if ic.CanServe() {
			eligible.Insert(ic.Instance)
		}
	}
	return eligible
}

// sortedSegments returns the external view's segment IDs in sorted order so
// builds are deterministic.
func sortedSegments(ev *cluster.ExternalView) []string {
	segments := make([]string, 0, len(ev.Segments))
	for segment := range ev.Segments {
		segments = append(segments, segment)
	}
	sort.Strings(segments)
	return segments
}

// eligibleServersInState returns the sorted eligible servers hosting segment
// in the given state.
func eligibleServersInState(ev *cluster.ExternalView, segment string, state cluster.SegmentState, eligible *set.Set[string]) []string {
	var out []string
	for _, server := range ev.ServersInState(segment, state) {
		if eligible.Contains(server) {
			out = append(out, server)
		}
	}
	sort.Strings(out)
	return out
}

// intersectSorted intersects two sorted string slices.
func intersectSorted(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
