package builder

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/cluster"
)

func TestOfflineEmptyInputs(t *testing.T) {
	b := NewOffline(rand.New(rand.NewSource(1)))

	plans, err := b.Compute("t_OFFLINE", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, plans)

	plans, err = b.Compute("t_OFFLINE", view("t_OFFLINE", 1, nil), enabled("srvA"))
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestOfflineCoversEverySegmentOnce(t *testing.T) {
	b := NewOffline(rand.New(rand.NewSource(1)))
	ev := view("t_OFFLINE", 1, map[string]map[string]cluster.SegmentState{
		"s1": online("srvA", "srvB"),
		"s2": online("srvA", "srvB"),
		"s3": online("srvB"),
		"s4": online("srvA", "srvB", "srvC"),
	})

	plans, err := b.Compute("t_OFFLINE", ev, enabled("srvA", "srvB", "srvC"))
	require.NoError(t, err)
	require.NotEmpty(t, plans)

	for _, p := range plans {
		seen := map[string]int{}
		for _, server := range p.ServerSet() {
			for _, segment := range p.SegmentsFor(server) {
				seen[segment]++
				assert.Contains(t, ev.Segments[segment], server)
			}
		}
		for segment := range ev.Segments {
			assert.Equal(t, 1, seen[segment], "segment %s must be assigned exactly once", segment)
		}
	}
}

func TestOfflineBalancesWithinPlan(t *testing.T) {
	b := NewOffline(rand.New(rand.NewSource(7)))
	segments := make(map[string]map[string]cluster.SegmentState, 10)
	for _, s := range []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9"} {
		segments[s] = online("srvA", "srvB")
	}
	plans, err := b.Compute("t_OFFLINE", view("t_OFFLINE", 1, segments), enabled("srvA", "srvB"))
	require.NoError(t, err)
	require.NotEmpty(t, plans)

	for _, p := range plans {
		assert.Len(t, p.SegmentsFor("srvA"), 5)
		assert.Len(t, p.SegmentsFor("srvB"), 5)
	}
}

func TestOfflineSkipsIneligibleServers(t *testing.T) {
	b := NewOffline(rand.New(rand.NewSource(1)))
	ev := view("t_OFFLINE", 1, map[string]map[string]cluster.SegmentState{
		"s1": online("srvA", "srvB", "srvC"),
		"s2": {"srvA": cluster.SegmentOnline, "srvB": cluster.SegmentError},
	})
	ics := []cluster.InstanceConfig{
		{Instance: "srvA", Enabled: true, Version: 1},
		{Instance: "srvB", Enabled: true, Version: 1},
		{Instance: "srvC", Enabled: true, ShuttingDown: true, Version: 1},
	}

	plans, err := b.Compute("t_OFFLINE", ev, ics)
	require.NoError(t, err)
	require.NotEmpty(t, plans)
	for _, p := range plans {
		assert.False(t, p.Contains("srvC"), "shutting-down server must not be routed")
		assert.Equal(t, []string{"s2"}, sliceIntersect(p.SegmentsFor("srvA"), []string{"s2"}),
			"s2 is only servable by srvA")
		assert.NotContains(t, p.SegmentsFor("srvB"), "s2")
	}
}

func TestOfflineRoutesPartiallyAvailableTable(t *testing.T) {
	b := NewOffline(rand.New(rand.NewSource(1)))
	ev := view("t_OFFLINE", 1, map[string]map[string]cluster.SegmentState{
		"s1": online("srvA"),
		"s2": {"srvB": cluster.SegmentOffline}, // nobody serves s2
	})

	plans, err := b.Compute("t_OFFLINE", ev, enabled("srvA", "srvB"))
	require.NoError(t, err)
	require.NotEmpty(t, plans)
	for _, p := range plans {
		assert.Equal(t, []string{"s1"}, p.SegmentsFor("srvA"))
		assert.False(t, p.Contains("srvB"))
	}
}

func TestOfflineDeterministicForSeed(t *testing.T) {
	ev := view("t_OFFLINE", 1, map[string]map[string]cluster.SegmentState{
		"s1": online("srvA", "srvB"),
		"s2": online("srvA", "srvB"),
		"s3": online("srvA", "srvB"),
	})
	ics := enabled("srvA", "srvB")

	first, err := NewOffline(rand.New(rand.NewSource(99))).Compute("t_OFFLINE", ev, ics)
	require.NoError(t, err)
	second, err := NewOffline(rand.New(rand.NewSource(99))).Compute("t_OFFLINE", ev, ics)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]))
	}
}

func sliceIntersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
