package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/cluster"
)

func TestHLCEmptyInputs(t *testing.T) {
	b := NewHLC()

	plans, err := b.Compute("t_REALTIME", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, plans)

	// Pure-LLC segment names yield an empty HLC table, not a failure.
	ev := view("t_REALTIME", 1, map[string]map[string]cluster.SegmentState{
		"t__0__0__1700": online("srvA"),
	})
	plans, err = b.Compute("t_REALTIME", ev, enabled("srvA"))
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestHLCAssignsWholeGroupsToSingleServers(t *testing.T) {
	b := NewHLC()
	ev := view("t_REALTIME", 1, map[string]map[string]cluster.SegmentState{
		"t__g1__0": online("srvA", "srvB"),
		"t__g1__1": online("srvA", "srvB"),
		"t__g2__0": online("srvC"),
	})

	plans, err := b.Compute("t_REALTIME", ev, enabled("srvA", "srvB", "srvC"))
	require.NoError(t, err)
	require.Len(t, plans, 2) // widest candidate list is g1's two servers

	for _, p := range plans {
		g2 := p.SegmentsFor("srvC")
		assert.Equal(t, []string{"t__g2__0"}, g2)

		// g1 lands wholly on srvA or wholly on srvB.
		a, bSegs := p.SegmentsFor("srvA"), p.SegmentsFor("srvB")
		if len(a) > 0 {
			assert.Equal(t, []string{"t__g1__0", "t__g1__1"}, a)
			assert.Empty(t, bSegs)
		} else {
			assert.Equal(t, []string{"t__g1__0", "t__g1__1"}, bSegs)
		}
	}
	assert.False(t, plans[0].Equal(plans[1]))
}

func TestHLCRequiresServerHoldingAllGroupSegments(t *testing.T) {
	b := NewHLC()
	// No single server holds both g1 segments ONLINE.
	ev := view("t_REALTIME", 1, map[string]map[string]cluster.SegmentState{
		"t__g1__0": online("srvA"),
		"t__g1__1": online("srvB"),
	})

	_, err := b.Compute("t_REALTIME", ev, enabled("srvA", "srvB"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "g1")
}

func TestHLCIgnoresIneligibleServers(t *testing.T) {
	b := NewHLC()
	ev := view("t_REALTIME", 1, map[string]map[string]cluster.SegmentState{
		"t__g1__0": online("srvA", "srvB"),
	})
	ics := []cluster.InstanceConfig{
		{Instance: "srvA", Enabled: false, Version: 1},
		{Instance: "srvB", Enabled: true, Version: 1},
	}

	plans, err := b.Compute("t_REALTIME", ev, ics)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []string{"srvB"}, plans[0].ServerSet())
}
