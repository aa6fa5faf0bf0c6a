package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/cluster"
)

func TestLLCEmptyInputs(t *testing.T) {
	b := NewLLC()

	plans, err := b.Compute("t_REALTIME", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, plans)

	// Pure-HLC segment names yield an empty LLC table, not a failure.
	ev := view("t_REALTIME", 1, map[string]map[string]cluster.SegmentState{
		"t__g1__0": online("srvA"),
	})
	plans, err = b.Compute("t_REALTIME", ev, enabled("srvA"))
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestLLCRoutesCompletedAndConsumingSegments(t *testing.T) {
	b := NewLLC()
	ev := view("t_REALTIME", 1, map[string]map[string]cluster.SegmentState{
		"t__0__0__1700": online("srvA", "srvB"),
		"t__0__1__1701": online("srvA", "srvB"),
		"t__0__2__1702": consuming("srvC"),
		"t__1__0__1700": online("srvB"),
	})

	plans, err := b.Compute("t_REALTIME", ev, enabled("srvA", "srvB", "srvC"))
	require.NoError(t, err)
	require.Len(t, plans, 2)

	for _, p := range plans {
		// Partition 0's consuming segment always goes to the consuming
		// replica.
		assert.Contains(t, p.SegmentsFor("srvC"), "t__0__2__1702")
		// Partition 1's single completed segment only lives on srvB.
		assert.Contains(t, p.SegmentsFor("srvB"), "t__1__0__1700")

		// Partition 0's completed segments travel together.
		a := p.SegmentsFor("srvA")
		if len(a) > 0 {
			assert.ElementsMatch(t, []string{"t__0__0__1700", "t__0__1__1701"}, a)
		}
	}
}

func TestLLCConsumingServerMustBeEligible(t *testing.T) {
	b := NewLLC()
	ev := view("t_REALTIME", 1, map[string]map[string]cluster.SegmentState{
		"t__0__0__1700": consuming("srvA"),
	})
	ics := []cluster.InstanceConfig{{Instance: "srvA", Enabled: false, Version: 1}}

	_, err := b.Compute("t_REALTIME", ev, ics)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no eligible consuming server")
}

func TestLLCRequiresSingleServerForCompletedSet(t *testing.T) {
	b := NewLLC()
	ev := view("t_REALTIME", 1, map[string]map[string]cluster.SegmentState{
		"t__0__0__1700": online("srvA"),
		"t__0__1__1701": online("srvB"),
	})

	_, err := b.Compute("t_REALTIME", ev, enabled("srvA", "srvB"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition 0")
}

func TestLLCRejectsTwoConsumingSegmentsInPartition(t *testing.T) {
	b := NewLLC()
	ev := view("t_REALTIME", 1, map[string]map[string]cluster.SegmentState{
		"t__0__1__1700": consuming("srvA"),
		"t__0__2__1701": consuming("srvA"),
	})

	_, err := b.Compute("t_REALTIME", ev, enabled("srvA"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "two consuming segments")
}
