package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/cluster/clustertest"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMediatorForwardsExternalViewChanges(t *testing.T) {
	ctx := context.Background()
	fake := clustertest.New()
	m := newTestManager(t, fake)

	v1 := testView("t_OFFLINE", 1, map[string]map[string]cluster.SegmentState{"s1": onlineOn("srvA")})
	fake.SetExternalView(v1)
	fake.SetInstanceConfig(icfg("srvA", true, 1))
	fake.SetInstanceConfig(icfg("srvB", true, 1))
	require.NoError(t, m.MarkTableOnline(ctx, "t_OFFLINE", v1, []cluster.InstanceConfig{icfg("srvA", true, 1)}))

	d := NewMediator(m, nil)
	defer d.Close()
	require.NoError(t, fake.Watch(ctx, d))

	fake.SetExternalView(testView("t_OFFLINE", 2, map[string]map[string]cluster.SegmentState{
		"s1": onlineOn("srvB"),
	}))
	fake.NotifyExternalView()

	waitFor(t, func() bool {
		plan, err := m.FindServers(ctx, Request{Table: "t_OFFLINE"})
		return err == nil && plan != nil && plan.Contains("srvB")
	})
}

func TestMediatorForwardsInstanceConfigChanges(t *testing.T) {
	ctx := context.Background()
	fake := clustertest.New()
	m := newTestManager(t, fake)

	v1 := testView("t_OFFLINE", 1, map[string]map[string]cluster.SegmentState{"s1": onlineOn("srvA", "srvB")})
	fake.SetExternalView(v1)
	fake.SetInstanceConfig(icfg("srvA", true, 1))
	fake.SetInstanceConfig(icfg("srvB", true, 1))
	require.NoError(t, m.MarkTableOnline(ctx, "t_OFFLINE", v1,
		[]cluster.InstanceConfig{icfg("srvA", true, 1), icfg("srvB", true, 1)}))

	d := NewMediator(m, nil)
	defer d.Close()
	require.NoError(t, fake.Watch(ctx, d))

	fake.SetInstanceConfig(icfg("srvA", false, 2))
	fake.NotifyInstanceConfig()

	waitFor(t, func() bool {
		plan, err := m.FindServers(ctx, Request{Table: "t_OFFLINE"})
		return err == nil && plan != nil && !plan.Contains("srvA")
	})
}

func TestMediatorCoalescesBursts(t *testing.T) {
	ctx := context.Background()
	fake := clustertest.New()
	m := newTestManager(t, fake)

	v1 := testView("t_OFFLINE", 1, map[string]map[string]cluster.SegmentState{"s1": onlineOn("srvA")})
	fake.SetExternalView(v1)
	fake.SetInstanceConfig(icfg("srvA", true, 1))
	require.NoError(t, m.MarkTableOnline(ctx, "t_OFFLINE", v1, []cluster.InstanceConfig{icfg("srvA", true, 1)}))

	d := NewMediator(m, nil)
	defer d.Close()

	const burst = 50
	for i := 0; i < burst; i++ {
		d.OnExternalViewChange()
	}
	time.Sleep(200 * time.Millisecond)

	// Every run issues exactly one stats batch; a coalesced burst must
	// collapse into far fewer runs than notifications.
	assert.Less(t, fake.StatsCalls, burst)
	assert.Positive(t, fake.StatsCalls)
}

func TestMediatorLiveInstanceChangeIsNoOp(t *testing.T) {
	fake := clustertest.New()
	m := newTestManager(t, fake)

	d := NewMediator(m, nil)
	defer d.Close()

	d.OnLiveInstanceChange()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fake.StatsCalls)
	assert.Zero(t, fake.ExternalViewCalls)
}

func TestMediatorCloseIsIdempotent(t *testing.T) {
	fake := clustertest.New()
	m := newTestManager(t, fake)

	d := NewMediator(m, nil)
	d.Close()
	d.Close()
	// Notifications after Close are dropped without panicking.
	d.OnExternalViewChange()
	d.OnInstanceConfigChange()
}
