package broker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/cluster/clustertest"
	"github.com/tesseradb/tessera/routing"
)

func offlineView(version int64) *cluster.ExternalView {
	return &cluster.ExternalView{
		TableName: "events_OFFLINE",
		Version:   version,
		Segments: map[string]map[string]cluster.SegmentState{
			"s1": {"srvA": cluster.SegmentOnline},
		},
	}
}

func enabledICs() []cluster.InstanceConfig {
	return []cluster.InstanceConfig{{Instance: "srvA", Enabled: true, Version: 1}}
}

func newTestBroker(t *testing.T, cfg Config, fake *clustertest.Fake) *Broker {
	t.Helper()
	cfg.Seed = 42
	b, err := New(cfg, fake, nil)
	require.NoError(t, err)
	return b
}

func TestBrokerRequiresClient(t *testing.T) {
	_, err := New(Defaults(), nil, nil)
	require.Error(t, err)
}

func TestBrokerServesQueriesEndToEnd(t *testing.T) {
	ctx := context.Background()
	fake := clustertest.New()
	b := newTestBroker(t, Defaults(), fake)
	defer func() { _ = b.Stop() }()

	require.NoError(t, b.MarkTableOnline(ctx, "events_OFFLINE", offlineView(1), enabledICs()))
	assert.True(t, b.RoutingTableExists("events_OFFLINE"))

	plan, err := b.FindServers(ctx, routing.Request{Table: "events_OFFLINE"})
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, []string{"srvA"}, plan.ServerSet())

	dump, err := b.SnapshotJSON("")
	require.NoError(t, err)
	assert.Contains(t, dump, "events_OFFLINE")

	snap := b.Snapshot()
	assert.Equal(t, uint64(1), snap.Rebuilds)
	assert.Zero(t, snap.RebuildFailures)
	require.NotNil(t, snap.Events)
	assert.Positive(t, snap.Events.Published, "rebuild must publish an event")
	require.NotEmpty(t, snap.RecentEvents)
	assert.Equal(t, "rebuild_succeeded", snap.RecentEvents[0].Type)
	assert.Equal(t, "events_OFFLINE", snap.RecentEvents[0].Table)

	b.RemoveTable(ctx, "events_OFFLINE")
	assert.False(t, b.RoutingTableExists("events_OFFLINE"))
}

func TestBrokerMetricsHandlerByBackend(t *testing.T) {
	fake := clustertest.New()

	prom := newTestBroker(t, Defaults(), fake)
	assert.NotNil(t, prom.MetricsHandler(), "prometheus backend exposes a scrape handler")

	cfg := Defaults()
	cfg.MetricsBackend = "noop"
	noop := newTestBroker(t, cfg, fake)
	assert.Nil(t, noop.MetricsHandler())
}

func TestBrokerHealthDisabled(t *testing.T) {
	fake := clustertest.New()
	cfg := Defaults()
	cfg.HealthEnabled = false
	b := newTestBroker(t, cfg, fake)

	report := b.Health(context.Background())
	assert.Equal(t, HealthUnknown, report.Overall)
	assert.Empty(t, report.Checks)
}

func TestBrokerRoutingPolicySelectsLLC(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "routing-policy.yaml")
	require.NoError(t, os.WriteFile(policyPath, []byte("tables:\n  events:\n    use_llc: true\n"), 0o644))

	fake := clustertest.New()
	cfg := Defaults()
	cfg.RoutingPolicyPath = policyPath
	b := newTestBroker(t, cfg, fake)
	defer func() { _ = b.Stop() }()

	ev := &cluster.ExternalView{
		TableName: "events_REALTIME",
		Version:   1,
		Segments: map[string]map[string]cluster.SegmentState{
			"events__g1__0":      {"srvHLC": cluster.SegmentOnline},
			"events__0__0__1700": {"srvLLC": cluster.SegmentOnline},
		},
	}
	ics := []cluster.InstanceConfig{
		{Instance: "srvHLC", Enabled: true, Version: 1},
		{Instance: "srvLLC", Enabled: true, Version: 1},
	}
	require.NoError(t, b.MarkTableOnline(ctx, "events_REALTIME", ev, ics))

	plan, err := b.FindServers(ctx, routing.Request{Table: "events_REALTIME"})
	require.NoError(t, err)
	assert.Equal(t, []string{"srvLLC"}, plan.ServerSet(), "policy file must steer the table to LLC")
}

func TestBrokerPolicyHotReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "routing-policy.yaml")
	require.NoError(t, os.WriteFile(policyPath, []byte("tables:\n  events:\n    use_llc: false\n"), 0o644))

	fake := clustertest.New()
	cfg := Defaults()
	cfg.RoutingPolicyPath = policyPath
	b := newTestBroker(t, cfg, fake)
	require.NoError(t, b.Start(ctx))
	defer func() { _ = b.Stop() }()

	ev := &cluster.ExternalView{
		TableName: "events_REALTIME",
		Version:   1,
		Segments: map[string]map[string]cluster.SegmentState{
			"events__g1__0":      {"srvHLC": cluster.SegmentOnline},
			"events__0__0__1700": {"srvLLC": cluster.SegmentOnline},
		},
	}
	ics := []cluster.InstanceConfig{
		{Instance: "srvHLC", Enabled: true, Version: 1},
		{Instance: "srvLLC", Enabled: true, Version: 1},
	}
	require.NoError(t, b.MarkTableOnline(ctx, "events_REALTIME", ev, ics))

	plan, err := b.FindServers(ctx, routing.Request{Table: "events_REALTIME"})
	require.NoError(t, err)
	require.Equal(t, []string{"srvHLC"}, plan.ServerSet())

	require.NoError(t, os.WriteFile(policyPath, []byte("tables:\n  events:\n    use_llc: true\n"), 0o644))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		plan, err = b.FindServers(ctx, routing.Request{Table: "events_REALTIME"})
		require.NoError(t, err)
		if plan.Contains("srvLLC") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("policy reload did not flip the table to LLC")
}

func TestBrokerStartIsSingleShot(t *testing.T) {
	fake := clustertest.New()
	b := newTestBroker(t, Defaults(), fake)
	ctx := context.Background()
	require.NoError(t, b.Start(ctx))
	defer func() { _ = b.Stop() }()
	require.Error(t, b.Start(ctx))
}

func TestBrokerReactsToCoordinatorNotifications(t *testing.T) {
	ctx := context.Background()
	fake := clustertest.New()
	b := newTestBroker(t, Defaults(), fake)
	require.NoError(t, b.Start(ctx))
	defer func() { _ = b.Stop() }()

	v1 := offlineView(1)
	fake.SetExternalView(v1)
	fake.SetInstanceConfig(cluster.InstanceConfig{Instance: "srvA", Enabled: true, Version: 1})
	fake.SetInstanceConfig(cluster.InstanceConfig{Instance: "srvB", Enabled: true, Version: 1})
	require.NoError(t, b.MarkTableOnline(ctx, "events_OFFLINE", v1, enabledICs()))

	v2 := offlineView(2)
	v2.Segments = map[string]map[string]cluster.SegmentState{"s1": {"srvB": cluster.SegmentOnline}}
	fake.SetExternalView(v2)
	fake.NotifyExternalView()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		plan, err := b.FindServers(ctx, routing.Request{Table: "events_OFFLINE"})
		require.NoError(t, err)
		if plan != nil && plan.Contains("srvB") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("notification did not trigger a rebuild")
}
