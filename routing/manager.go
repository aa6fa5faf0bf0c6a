package routing

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-set/v3"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/routing/builder"
	"github.com/tesseradb/tessera/routing/timeboundary"
	"github.com/tesseradb/tessera/telemetry/correlation"
	"github.com/tesseradb/tessera/telemetry/events"
	"github.com/tesseradb/tessera/telemetry/logging"
	"github.com/tesseradb/tessera/telemetry/metrics"
)

// invalidVersion is the external-view version sentinel that forces the next
// change observation to rebuild the table.
const invalidVersion int64 = -1

// Options configures a Manager. Client is required; every other field has a
// working default.
type Options struct {
	Client       cluster.Client
	Selector     Selector
	TimeBoundary *timeboundary.Service
	Logger       logging.Logger
	Metrics      metrics.Provider
	Events       *events.Feed
	// Seed randomizes plan construction and selection; 0 seeds from the
	// clock.
	Seed int64
}

// Manager is the broker's routing hub. It owns the published routing plans,
// rebuilds them when the coordinator signals change, and answers the query
// path's FindServers.
//
// Concurrency: query threads call FindServers concurrently with change
// processing. Published plan lists are immutable and swapped whole under
// plansMu, so a reader sees either the pre-rebuild or the post-rebuild
// routing table of a given build, never a mixture. All version and
// instance-config caches live behind stateMu and are touched only by
// change-processing code paths.
type Manager struct {
	client   cluster.Client
	selector Selector
	boundary *timeboundary.Service
	log      logging.Logger
	feed     *events.Feed

	offlineBuilder builder.Builder
	hlcBuilder     builder.Builder
	llcBuilder     builder.Builder

	plansMu      sync.RWMutex
	offlinePlans map[string][]*Plan
	hlcPlans     map[string][]*Plan
	llcPlans     map[string][]*Plan

	stateMu          sync.Mutex
	lastEVVersion    map[string]int64
	lastICByTable    map[string]map[string]cluster.InstanceConfig
	lastICByInstance map[string]cluster.InstanceConfig
	instanceTables   map[string]*set.Set[string]

	rngMu sync.Mutex
	rng   *rand.Rand

	closed atomic.Bool

	host     string
	brokerID string

	mQueries         metrics.Counter // labels: table, consumer
	mRebuildFailures metrics.Counter // labels: table
	newRebuildTimer  func() metrics.Timer
	mTables          metrics.Gauge // labels: type

	rebuilds        atomic.Uint64
	rebuildFailures atomic.Uint64

	// Unix nanos of the last coordinator call that succeeded or failed;
	// zero until the first attempt. Feeds the broker's coordinator health
	// check.
	lastFetchOK  atomic.Int64
	lastFetchErr atomic.Int64
}

// NewManager creates a routing manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("routing: coordinator client is required")
	}
	if opts.Selector == nil {
		opts.Selector = NewDefaultSelector()
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoopProvider()
	}
	if opts.TimeBoundary == nil {
		opts.TimeBoundary = timeboundary.New(opts.Client.PropertyStore(), opts.Logger, "")
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	host, _ := os.Hostname()

	m := &Manager{
		client:           opts.Client,
		selector:         opts.Selector,
		boundary:         opts.TimeBoundary,
		log:              opts.Logger,
		feed:             opts.Events,
		offlineBuilder:   builder.NewOffline(rand.New(rand.NewSource(seed))),
		hlcBuilder:       builder.NewHLC(),
		llcBuilder:       builder.NewLLC(),
		offlinePlans:     make(map[string][]*Plan),
		hlcPlans:         make(map[string][]*Plan),
		llcPlans:         make(map[string][]*Plan),
		lastEVVersion:    make(map[string]int64),
		lastICByTable:    make(map[string]map[string]cluster.InstanceConfig),
		lastICByInstance: make(map[string]cluster.InstanceConfig),
		instanceTables:   make(map[string]*set.Set[string]),
		rng:              rand.New(rand.NewSource(seed + 1)),
		host:             host,
		brokerID:         uuid.NewString(),
	}

	m.mQueries = opts.Metrics.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "tessera", Subsystem: "routing", Name: "queries_total",
		Help: "Routing queries served, by table and consumer type", Labels: []string{"table", "consumer"},
	}})
	m.mRebuildFailures = opts.Metrics.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "tessera", Subsystem: "routing", Name: "rebuild_failures_total",
		Help: "Routing table rebuilds that failed", Labels: []string{"table"},
	}})
	m.newRebuildTimer = opts.Metrics.NewTimer(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "tessera", Subsystem: "routing", Name: "rebuild_seconds",
		Help: "Routing table rebuild duration", Labels: []string{"table"},
	}})
	m.mTables = opts.Metrics.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "tessera", Subsystem: "routing", Name: "tables",
		Help: "Tables with published routing plans, by type", Labels: []string{"type"},
	}})
	return m, nil
}

// Close marks the manager shut down. Subsequent change processing becomes a
// no-op; the query path keeps serving the last published plans.
func (m *Manager) Close() { m.closed.Store(true) }

// Rebuilds returns the total and failed rebuild counts.
func (m *Manager) Rebuilds() (total, failed uint64) {
	return m.rebuilds.Load(), m.rebuildFailures.Load()
}

// CoordinatorFetchTimes reports when a coordinator call last succeeded and
// last failed; zero times mean no such attempt yet.
func (m *Manager) CoordinatorFetchTimes() (lastOK, lastErr time.Time) {
	if ns := m.lastFetchOK.Load(); ns != 0 {
		lastOK = time.Unix(0, ns)
	}
	if ns := m.lastFetchErr.Load(); ns != 0 {
		lastErr = time.Unix(0, ns)
	}
	return lastOK, lastErr
}

func (m *Manager) fetchSucceeded() { m.lastFetchOK.Store(time.Now().UnixNano()) }
func (m *Manager) fetchFailed()    { m.lastFetchErr.Store(time.Now().UnixNano()) }

// FindServers resolves a query request to one randomly chosen routing plan.
// A table without plans yields (nil, nil): the empty mapping.
func (m *Manager) FindServers(ctx context.Context, req Request) (*Plan, error) {
	forceHLC, forceLLC, err := parseOptions(req.Options)
	if err != nil {
		return nil, err
	}

	switch cluster.TypeOfTable(req.Table) {
	case cluster.TableTypeOffline:
		plans := m.publishedPlans(m.offlinePlans, req.Table)
		if len(plans) == 0 {
			return nil, nil
		}
		m.mQueries.Inc(1, req.Table, "offline")
		return m.pick(plans), nil

	case cluster.TableTypeRealtime:
		hlc := m.publishedPlans(m.hlcPlans, req.Table)
		llc := m.publishedPlans(m.llcPlans, req.Table)
		var plans []*Plan
		var consumer string
		switch {
		case len(hlc) > 0 && len(llc) > 0:
			useLLC := forceLLC || (!forceHLC && m.selector.ShouldUseLLC(req.Table))
			if useLLC {
				plans, consumer = llc, "llc"
			} else {
				plans, consumer = hlc, "hlc"
			}
		case len(hlc) > 0:
			if forceLLC {
				return nil, fmt.Errorf("%w: table %s has no LLC plans", ErrUnsatisfiableOption, req.Table)
			}
			plans, consumer = hlc, "hlc"
		case len(llc) > 0:
			if forceHLC {
				return nil, fmt.Errorf("%w: table %s has no HLC plans", ErrUnsatisfiableOption, req.Table)
			}
			plans, consumer = llc, "llc"
		default:
			return nil, nil
		}
		m.mQueries.Inc(1, req.Table, consumer)
		return m.pick(plans), nil

	default:
		return nil, nil
	}
}

// RoutingTableExists reports whether the table currently has published plans.
func (m *Manager) RoutingTableExists(table string) bool {
	m.plansMu.RLock()
	defer m.plansMu.RUnlock()
	switch cluster.TypeOfTable(table) {
	case cluster.TableTypeOffline:
		return len(m.offlinePlans[table]) > 0
	case cluster.TableTypeRealtime:
		return len(m.hlcPlans[table]) > 0 || len(m.llcPlans[table]) > 0
	default:
		return false
	}
}

func (m *Manager) publishedPlans(plans map[string][]*Plan, table string) []*Plan {
	m.plansMu.RLock()
	defer m.plansMu.RUnlock()
	return plans[table]
}

func (m *Manager) pick(plans []*Plan) *Plan {
	if len(plans) == 1 {
		return plans[0]
	}
	m.rngMu.Lock()
	i := m.rng.Intn(len(plans))
	m.rngMu.Unlock()
	return plans[i]
}

// MarkTableOnline registers a table and builds its routing plans. A nil
// external view only records the invalid-version sentinel so the next change
// observation rebuilds the table.
func (m *Manager) MarkTableOnline(ctx context.Context, table string, ev *cluster.ExternalView, ics []cluster.InstanceConfig) error {
	if m.closed.Load() {
		return nil
	}
	if ev == nil {
		m.stateMu.Lock()
		m.lastEVVersion[table] = invalidVersion
		m.stateMu.Unlock()
		return nil
	}
	return m.rebuildRoutingTable(ctx, table, ev, ics)
}

// RemoveTable drops every trace of a table: published plans, version cache,
// relevant instance configs, reverse index entries, and time boundary.
// Instances that referenced only this table are dropped entirely.
func (m *Manager) RemoveTable(ctx context.Context, table string) {
	m.stateMu.Lock()
	delete(m.lastEVVersion, table)
	relevant := m.lastICByTable[table]
	delete(m.lastICByTable, table)
	for instance := range relevant {
		tables := m.instanceTables[instance]
		if tables == nil {
			continue
		}
		tables.Remove(table)
		if tables.Empty() {
			delete(m.instanceTables, instance)
			delete(m.lastICByInstance, instance)
		}
	}
	m.stateMu.Unlock()

	m.plansMu.Lock()
	delete(m.offlinePlans, table)
	delete(m.hlcPlans, table)
	delete(m.llcPlans, table)
	m.plansMu.Unlock()
	m.updateTableGauge()

	m.boundary.Remove(table)
	m.log.InfoCtx(ctx, "routing table removed", "table", table)
	m.publishEvent(ctx, events.Event{
		Category: events.Routing,
		Type:     "table_removed",
		Table:    table,
	})
}

// rebuildRoutingTable recomputes and publishes a table's plans from a fresh
// external view. Primary-builder failure records the invalid-version
// sentinel and keeps the previously published plans; an LLC failure is
// logged and tolerated.
func (m *Manager) rebuildRoutingTable(ctx context.Context, table string, ev *cluster.ExternalView, ics []cluster.InstanceConfig) error {
	ctx, _ = correlation.Begin(ctx, "rebuild")
	timer := m.newRebuildTimer()
	defer timer.ObserveDuration(table)
	m.rebuilds.Add(1)

	err := m.rebuildAndPublish(ctx, table, ev, ics)
	if err != nil {
		m.failRebuild(ctx, table, err)
		return err
	}

	m.updateTableGauge()
	m.reconcileTimeBoundary(ctx, table, ev)
	m.log.InfoCtx(ctx, "routing table rebuilt", "table", table, "version", ev.Version)
	m.publishEvent(ctx, events.Event{
		Category: events.Routing,
		Type:     "rebuild_succeeded",
		Table:    table,
		Fields:   map[string]any{"version": ev.Version},
	})
	return nil
}

func (m *Manager) rebuildAndPublish(ctx context.Context, table string, ev *cluster.ExternalView, ics []cluster.InstanceConfig) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	m.lastEVVersion[table] = ev.Version
	tableType := cluster.TypeOfTable(table)

	primary := m.offlineBuilder
	if tableType == cluster.TableTypeRealtime {
		primary = m.hlcBuilder
	}
	primaryPlans, err := primary.Compute(table, ev, ics)
	if err != nil {
		return fmt.Errorf("build routing table for %s: %w", table, err)
	}

	icByInstance := make(map[string]cluster.InstanceConfig, len(ics))
	for _, ic := range ics {
		icByInstance[ic.Instance] = ic
	}
	relevant := make(map[string]cluster.InstanceConfig)
	collectRelevant(relevant, icByInstance, primaryPlans)

	if tableType == cluster.TableTypeRealtime {
		m.publishPlans(m.hlcPlans, table, primaryPlans)
		m.selector.Register(table)

		// LLC failure must not take down the primary publish.
		llcPlans, llcErr := m.llcBuilder.Compute(table, ev, ics)
		if llcErr != nil {
			m.log.WarnCtx(ctx, "LLC routing table build failed; keeping previous LLC plans",
				"table", table, "error", llcErr)
			m.publishEvent(ctx, events.Event{
				Category: events.Routing,
				Type:     "llc_rebuild_failed",
				Table:    table,
				Err:      llcErr.Error(),
			})
		} else {
			m.publishPlans(m.llcPlans, table, llcPlans)
			collectRelevant(relevant, icByInstance, llcPlans)
		}
	} else {
		m.publishPlans(m.offlinePlans, table, primaryPlans)
	}

	m.replaceRelevantICs(table, relevant)
	return nil
}

// collectRelevant copies into dst the configs of every instance appearing in
// plans.
func collectRelevant(dst map[string]cluster.InstanceConfig, ics map[string]cluster.InstanceConfig, plans []*Plan) {
	for _, p := range plans {
		for _, server := range p.ServerSet() {
			if ic, ok := ics[server]; ok {
				dst[server] = ic
			}
		}
	}
}

// publishPlans swaps a table's plan list. An empty list removes the entry:
// absence represents the empty routing table.
func (m *Manager) publishPlans(plans map[string][]*Plan, table string, next []*Plan) {
	m.plansMu.Lock()
	if len(next) == 0 {
		delete(plans, table)
	} else {
		plans[table] = next
	}
	m.plansMu.Unlock()
}

// replaceRelevantICs replaces lastICByTable[table] and keeps both reverse
// indices in agreement. Callers hold stateMu.
func (m *Manager) replaceRelevantICs(table string, relevant map[string]cluster.InstanceConfig) {
	previous := m.lastICByTable[table]
	for instance := range previous {
		if _, still := relevant[instance]; still {
			continue
		}
		tables := m.instanceTables[instance]
		if tables != nil {
			tables.Remove(table)
			if tables.Empty() {
				delete(m.instanceTables, instance)
				delete(m.lastICByInstance, instance)
			}
		}
	}
	for instance, ic := range relevant {
		m.lastICByInstance[instance] = ic
		tables := m.instanceTables[instance]
		if tables == nil {
			tables = set.New[string](4)
			m.instanceTables[instance] = tables
		}
		tables.Insert(table)
	}
	m.lastICByTable[table] = relevant
}

// reconcileTimeBoundary keeps the hybrid cutoff in step with plan publishes:
// an offline publish refreshes the boundary when the realtime half routes,
// and a realtime publish backfills a boundary the offline half is missing.
// Boundary failures are logged only; plans stay published.
func (m *Manager) reconcileTimeBoundary(ctx context.Context, table string, ev *cluster.ExternalView) {
	switch cluster.TypeOfTable(table) {
	case cluster.TableTypeOffline:
		if !m.RoutingTableExists(cluster.RealtimeTableName(table)) {
			return
		}
		if err := m.boundary.Update(ctx, ev); err != nil {
			m.logBoundaryFailure(ctx, table, err)
		}

	case cluster.TableTypeRealtime:
		offlineTable := cluster.OfflineTableName(table)
		if !m.RoutingTableExists(offlineTable) {
			return
		}
		if _, ok := m.boundary.Get(offlineTable); ok {
			return
		}
		offlineEV, err := m.client.ExternalView(ctx, offlineTable)
		if err != nil {
			m.fetchFailed()
			m.logBoundaryFailure(ctx, offlineTable, fmt.Errorf("fetch offline external view: %w", err))
			return
		}
		m.fetchSucceeded()
		if offlineEV == nil {
			m.logBoundaryFailure(ctx, offlineTable, fmt.Errorf("offline external view absent"))
			return
		}
		if err := m.boundary.Update(ctx, offlineEV); err != nil {
			m.logBoundaryFailure(ctx, offlineTable, err)
		}
	}
}

func (m *Manager) logBoundaryFailure(ctx context.Context, table string, err error) {
	m.log.WarnCtx(ctx, "time boundary update failed", "table", table, "error", err)
	m.publishEvent(ctx, events.Event{
		Category: events.TimeBoundary,
		Type:     "update_failed",
		Table:    table,
		Err:      fmt.Sprint(err),
	})
}

// failRebuild records a failed rebuild: invalid-version sentinel so the next
// observation retries, failure counter, and event. Previously published
// plans stay in place.
func (m *Manager) failRebuild(ctx context.Context, table string, err error) {
	m.stateMu.Lock()
	m.lastEVVersion[table] = invalidVersion
	m.stateMu.Unlock()
	m.rebuildFailures.Add(1)
	m.mRebuildFailures.Inc(1, table)
	m.log.ErrorCtx(ctx, "routing table rebuild failed", "table", table, "error", err)
	m.publishEvent(ctx, events.Event{
		Category: events.Routing,
		Type:     "rebuild_failed",
		Table:    table,
		Err:      err.Error(),
	})
}

// rebuildRequired reports whether a table must be rebuilt given a freshly
// fetched external view and instance-config registry. When only irrelevant
// instance-config fields changed, the cached configs are refreshed in place
// and no rebuild is signalled.
func (m *Manager) rebuildRequired(table string, ev *cluster.ExternalView, ics []cluster.InstanceConfig) bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	last, known := m.lastEVVersion[table]
	if !known || last == invalidVersion || ev.Version != last {
		return true
	}
	lastICs := m.lastICByTable[table]
	if len(lastICs) == 0 {
		return true
	}
	relevant := make([]cluster.InstanceConfig, 0, len(lastICs))
	for _, ic := range ics {
		if _, ok := lastICs[ic.Instance]; ok {
			relevant = append(relevant, ic)
		}
	}
	if len(relevant) != len(lastICs) {
		return true
	}
	for _, ic := range relevant {
		old := lastICs[ic.Instance]
		if ic.Version == old.Version {
			continue
		}
		if ic.Enabled != old.Enabled || ic.ShuttingDown != old.ShuttingDown {
			return true
		}
		// Version moved but nothing the router cares about changed:
		// refresh the cache so the diff stays quiet.
		lastICs[ic.Instance] = ic
		m.lastICByInstance[ic.Instance] = ic
	}
	return false
}

// ProcessExternalViewChange walks every known table, compares coordinator
// version stats against the cached versions, and rebuilds the tables that
// moved. The change notification carries no payload on purpose: this pass
// always re-fetches the latest state, which also makes lost or batched
// notifications harmless.
func (m *Manager) ProcessExternalViewChange(ctx context.Context) error {
	if m.closed.Load() {
		return nil
	}
	ctx, _ = correlation.Begin(ctx, "ev-change")

	tables := m.knownTables()
	if len(tables) == 0 {
		return nil
	}
	paths := make([]string, len(tables))
	for i, table := range tables {
		paths[i] = cluster.ExternalViewPath(table)
	}
	stats, err := m.client.Stats(ctx, paths)
	if err != nil {
		m.fetchFailed()
		return fmt.Errorf("fetch external view stats: %w", err)
	}
	m.fetchSucceeded()
	if len(stats) != len(paths) {
		return fmt.Errorf("external view stats: got %d entries for %d paths", len(stats), len(paths))
	}

	m.stateMu.Lock()
	var changed []string
	for i, table := range tables {
		if stats[i] == nil {
			continue
		}
		if stats[i].Version != m.lastEVVersion[table] {
			changed = append(changed, table)
		}
	}
	m.stateMu.Unlock()
	if len(changed) == 0 {
		return nil
	}
	m.log.InfoCtx(ctx, "external views changed", "tables", changed)

	ics, err := m.client.InstanceConfigs(ctx)
	if err != nil {
		m.fetchFailed()
		return fmt.Errorf("fetch instance configs: %w", err)
	}
	m.fetchSucceeded()

	var merr *multierror.Error
	for _, table := range changed {
		ev, err := m.client.ExternalView(ctx, table)
		if err != nil {
			m.fetchFailed()
			err = fmt.Errorf("fetch external view for %s: %w", table, err)
			m.failRebuild(ctx, table, err)
			merr = multierror.Append(merr, err)
			continue
		}
		m.fetchSucceeded()
		if ev == nil {
			continue
		}
		if err := m.rebuildRoutingTable(ctx, table, ev, ics); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// ProcessInstanceConfigChange diffs instance-config versions for every
// instance referenced by published plans and rebuilds the affected tables
// whose relevant configs observably changed.
func (m *Manager) ProcessInstanceConfigChange(ctx context.Context) error {
	if m.closed.Load() {
		return nil
	}
	ctx, _ = correlation.Begin(ctx, "ic-change")

	instances := m.knownInstances()
	if len(instances) == 0 {
		return nil
	}
	paths := make([]string, len(instances))
	for i, instance := range instances {
		paths[i] = cluster.InstanceConfigPath(instance)
	}
	stats, err := m.client.Stats(ctx, paths)
	if err != nil {
		m.fetchFailed()
		return fmt.Errorf("fetch instance config stats: %w", err)
	}
	m.fetchSucceeded()
	if len(stats) != len(paths) {
		return fmt.Errorf("instance config stats: got %d entries for %d paths", len(stats), len(paths))
	}

	m.stateMu.Lock()
	affected := set.New[string](4)
	for i, instance := range instances {
		ic, ok := m.lastICByInstance[instance]
		// A missing stat means the instance config is gone; its tables
		// must re-check eligibility too.
		if ok && stats[i] != nil && stats[i].Version == ic.Version {
			continue
		}
		if tables := m.instanceTables[instance]; tables != nil {
			affected.InsertSlice(tables.Slice())
		}
	}
	m.stateMu.Unlock()
	if affected.Empty() {
		return nil
	}
	m.log.InfoCtx(ctx, "instance configs changed", "tables", affected.Slice())

	ics, err := m.client.InstanceConfigs(ctx)
	if err != nil {
		m.fetchFailed()
		return fmt.Errorf("fetch instance configs: %w", err)
	}
	m.fetchSucceeded()

	var merr *multierror.Error
	for _, table := range affected.Slice() {
		ev, err := m.client.ExternalView(ctx, table)
		if err != nil {
			m.fetchFailed()
			err = fmt.Errorf("fetch external view for %s: %w", table, err)
			m.failRebuild(ctx, table, err)
			merr = multierror.Append(merr, err)
			continue
		}
		m.fetchSucceeded()
		if ev == nil {
			continue
		}
		if !m.rebuildRequired(table, ev, ics) {
			continue
		}
		if err := m.rebuildRoutingTable(ctx, table, ev, ics); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

func (m *Manager) knownTables() []string {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	tables := make([]string, 0, len(m.lastEVVersion))
	for table := range m.lastEVVersion {
		tables = append(tables, table)
	}
	return tables
}

func (m *Manager) knownInstances() []string {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	instances := make([]string, 0, len(m.lastICByInstance))
	for instance := range m.lastICByInstance {
		instances = append(instances, instance)
	}
	return instances
}

func (m *Manager) updateTableGauge() {
	m.plansMu.RLock()
	offline, hlc, llc := len(m.offlinePlans), len(m.hlcPlans), len(m.llcPlans)
	m.plansMu.RUnlock()
	m.mTables.Set(float64(offline), "offline")
	m.mTables.Set(float64(hlc), "hlc")
	m.mTables.Set(float64(llc), "llc")
}

func (m *Manager) publishEvent(ctx context.Context, ev events.Event) {
	if m.feed == nil {
		return
	}
	m.feed.Publish(ctx, ev)
}
