// Package broker composes the routing manager with its collaborators — the
// coordinator client, the change mediator, the runtime routing policy, and
// the telemetry subsystems — behind a single facade.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/internal/runtime"
	"github.com/tesseradb/tessera/routing"
	"github.com/tesseradb/tessera/routing/timeboundary"
	"github.com/tesseradb/tessera/telemetry/events"
	"github.com/tesseradb/tessera/telemetry/logging"
	"github.com/tesseradb/tessera/telemetry/metrics"
)

// Snapshot is a unified view of broker state.
type Snapshot struct {
	StartedAt       time.Time                    `json:"started_at"`
	Uptime          time.Duration                `json:"uptime"`
	Rebuilds        uint64                       `json:"rebuilds"`
	RebuildFailures uint64                       `json:"rebuild_failures"`
	TimeBoundaries  map[string]timeboundary.Info `json:"time_boundaries,omitempty"`
	Events          *events.FeedStats            `json:"events,omitempty"`
	RecentEvents    []events.Event               `json:"recent_events,omitempty"`
}

// Broker wires the routing subsystem together.
type Broker struct {
	cfg      Config
	log      logging.Logger
	client   cluster.Client
	manager  *routing.Manager
	mediator *routing.Mediator
	boundary *timeboundary.Service

	policy    *runtime.PolicyManager
	hotReload *runtime.HotReload

	provider metrics.Provider
	feed     *events.Feed
	health   healthState

	startedAt time.Time
	started   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs a broker around the given coordinator client. A nil base
// logger falls back to slog.Default.
func New(cfg Config, client cluster.Client, base *slog.Logger) (*Broker, error) {
	if client == nil {
		return nil, fmt.Errorf("broker: coordinator client is required")
	}
	log := logging.New(base)

	b := &Broker{
		cfg:       cfg,
		log:       log,
		client:    client,
		provider:  selectMetricsProvider(cfg),
		policy:    runtime.NewPolicyManager(cfg.RoutingPolicyPath),
		startedAt: time.Now(),
	}
	if err := b.policy.Load(); err != nil {
		return nil, fmt.Errorf("load routing policy: %w", err)
	}
	if cfg.EventsEnabled {
		b.feed = events.NewFeed(b.provider, cfg.RecentEventCap)
	}

	b.boundary = timeboundary.New(client.PropertyStore(), log, cfg.TimeBoundaryGranularity)
	selector := routing.NewPolicySelector(func(table string) bool {
		return b.policy.Current().PolicyFor(table).UseLLC
	})
	manager, err := routing.NewManager(routing.Options{
		Client:       client,
		Selector:     selector,
		TimeBoundary: b.boundary,
		Logger:       log,
		Metrics:      b.provider,
		Events:       b.feed,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	b.manager = manager
	return b, nil
}

// selectMetricsProvider maps the configured backend onto a metrics.Provider.
func selectMetricsProvider(cfg Config) metrics.Provider {
	if !cfg.MetricsEnabled {
		return metrics.NewNoopProvider()
	}
	switch strings.ToLower(cfg.MetricsBackend) {
	case "", "prom", "prometheus":
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	case "otel", "opentelemetry":
		return metrics.NewOTelProvider(metrics.OTelProviderOptions{})
	case "noop":
		return metrics.NewNoopProvider()
	default:
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	}
}

// Start registers for coordinator notifications and begins policy hot
// reload. Start runs once: a second Start is an error.
func (b *Broker) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return fmt.Errorf("broker: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.mediator = routing.NewMediator(b.manager, b.log)
	if err := b.client.Watch(runCtx, b.mediator); err != nil {
		b.mediator.Close()
		cancel()
		return fmt.Errorf("watch coordinator: %w", err)
	}

	if b.cfg.RoutingPolicyPath != "" {
		hotReload, err := runtime.NewHotReload(b.cfg.RoutingPolicyPath)
		if err != nil {
			cancel()
			return fmt.Errorf("routing policy hot reload: %w", err)
		}
		b.hotReload = hotReload
		changes, errs := hotReload.Watch(runCtx)
		b.wg.Add(1)
		go b.consumePolicyChanges(runCtx, changes, errs)
	}

	b.log.InfoCtx(ctx, "broker started", "policy_path", b.cfg.RoutingPolicyPath)
	return nil
}

func (b *Broker) consumePolicyChanges(ctx context.Context, changes <-chan *runtime.PolicyChange, errs <-chan error) {
	defer b.wg.Done()
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return
			}
			b.policy.Apply(change.RoutingPolicy)
			b.log.InfoCtx(ctx, "routing policy reloaded",
				"version", change.Version, "checksum", change.Checksum)
			b.publishEvent(ctx, events.Event{
				Category: events.ConfigChange,
				Type:     "routing_policy_reloaded",
				Fields:   map[string]any{"version": change.Version, "checksum": change.Checksum},
			})
		case err, ok := <-errs:
			if !ok {
				return
			}
			b.log.WarnCtx(ctx, "routing policy reload failed", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

// Stop shuts the broker down. The manager keeps serving its last published
// plans until the process exits; change processing stops immediately.
func (b *Broker) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.mediator != nil {
		b.mediator.Close()
	}
	b.manager.Close()
	if b.hotReload != nil {
		_ = b.hotReload.Stop()
	}
	b.wg.Wait()
	return nil
}

// FindServers answers one routing query.
func (b *Broker) FindServers(ctx context.Context, req routing.Request) (*routing.Plan, error) {
	return b.manager.FindServers(ctx, req)
}

// RoutingTableExists reports whether table has published plans.
func (b *Broker) RoutingTableExists(table string) bool {
	return b.manager.RoutingTableExists(table)
}

// MarkTableOnline registers a table with the routing manager.
func (b *Broker) MarkTableOnline(ctx context.Context, table string, ev *cluster.ExternalView, ics []cluster.InstanceConfig) error {
	return b.manager.MarkTableOnline(ctx, table, ev, ics)
}

// RemoveTable drops a table from the routing manager.
func (b *Broker) RemoveTable(ctx context.Context, table string) {
	b.manager.RemoveTable(ctx, table)
}

// SnapshotJSON renders the routing tables matching tablePrefix.
func (b *Broker) SnapshotJSON(tablePrefix string) (string, error) {
	return b.manager.SnapshotJSON(tablePrefix)
}

// MetricsHandler returns the metrics exposition handler, or nil when the
// backend has none (otel, noop).
func (b *Broker) MetricsHandler() http.Handler {
	if hp, ok := b.provider.(interface{ MetricsHandler() http.Handler }); ok {
		return hp.MetricsHandler()
	}
	return nil
}

// Snapshot returns a unified state view.
func (b *Broker) Snapshot() Snapshot {
	snap := Snapshot{StartedAt: b.startedAt, Uptime: time.Since(b.startedAt)}
	snap.Rebuilds, snap.RebuildFailures = b.manager.Rebuilds()
	if boundaries := b.boundary.All(); len(boundaries) > 0 {
		snap.TimeBoundaries = boundaries
	}
	if b.feed != nil {
		stats := b.feed.Stats()
		snap.Events = &stats
		snap.RecentEvents = b.feed.Recent()
	}
	return snap
}

// EventFeed exposes the broker's event feed for subscribers; nil when events
// are disabled.
func (b *Broker) EventFeed() *events.Feed { return b.feed }

func (b *Broker) publishEvent(ctx context.Context, ev events.Event) {
	if b.feed == nil {
		return
	}
	b.feed.Publish(ctx, ev)
}
