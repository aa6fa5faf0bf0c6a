package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/tesseradb/tessera/broker"
	"github.com/tesseradb/tessera/cluster/staticclient"
	"github.com/tesseradb/tessera/routing"
	"github.com/tesseradb/tessera/telemetry/logging"
)

func main() {
	var (
		stateDir      string
		listenAddr    string
		policyPath    string
		backend       string
		snapshotEvery time.Duration
		seed          int64
		showVersion   bool
	)

	flag.StringVar(&stateDir, "cluster-state", "", "Directory holding the cluster state snapshot (external views, instance configs, segment metadata)")
	flag.StringVar(&listenAddr, "listen", ":8099", "HTTP listen address for /metrics, /healthz and /routing")
	flag.StringVar(&policyPath, "routing-policy", "", "Path to the hot-reloaded routing policy YAML (optional)")
	flag.StringVar(&backend, "metrics-backend", "prometheus", "Metrics backend: prometheus, otel or noop")
	flag.DurationVar(&snapshotEvery, "snapshot-interval", 30*time.Second, "Interval between broker state snapshots on stderr (0=disabled)")
	flag.Int64Var(&seed, "seed", 0, "Fixed seed for plan randomization (0=clock)")
	flag.BoolVar(&showVersion, "version", false, "Show version / build info")
	flag.Parse()

	if showVersion {
		fmt.Println("tessera broker")
		return
	}
	if stateDir == "" {
		fmt.Println("No cluster state provided. Use -cluster-state <dir>.")
		os.Exit(1)
	}

	base := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	client := staticclient.New(stateDir, logging.New(base))

	cfg := broker.Defaults()
	cfg.MetricsBackend = backend
	cfg.RoutingPolicyPath = policyPath
	cfg.Seed = seed

	b, err := broker.New(cfg, client, base)
	if err != nil {
		log.Fatalf("create broker: %v", err)
	}
	defer func() { _ = b.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT; a second signal forces exit.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("signal received; shutting down...")
		cancel()
		<-sigCh
		log.Println("second signal received; forcing exit")
		os.Exit(1)
	}()

	if err := b.Start(ctx); err != nil {
		log.Fatalf("start broker: %v", err)
	}
	if err := registerTables(ctx, b, client); err != nil {
		log.Fatalf("register tables: %v", err)
	}

	srv := &http.Server{Addr: listenAddr, Handler: newHandler(b)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server: %v", err)
		}
	}()
	defer func() { _ = srv.Close() }()

	if snapshotEvery > 0 {
		ticker := time.NewTicker(snapshotEvery)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ticker.C:
					snap := b.Snapshot()
					data, _ := json.MarshalIndent(snap, "", "  ")
					fmt.Fprintf(os.Stderr, "\n=== SNAPSHOT %s ===\n%s\n", time.Now().Format(time.RFC3339), data)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	<-ctx.Done()
}

// registerTables seeds the routing manager with every table present in the
// state directory.
func registerTables(ctx context.Context, b *broker.Broker, client *staticclient.Client) error {
	tables, err := client.Tables()
	if err != nil {
		return err
	}
	ics, err := client.InstanceConfigs(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		ev, err := client.ExternalView(ctx, table)
		if err != nil {
			return err
		}
		if err := b.MarkTableOnline(ctx, table, ev, ics); err != nil {
			log.Printf("mark table online %s: %v", table, err)
		}
	}
	return nil
}

func newHandler(b *broker.Broker) http.Handler {
	mux := http.NewServeMux()
	if mh := b.MetricsHandler(); mh != nil {
		mux.Handle("/metrics", mh)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := b.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Overall == broker.HealthUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
	mux.HandleFunc("/routing", func(w http.ResponseWriter, r *http.Request) {
		dump, err := b.SnapshotJSON(r.URL.Query().Get("prefix"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(dump))
	})
	mux.HandleFunc("/routing/find", func(w http.ResponseWriter, r *http.Request) {
		req := routing.Request{
			Table:   r.URL.Query().Get("table"),
			Options: r.URL.Query()["option"],
		}
		plan, err := b.FindServers(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(plan.Assignments())
	})
	return mux
}
