// Package clustertest provides an in-memory coordinator fake for tests.
package clustertest

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/tesseradb/tessera/cluster"
)

// Fake is a mutable in-memory cluster.Client. All methods are safe for
// concurrent use. Zero value is not usable; call New.
type Fake struct {
	mu        sync.Mutex
	views     map[string]*cluster.ExternalView
	instances map[string]cluster.InstanceConfig
	metadata  map[string][]byte // property-store path -> record
	watchers  []cluster.Watcher

	// Error injection. When set, the corresponding call fails.
	ExternalViewErr    error
	InstanceConfigsErr error
	StatsErr           error

	// Call counters for coalescing assertions.
	ExternalViewCalls    int
	InstanceConfigsCalls int
	StatsCalls           int
}

// New returns an empty fake coordinator.
func New() *Fake {
	return &Fake{
		views:     make(map[string]*cluster.ExternalView),
		instances: make(map[string]cluster.InstanceConfig),
		metadata:  make(map[string][]byte),
	}
}

// SetExternalView stores (or replaces) the external view for ev.TableName.
func (f *Fake) SetExternalView(ev *cluster.ExternalView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views[ev.TableName] = ev
}

// DeleteExternalView removes a table's external view.
func (f *Fake) DeleteExternalView(table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.views, table)
}

// SetInstanceConfig stores (or replaces) one instance config.
func (f *Fake) SetInstanceConfig(ic cluster.InstanceConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[ic.Instance] = ic
}

// SetSegmentMetadata stores segment metadata at the canonical path.
func (f *Fake) SetSegmentMetadata(table, segment string, md cluster.SegmentMetadata) {
	data, _ := json.Marshal(md)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadata[cluster.SegmentMetadataPath(table, segment)] = data
}

// NotifyExternalView invokes OnExternalViewChange on every registered watcher.
func (f *Fake) NotifyExternalView() {
	for _, w := range f.snapshotWatchers() {
		w.OnExternalViewChange()
	}
}

// NotifyInstanceConfig invokes OnInstanceConfigChange on every watcher.
func (f *Fake) NotifyInstanceConfig() {
	for _, w := range f.snapshotWatchers() {
		w.OnInstanceConfigChange()
	}
}

// NotifyLiveInstance invokes OnLiveInstanceChange on every watcher.
func (f *Fake) NotifyLiveInstance() {
	for _, w := range f.snapshotWatchers() {
		w.OnLiveInstanceChange()
	}
}

func (f *Fake) snapshotWatchers() []cluster.Watcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cluster.Watcher(nil), f.watchers...)
}

// ExternalView implements cluster.Client.
func (f *Fake) ExternalView(ctx context.Context, table string) (*cluster.ExternalView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExternalViewCalls++
	if f.ExternalViewErr != nil {
		return nil, f.ExternalViewErr
	}
	ev, ok := f.views[table]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

// InstanceConfigs implements cluster.Client.
func (f *Fake) InstanceConfigs(ctx context.Context) ([]cluster.InstanceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InstanceConfigsCalls++
	if f.InstanceConfigsErr != nil {
		return nil, f.InstanceConfigsErr
	}
	out := make([]cluster.InstanceConfig, 0, len(f.instances))
	for _, ic := range f.instances {
		out = append(out, ic)
	}
	return out, nil
}

// Stats implements cluster.Client. Versions are derived from the stored
// external views and instance configs by path.
func (f *Fake) Stats(ctx context.Context, paths []string) ([]*cluster.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatsCalls++
	if f.StatsErr != nil {
		return nil, f.StatsErr
	}
	out := make([]*cluster.Stat, len(paths))
	for i, p := range paths {
		switch {
		case strings.HasPrefix(p, "/EXTERNALVIEW/"):
			table := strings.TrimPrefix(p, "/EXTERNALVIEW/")
			if ev, ok := f.views[table]; ok {
				out[i] = &cluster.Stat{Version: ev.Version}
			}
		case strings.HasPrefix(p, "/CONFIGS/PARTICIPANT/"):
			instance := strings.TrimPrefix(p, "/CONFIGS/PARTICIPANT/")
			if ic, ok := f.instances[instance]; ok {
				out[i] = &cluster.Stat{Version: ic.Version}
			}
		}
	}
	return out, nil
}

// PropertyStore implements cluster.Client.
func (f *Fake) PropertyStore() cluster.PropertyStore { return (*fakeStore)(f) }

// Watch implements cluster.Client. The watcher stays registered after ctx is
// done; notifications are test-driven.
func (f *Fake) Watch(ctx context.Context, w cluster.Watcher) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchers = append(f.watchers, w)
	return nil
}

type fakeStore Fake

func (s *fakeStore) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.metadata[path]
	if !ok {
		return nil, cluster.ErrNotFound
	}
	return data, nil
}
