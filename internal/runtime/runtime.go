// Package runtime manages the broker's runtime routing policy: a YAML file
// declaring, per logical table, whether realtime queries should prefer the
// low-level-consumer plans. The file is hot-reloaded so operators can flip
// tables without a broker restart.
package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/tesseradb/tessera/cluster"
)

// TablePolicy is the per-table routing policy.
type TablePolicy struct {
	UseLLC bool `yaml:"use_llc" json:"use_llc"`
}

// RoutingPolicy is the full policy file content.
type RoutingPolicy struct {
	Version string `yaml:"version" json:"version"`
	// Default applies to tables without an explicit entry.
	Default TablePolicy `yaml:"default" json:"default"`
	// Tables is keyed by logical (raw) table name.
	Tables map[string]TablePolicy `yaml:"tables" json:"tables"`

	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
	Checksum  string    `yaml:"-" json:"checksum"`
}

// PolicyFor resolves the policy for a physical or logical table name.
func (p *RoutingPolicy) PolicyFor(table string) TablePolicy {
	if tp, ok := p.Tables[cluster.RawTableName(table)]; ok {
		return tp
	}
	return p.Default
}

// PolicyManager loads and serves the current policy snapshot.
type PolicyManager struct {
	path    string
	mu      sync.RWMutex
	current *RoutingPolicy
}

// NewPolicyManager creates a manager for the policy file at path. An empty
// path or missing file yields the zero policy.
func NewPolicyManager(path string) *PolicyManager {
	return &PolicyManager{path: path, current: &RoutingPolicy{}}
}

// Load reads the policy file, replacing the current snapshot.
func (m *PolicyManager) Load() error {
	policy, err := loadPolicyFile(m.path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.current = policy
	m.mu.Unlock()
	return nil
}

// Apply replaces the current snapshot directly (hot-reload path).
func (m *PolicyManager) Apply(policy *RoutingPolicy) {
	if policy == nil {
		return
	}
	m.mu.Lock()
	m.current = policy
	m.mu.Unlock()
}

// Current returns the active policy snapshot.
func (m *PolicyManager) Current() *RoutingPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func loadPolicyFile(path string) (*RoutingPolicy, error) {
	if path == "" {
		return &RoutingPolicy{UpdatedAt: time.Now()}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RoutingPolicy{UpdatedAt: time.Now()}, nil
		}
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var policy RoutingPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	policy.UpdatedAt = time.Now()
	policy.Checksum = checksum(&policy)
	return &policy, nil
}

func checksum(p *RoutingPolicy) string {
	cp := *p
	cp.Checksum = ""
	cp.UpdatedAt = time.Time{}
	data, _ := json.Marshal(cp)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// PolicyChange describes one observed policy-file change.
type PolicyChange struct {
	*RoutingPolicy
	ChangedAt        time.Time
	PreviousChecksum string
}

// HotReload watches the policy file and emits changes.
type HotReload struct {
	path       string
	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	isWatching bool
}

// NewHotReload creates a watcher for the policy file at path.
func NewHotReload(path string) (*HotReload, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &HotReload{path: path, watcher: watcher}, nil
}

// Watch starts watching until ctx is done. Both channels close on exit.
// Watching the directory rather than the file survives editor rename-replace
// writes. A read that parses to the empty policy (an empty file, as seen in
// the middle of a truncate-then-write save) emits no change.
func (h *HotReload) Watch(ctx context.Context) (<-chan *PolicyChange, <-chan error) {
	changes := make(chan *PolicyChange, 10)
	errs := make(chan error, 10)

	h.mu.Lock()
	if h.isWatching {
		h.mu.Unlock()
		close(changes)
		close(errs)
		return changes, errs
	}
	if err := h.watcher.Add(filepath.Dir(h.path)); err != nil {
		h.mu.Unlock()
		errs <- fmt.Errorf("watch dir %s: %w", filepath.Dir(h.path), err)
		close(changes)
		close(errs)
		return changes, errs
	}
	h.isWatching = true
	h.mu.Unlock()

	go func() {
		defer close(changes)
		defer close(errs)
		var lastChecksum string
		for {
			select {
			case e, ok := <-h.watcher.Events:
				if !ok {
					return
				}
				if e.Name != h.path || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				policy, err := loadPolicyFile(h.path)
				if err != nil {
					errs <- err
					continue
				}
				if policy.Checksum == checksum(&RoutingPolicy{}) {
					continue
				}
				if policy.Checksum == lastChecksum {
					continue
				}
				change := &PolicyChange{
					RoutingPolicy:    policy,
					ChangedAt:        time.Now(),
					PreviousChecksum: lastChecksum,
				}
				lastChecksum = policy.Checksum
				select {
				case changes <- change:
				default:
				}
			case err, ok := <-h.watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			case <-ctx.Done():
				return
			}
		}
	}()
	return changes, errs
}

// Stop closes the underlying watcher.
func (h *HotReload) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isWatching {
		h.isWatching = false
		return h.watcher.Close()
	}
	return h.watcher.Close()
}
