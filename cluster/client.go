package cluster

import (
	"context"
	"errors"
)

// ErrNotFound is returned by PropertyStore reads for absent paths.
var ErrNotFound = errors.New("cluster: path not found")

// Watcher receives change notifications from the coordinator. Callbacks must
// return promptly; notification payloads are deliberately absent because the
// broker re-fetches the latest state on every signal (notifications may be
// stale, batched, or lost).
type Watcher interface {
	OnExternalViewChange()
	OnInstanceConfigChange()
	OnLiveInstanceChange()
}

// PropertyStore reads opaque records from the coordinator's metadata tree.
type PropertyStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// Client is the narrow coordinator surface the broker depends on. All calls
// may block on network I/O and honor ctx cancellation.
type Client interface {
	// ExternalView fetches the latest external view for a table, or
	// (nil, nil) when the table has none.
	ExternalView(ctx context.Context, table string) (*ExternalView, error)

	// InstanceConfigs fetches the full instance-config registry.
	InstanceConfigs(ctx context.Context) ([]InstanceConfig, error)

	// Stats batch-reads version stats for the given paths. The result has
	// one entry per path, nil where the path does not exist.
	Stats(ctx context.Context, paths []string) ([]*Stat, error)

	// PropertyStore exposes the metadata tree (segment metadata et al).
	PropertyStore() PropertyStore

	// Watch registers w for change notifications until ctx is done.
	Watch(ctx context.Context, w Watcher) error
}

// Metadata tree paths. Kept in one place so the fake store and the real
// client agree on layout.

func ExternalViewPath(table string) string { return "/EXTERNALVIEW/" + table }

func InstanceConfigPath(instance string) string { return "/CONFIGS/PARTICIPANT/" + instance }

func SegmentMetadataPath(table, segment string) string {
	return "/SEGMENTS/" + table + "/" + segment
}
