// Package staticclient implements cluster.Client against a local directory
// of JSON records. It exists for development and demos: point the broker at
// a snapshot of cluster state, edit the files, and watch routing react the
// way it would to coordinator notifications.
//
// Layout:
//
//	<dir>/instanceconfigs.json        []cluster.InstanceConfig
//	<dir>/externalview/<table>.json   cluster.ExternalView
//	<dir>/segments/<table>/<segment>.json  cluster.SegmentMetadata
package staticclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/telemetry/logging"
)

// Client is a file-backed coordinator.
type Client struct {
	dir string
	log logging.Logger

	mu       sync.Mutex
	watchers []cluster.Watcher
	watcher  *fsnotify.Watcher
}

// New creates a client reading from dir.
func New(dir string, log logging.Logger) *Client {
	if log == nil {
		log = logging.New(nil)
	}
	return &Client{dir: dir, log: log}
}

// Tables lists the tables with an external view on disk.
func (c *Client) Tables() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.dir, "externalview"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tables []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		tables = append(tables, strings.TrimSuffix(e.Name(), ".json"))
	}
	return tables, nil
}

// ExternalView implements cluster.Client.
func (c *Client) ExternalView(ctx context.Context, table string) (*cluster.ExternalView, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, "externalview", table+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ev cluster.ExternalView
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode external view %s: %w", table, err)
	}
	if ev.TableName == "" {
		ev.TableName = table
	}
	return &ev, nil
}

// InstanceConfigs implements cluster.Client.
func (c *Client) InstanceConfigs(ctx context.Context) ([]cluster.InstanceConfig, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, "instanceconfigs.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ics []cluster.InstanceConfig
	if err := json.Unmarshal(data, &ics); err != nil {
		return nil, fmt.Errorf("decode instance configs: %w", err)
	}
	return ics, nil
}

// Stats implements cluster.Client by re-reading the referenced records.
func (c *Client) Stats(ctx context.Context, paths []string) ([]*cluster.Stat, error) {
	out := make([]*cluster.Stat, len(paths))
	for i, p := range paths {
		switch {
		case strings.HasPrefix(p, "/EXTERNALVIEW/"):
			ev, err := c.ExternalView(ctx, strings.TrimPrefix(p, "/EXTERNALVIEW/"))
			if err != nil {
				return nil, err
			}
			if ev != nil {
				out[i] = &cluster.Stat{Version: ev.Version}
			}
		case strings.HasPrefix(p, "/CONFIGS/PARTICIPANT/"):
			instance := strings.TrimPrefix(p, "/CONFIGS/PARTICIPANT/")
			ics, err := c.InstanceConfigs(ctx)
			if err != nil {
				return nil, err
			}
			for _, ic := range ics {
				if ic.Instance == instance {
					out[i] = &cluster.Stat{Version: ic.Version}
					break
				}
			}
		}
	}
	return out, nil
}

// PropertyStore implements cluster.Client.
func (c *Client) PropertyStore() cluster.PropertyStore { return store{dir: c.dir} }

type store struct{ dir string }

func (s store) Read(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "/SEGMENTS/") {
		return nil, cluster.ErrNotFound
	}
	rel := strings.TrimPrefix(path, "/SEGMENTS/")
	data, err := os.ReadFile(filepath.Join(s.dir, "segments", filepath.FromSlash(rel)+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cluster.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Watch implements cluster.Client: file changes under the state directory
// fan out as coordinator notifications until ctx is done.
func (c *Client) Watch(ctx context.Context, w cluster.Watcher) error {
	c.mu.Lock()
	c.watchers = append(c.watchers, w)
	first := c.watcher == nil
	c.mu.Unlock()
	if !first {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create state watcher: %w", err)
	}
	for _, sub := range []string{c.dir, filepath.Join(c.dir, "externalview")} {
		if err := watcher.Add(sub); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watch %s: %w", sub, err)
		}
	}
	c.mu.Lock()
	c.watcher = watcher
	c.mu.Unlock()

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case e, ok := <-watcher.Events:
				if !ok {
					return
				}
				if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
					continue
				}
				c.notify(e.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.log.WarnCtx(ctx, "state watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (c *Client) notify(changedPath string) {
	c.mu.Lock()
	watchers := append([]cluster.Watcher(nil), c.watchers...)
	c.mu.Unlock()
	instanceChange := filepath.Base(changedPath) == "instanceconfigs.json"
	for _, w := range watchers {
		if instanceChange {
			w.OnInstanceConfigChange()
		} else {
			w.OnExternalViewChange()
		}
	}
}
