// Package timeboundary computes and caches the cutoff timestamp that splits
// a hybrid table's query domain between its offline and realtime halves.
// Offline plans answer time <= boundary; realtime plans answer time > boundary.
package timeboundary

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/telemetry/logging"
)

// Info is the published boundary for one offline table.
type Info struct {
	TimeColumn string `json:"time_column"`
	TimeValue  int64  `json:"time_value"`
}

// Granularity names supported in segment metadata, coarsest last.
const (
	UnitMilliseconds = "MILLISECONDS"
	UnitSeconds      = "SECONDS"
	UnitMinutes      = "MINUTES"
	UnitHours        = "HOURS"
	UnitDays         = "DAYS"
)

var unitMillis = map[string]int64{
	UnitMilliseconds: 1,
	UnitSeconds:      1000,
	UnitMinutes:      60 * 1000,
	UnitHours:        60 * 60 * 1000,
	UnitDays:         24 * 60 * 60 * 1000,
}

// Service maintains per-table boundaries. Reads are concurrent with updates;
// entries are replaced atomically under the lock.
type Service struct {
	store       cluster.PropertyStore
	log         logging.Logger
	granularity string

	mu         sync.RWMutex
	boundaries map[string]Info
}

// New creates a boundary service reading segment metadata from store.
// granularity is the push granularity subtracted from the max end time;
// empty defaults to DAYS.
func New(store cluster.PropertyStore, log logging.Logger, granularity string) *Service {
	if _, ok := unitMillis[granularity]; !ok {
		granularity = UnitDays
	}
	return &Service{
		store:       store,
		log:         log,
		granularity: granularity,
		boundaries:  make(map[string]Info),
	}
}

// Get returns the boundary for an offline table.
func (s *Service) Get(table string) (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.boundaries[table]
	return info, ok
}

// Remove drops the boundary for a table.
func (s *Service) Remove(table string) {
	s.mu.Lock()
	delete(s.boundaries, table)
	s.mu.Unlock()
}

// All returns a copy of every published boundary.
func (s *Service) All() map[string]Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Info, len(s.boundaries))
	for table, info := range s.boundaries {
		out[table] = info
	}
	return out
}

// Update recomputes the boundary from an offline external view and replaces
// the cached entry. The boundary is the maximum end time over all segments
// with an ONLINE replica, minus one unit of the configured granularity
// expressed in the segments' own time unit. Individual unreadable segments
// are skipped; a view with no usable segment is an error and leaves the
// previous boundary in place.
func (s *Service) Update(ctx context.Context, ev *cluster.ExternalView) error {
	if ev == nil {
		return fmt.Errorf("time boundary: nil external view")
	}
	var (
		found      bool
		maxEnd     int64
		timeColumn string
		timeUnit   string
	)
	for segment := range ev.Segments {
		if !ev.HasReplicaInState(segment, cluster.SegmentOnline) {
			continue
		}
		md, err := s.readMetadata(ctx, ev.TableName, segment)
		if err != nil {
			s.log.WarnCtx(ctx, "skipping segment with unreadable metadata",
				"table", ev.TableName, "segment", segment, "error", err)
			continue
		}
		if !found || md.EndTime > maxEnd {
			found = true
			maxEnd = md.EndTime
			timeColumn = md.TimeColumn
			timeUnit = md.TimeUnit
		}
	}
	if !found {
		return fmt.Errorf("time boundary: table %s has no online segment with readable metadata", ev.TableName)
	}

	info := Info{TimeColumn: timeColumn, TimeValue: maxEnd - s.granularityTicks(timeUnit)}
	s.mu.Lock()
	s.boundaries[ev.TableName] = info
	s.mu.Unlock()
	s.log.InfoCtx(ctx, "time boundary updated",
		"table", ev.TableName, "time_column", info.TimeColumn, "time_value", info.TimeValue)
	return nil
}

func (s *Service) readMetadata(ctx context.Context, table, segment string) (*cluster.SegmentMetadata, error) {
	data, err := s.store.Read(ctx, cluster.SegmentMetadataPath(table, segment))
	if err != nil {
		return nil, err
	}
	var md cluster.SegmentMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("decode segment metadata: %w", err)
	}
	return &md, nil
}

// granularityTicks converts one unit of the configured granularity into the
// ticks of the segment's time unit, never less than one tick.
func (s *Service) granularityTicks(segmentUnit string) int64 {
	segMillis, ok := unitMillis[segmentUnit]
	if !ok {
		return 1
	}
	ticks := unitMillis[s.granularity] / segMillis
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}
