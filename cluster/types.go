package cluster

import "strings"

// SegmentState is the replica state a server reports for one segment in an
// external view. Only ONLINE replicas serve completed data; CONSUMING marks
// the replica currently ingesting the open end of a low-level-consumer
// partition.
type SegmentState string

const (
	SegmentOnline    SegmentState = "ONLINE"
	SegmentConsuming SegmentState = "CONSUMING"
	SegmentOffline   SegmentState = "OFFLINE"
	SegmentDropped   SegmentState = "DROPPED"
	SegmentError     SegmentState = "ERROR"
)

// TableType partitions physical tables into the offline and realtime halves
// of a logical (hybrid) table.
type TableType string

const (
	TableTypeOffline  TableType = "OFFLINE"
	TableTypeRealtime TableType = "REALTIME"
	TableTypeUnknown  TableType = ""
)

const (
	offlineSuffix  = "_OFFLINE"
	realtimeSuffix = "_REALTIME"
)

// TypeOfTable derives the table type from the physical table name suffix.
func TypeOfTable(table string) TableType {
	switch {
	case strings.HasSuffix(table, offlineSuffix):
		return TableTypeOffline
	case strings.HasSuffix(table, realtimeSuffix):
		return TableTypeRealtime
	default:
		return TableTypeUnknown
	}
}

// RawTableName strips the type suffix, returning the logical table name.
func RawTableName(table string) string {
	table = strings.TrimSuffix(table, offlineSuffix)
	return strings.TrimSuffix(table, realtimeSuffix)
}

// OfflineTableName returns the offline physical name for a logical table.
func OfflineTableName(raw string) string { return RawTableName(raw) + offlineSuffix }

// RealtimeTableName returns the realtime physical name for a logical table.
func RealtimeTableName(raw string) string { return RawTableName(raw) + realtimeSuffix }

// ExternalView is the coordinator-published snapshot of where a table's
// segments live and in which state each replica is. Versions are monotone per
// table; the broker only ever compares them for equality.
type ExternalView struct {
	TableName string
	Version   int64
	// Segments maps segment ID -> server ID -> replica state.
	Segments map[string]map[string]SegmentState
}

// ServersInState returns the servers hosting segment in the given state.
func (ev *ExternalView) ServersInState(segment string, state SegmentState) []string {
	var out []string
	for server, st := range ev.Segments[segment] {
		if st == state {
			out = append(out, server)
		}
	}
	return out
}

// HasReplicaInState reports whether any replica of segment is in state.
func (ev *ExternalView) HasReplicaInState(segment string, state SegmentState) bool {
	for _, st := range ev.Segments[segment] {
		if st == state {
			return true
		}
	}
	return false
}

// InstanceConfig is the per-server membership record. Version is monotone;
// the broker rebuilds only when Enabled or ShuttingDown observably change.
type InstanceConfig struct {
	Instance     string
	Enabled      bool
	ShuttingDown bool
	Tags         []string
	Version      int64
}

// CanServe reports whether the instance is eligible to appear in routing
// plans.
func (ic InstanceConfig) CanServe() bool { return ic.Enabled && !ic.ShuttingDown }

// Stat is the version-only record returned by batched stat reads. A nil Stat
// in a batch result means the path does not exist.
type Stat struct {
	Version int64
}

// SegmentMetadata is the property-store record describing one segment's time
// range. TimeUnit names the granularity of the Start/End values (one of
// MILLISECONDS, SECONDS, MINUTES, HOURS, DAYS).
type SegmentMetadata struct {
	TimeColumn string `json:"time_column"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
	TimeUnit   string `json:"time_unit"`
}
