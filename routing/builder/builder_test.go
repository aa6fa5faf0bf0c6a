package builder

import (
	"github.com/tesseradb/tessera/cluster"
)

// Test fixtures shared by the builder tests.

func view(table string, version int64, segments map[string]map[string]cluster.SegmentState) *cluster.ExternalView {
	return &cluster.ExternalView{TableName: table, Version: version, Segments: segments}
}

func enabled(instances ...string) []cluster.InstanceConfig {
	ics := make([]cluster.InstanceConfig, 0, len(instances))
	for _, instance := range instances {
		ics = append(ics, cluster.InstanceConfig{Instance: instance, Enabled: true, Version: 1})
	}
	return ics
}

func online(servers ...string) map[string]cluster.SegmentState {
	m := make(map[string]cluster.SegmentState, len(servers))
	for _, s := range servers {
		m[s] = cluster.SegmentOnline
	}
	return m
}

func consuming(servers ...string) map[string]cluster.SegmentState {
	m := make(map[string]cluster.SegmentState, len(servers))
	for _, s := range servers {
		m[s] = cluster.SegmentConsuming
	}
	return m
}
