package routing

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// snapshotDump is the JSON shape of SnapshotJSON. Offline and LLC plan
// tables are rendered; HLC plans are reachable through the same machinery
// and deliberately omitted to keep the dump close to what operators debug
// (balanced offline routing and per-partition consumption progress).
type snapshotDump struct {
	Host          string                `json:"host"`
	BrokerID      string                `json:"broker_id"`
	GeneratedAt   time.Time             `json:"generated_at"`
	OfflineTables map[string][]planDump `json:"offline_tables"`
	LLCTables     map[string][]planDump `json:"llc_tables"`
}

type planDump map[string][]string

// SnapshotJSON renders the offline and LLC routing tables whose table name
// starts with tablePrefix (empty matches all), plus the broker identity.
func (m *Manager) SnapshotJSON(tablePrefix string) (string, error) {
	dump := snapshotDump{
		Host:          m.host,
		BrokerID:      m.brokerID,
		GeneratedAt:   time.Now(),
		OfflineTables: make(map[string][]planDump),
		LLCTables:     make(map[string][]planDump),
	}

	m.plansMu.RLock()
	for table, plans := range m.offlinePlans {
		if strings.HasPrefix(table, tablePrefix) {
			dump.OfflineTables[table] = dumpPlans(plans)
		}
	}
	for table, plans := range m.llcPlans {
		if strings.HasPrefix(table, tablePrefix) {
			dump.LLCTables[table] = dumpPlans(plans)
		}
	}
	m.plansMu.RUnlock()

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func dumpPlans(plans []*Plan) []planDump {
	out := make([]planDump, 0, len(plans))
	for _, p := range plans {
		pd := make(planDump, len(p.ServerSet()))
		for _, server := range p.ServerSet() {
			segments := p.SegmentsFor(server)
			sort.Strings(segments)
			pd[server] = segments
		}
		out = append(out, pd)
	}
	return out
}
