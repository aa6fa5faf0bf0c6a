package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"
)

// Plan is one immutable server -> segment-set assignment covering the
// queryable segments of a table. A routing table is an ordered list of
// equivalent plans from which the query path picks one at random.
//
// Plans are built once and never mutated afterwards; the query path hands
// them out without copying.
type Plan struct {
	assignments map[string]*set.Set[string]
	fingerprint string
}

// NewPlan builds a plan from server -> segments. Servers with no segments are
// dropped.
func NewPlan(assignments map[string][]string) *Plan {
	p := &Plan{assignments: make(map[string]*set.Set[string], len(assignments))}
	for server, segments := range assignments {
		if len(segments) == 0 {
			continue
		}
		p.assignments[server] = set.From(segments)
	}
	p.fingerprint = p.computeFingerprint()
	return p
}

// ServerSet returns the servers of this plan in sorted order. Nil plans have
// no servers.
func (p *Plan) ServerSet() []string {
	if p == nil {
		return nil
	}
	servers := make([]string, 0, len(p.assignments))
	for server := range p.assignments {
		servers = append(servers, server)
	}
	sort.Strings(servers)
	return servers
}

// SegmentsFor returns the segments assigned to server, sorted. Nil when the
// server is not part of the plan.
func (p *Plan) SegmentsFor(server string) []string {
	if p == nil {
		return nil
	}
	s, ok := p.assignments[server]
	if !ok {
		return nil
	}
	segments := s.Slice()
	sort.Strings(segments)
	return segments
}

// Contains reports whether server appears in the plan.
func (p *Plan) Contains(server string) bool {
	if p == nil {
		return false
	}
	_, ok := p.assignments[server]
	return ok
}

// SegmentCount returns the total number of segment assignments.
func (p *Plan) SegmentCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, s := range p.assignments {
		n += s.Size()
	}
	return n
}

// Assignments returns a mutable copy of the server -> segments mapping.
func (p *Plan) Assignments() map[string][]string {
	if p == nil {
		return nil
	}
	out := make(map[string][]string, len(p.assignments))
	for server := range p.assignments {
		out[server] = p.SegmentsFor(server)
	}
	return out
}

// Equal reports content equality.
func (p *Plan) Equal(other *Plan) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.fingerprint == other.fingerprint
}

// Fingerprint returns a content hash suitable for deduplicating equivalent
// plans.
func (p *Plan) Fingerprint() string {
	if p == nil {
		return ""
	}
	return p.fingerprint
}

func (p *Plan) computeFingerprint() string {
	h := sha256.New()
	for _, server := range p.ServerSet() {
		h.Write([]byte(server))
		h.Write([]byte{0})
		for _, segment := range p.SegmentsFor(server) {
			h.Write([]byte(segment))
			h.Write([]byte{1})
		}
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// String renders the plan for debug output.
func (p *Plan) String() string {
	if p == nil {
		return "<nil plan>"
	}
	var b strings.Builder
	for i, server := range p.ServerSet() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s -> %v", server, p.SegmentsFor(server))
	}
	return b.String()
}

// DedupePlans drops plans whose content duplicates an earlier entry,
// preserving order.
func DedupePlans(plans []*Plan) []*Plan {
	seen := set.New[string](len(plans))
	out := plans[:0]
	for _, p := range plans {
		if seen.Insert(p.Fingerprint()) {
			out = append(out, p)
		}
	}
	return out
}
