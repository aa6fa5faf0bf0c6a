package routing

import (
	"sync"

	"github.com/hashicorp/go-set/v3"
)

// Selector decides, per realtime table, whether queries without a forced
// consumer type should use the low-level-consumer plans. The manager
// registers every realtime table it builds plans for and consults the
// selector on each query that has both plan families available.
type Selector interface {
	Register(table string)
	ShouldUseLLC(table string) bool
}

// NewDefaultSelector returns the static default policy: always HLC.
func NewDefaultSelector() Selector { return &defaultSelector{tables: set.New[string](8)} }

type defaultSelector struct {
	mu     sync.Mutex
	tables *set.Set[string]
}

func (s *defaultSelector) Register(table string) {
	s.mu.Lock()
	s.tables.Insert(table)
	s.mu.Unlock()
}

func (s *defaultSelector) ShouldUseLLC(string) bool { return false }

// NewPolicySelector returns a selector answering from useLLC, typically
// backed by the hot-reloaded runtime routing policy.
func NewPolicySelector(useLLC func(table string) bool) Selector {
	if useLLC == nil {
		return NewDefaultSelector()
	}
	return &policySelector{tables: set.New[string](8), useLLC: useLLC}
}

type policySelector struct {
	mu     sync.Mutex
	tables *set.Set[string]
	useLLC func(table string) bool
}

func (s *policySelector) Register(table string) {
	s.mu.Lock()
	s.tables.Insert(table)
	s.mu.Unlock()
}

func (s *policySelector) ShouldUseLLC(table string) bool { return s.useLLC(table) }
