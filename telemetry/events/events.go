// Package events is the broker's event feed: typed occurrences from the
// routing subsystem (rebuilds, boundary updates, policy reloads) fanned out
// to category-filtered subscribers and retained in a bounded ring so
// snapshot dumps can show what the broker did recently. Delivery is
// non-blocking; a slow subscriber loses events, never stalls a rebuild.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/tesseradb/tessera/telemetry/correlation"
	"github.com/tesseradb/tessera/telemetry/metrics"
)

// Category partitions events by the subsystem that emitted them.
type Category string

const (
	Routing      Category = "routing"
	TimeBoundary Category = "time_boundary"
	ConfigChange Category = "config_change"
	Health       Category = "health"
)

// Event is one occurrence in the routing subsystem. Table is set whenever
// the event concerns a single table; RunID ties the event to the
// change-processing run that produced it.
type Event struct {
	Time     time.Time      `json:"time"`
	Category Category       `json:"category"`
	Type     string         `json:"type"`
	Table    string         `json:"table,omitempty"`
	RunID    string         `json:"run_id,omitempty"`
	Err      string         `json:"error,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// FeedStats summarizes feed activity.
type FeedStats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

const defaultRecentCap = 64

// Feed retains recent events and fans new ones out to subscribers.
type Feed struct {
	mu        sync.Mutex
	subs      map[*Subscription]struct{}
	recent    []Event // ring buffer, recent[next] is the oldest once filled
	next      int
	filled    bool
	published uint64
	dropped   uint64

	mPublished metrics.Counter
	mDropped   metrics.Counter
}

// NewFeed creates a feed keeping the last recentCap events (0 uses the
// default). A nil provider disables instrumentation.
func NewFeed(provider metrics.Provider, recentCap int) *Feed {
	if recentCap <= 0 {
		recentCap = defaultRecentCap
	}
	f := &Feed{
		subs:   make(map[*Subscription]struct{}),
		recent: make([]Event, recentCap),
	}
	if provider != nil {
		f.mPublished = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "tessera", Subsystem: "events", Name: "published_total",
			Help: "Events published to the broker feed", Labels: []string{"category"},
		}})
		f.mDropped = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "tessera", Subsystem: "events", Name: "dropped_total",
			Help: "Events dropped by slow subscribers", Labels: []string{"category"},
		}})
	}
	return f
}

// Publish records ev and delivers it to every matching subscriber. The
// event's time and run ID are stamped from ctx when absent.
func (f *Feed) Publish(ctx context.Context, ev Event) {
	if ev.Category == "" {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.RunID == "" {
		ev.RunID = correlation.ID(ctx)
	}

	f.mu.Lock()
	f.recent[f.next] = ev
	f.next++
	if f.next == len(f.recent) {
		f.next = 0
		f.filled = true
	}
	f.published++
	for sub := range f.subs {
		if !sub.wants(ev.Category) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
			f.dropped++
			if f.mDropped != nil {
				f.mDropped.Inc(1, string(ev.Category))
			}
		}
	}
	f.mu.Unlock()

	if f.mPublished != nil {
		f.mPublished.Inc(1, string(ev.Category))
	}
}

// Subscribe registers a receiver for the given categories; no categories
// means everything. buffer <= 0 defaults to 16.
func (f *Feed) Subscribe(buffer int, categories ...Category) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{feed: f, ch: make(chan Event, buffer)}
	if len(categories) > 0 {
		sub.categories = make(map[Category]struct{}, len(categories))
		for _, c := range categories {
			sub.categories[c] = struct{}{}
		}
	}
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	return sub
}

// Recent returns the retained events, oldest first.
func (f *Feed) Recent() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.filled {
		return append([]Event(nil), f.recent[:f.next]...)
	}
	out := make([]Event, 0, len(f.recent))
	out = append(out, f.recent[f.next:]...)
	return append(out, f.recent[:f.next]...)
}

// Stats reports feed counters.
func (f *Feed) Stats() FeedStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FeedStats{Subscribers: len(f.subs), Published: f.published, Dropped: f.dropped}
}

// Subscription is one receiver's handle on the feed.
type Subscription struct {
	feed       *Feed
	ch         chan Event
	categories map[Category]struct{}
	dropped    uint64
}

func (s *Subscription) wants(c Category) bool {
	if s.categories == nil {
		return true
	}
	_, ok := s.categories[c]
	return ok
}

// C is the receive channel. It closes when the subscription does.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped reports how many events this subscriber lost to backpressure.
func (s *Subscription) Dropped() uint64 {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.feed.mu.Lock()
	_, registered := s.feed.subs[s]
	delete(s.feed.subs, s)
	s.feed.mu.Unlock()
	if registered {
		close(s.ch)
	}
}
