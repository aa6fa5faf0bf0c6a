package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/telemetry/correlation"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	feed := NewFeed(nil, 0)
	sub := feed.Subscribe(4)
	defer sub.Close()

	ctx, run := correlation.Begin(context.Background(), "rebuild")
	feed.Publish(ctx, Event{Category: Routing, Type: "rebuild_succeeded", Table: "t_OFFLINE"})

	select {
	case ev := <-sub.C():
		assert.Equal(t, Routing, ev.Category)
		assert.Equal(t, "t_OFFLINE", ev.Table)
		assert.Equal(t, run.ID, ev.RunID, "publish must stamp the active run")
		assert.False(t, ev.Time.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishIgnoresUncategorizedEvents(t *testing.T) {
	feed := NewFeed(nil, 0)
	feed.Publish(context.Background(), Event{Type: "rebuild_succeeded"})
	assert.Zero(t, feed.Stats().Published)
	assert.Empty(t, feed.Recent())
}

func TestSubscriptionCategoryFilter(t *testing.T) {
	feed := NewFeed(nil, 0)
	sub := feed.Subscribe(4, TimeBoundary)
	defer sub.Close()

	ctx := context.Background()
	feed.Publish(ctx, Event{Category: Routing, Type: "rebuild_succeeded"})
	feed.Publish(ctx, Event{Category: TimeBoundary, Type: "update_failed", Table: "t_OFFLINE"})

	select {
	case ev := <-sub.C():
		assert.Equal(t, TimeBoundary, ev.Category, "routing events must be filtered out")
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected second delivery: %+v", ev)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	feed := NewFeed(nil, 0)
	sub := feed.Subscribe(1)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		feed.Publish(context.Background(), Event{Category: Routing, Type: "rebuild_succeeded"})
	}

	stats := feed.Stats()
	assert.Equal(t, uint64(5), stats.Published)
	assert.Equal(t, uint64(4), stats.Dropped)
	assert.Equal(t, uint64(4), sub.Dropped())
}

func TestRecentKeepsBoundedChronologicalRing(t *testing.T) {
	feed := NewFeed(nil, 3)
	ctx := context.Background()
	for _, table := range []string{"a", "b", "c", "d", "e"} {
		feed.Publish(ctx, Event{Category: Routing, Type: "rebuild_succeeded", Table: table})
	}

	recent := feed.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].Table)
	assert.Equal(t, "d", recent[1].Table)
	assert.Equal(t, "e", recent[2].Table)
}

func TestCloseDetachesAndClosesChannel(t *testing.T) {
	feed := NewFeed(nil, 0)
	sub := feed.Subscribe(1)
	sub.Close()
	sub.Close() // idempotent

	_, open := <-sub.C()
	assert.False(t, open)
	assert.Zero(t, feed.Stats().Subscribers)

	// Publishing after the only subscriber left still records the event.
	feed.Publish(context.Background(), Event{Category: Routing, Type: "rebuild_succeeded"})
	assert.Equal(t, uint64(1), feed.Stats().Published)
}
