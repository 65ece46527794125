package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

func startWSServer(t *testing.T, hub *Hub) string {
	t.Helper()
	srv := NewServer(hub, logger.Nop(), ServerOptions{
		Tables: []string{enums.TableOrders, enums.TableCustomerTabs},
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWSFeedReceivesFilteredEvents(t *testing.T) {
	hub := NewHub()
	url := startWSServer(t, hub)
	ctx := context.Background()

	feed, err := DialWSFeed(ctx, url, nil, logger.Nop())
	require.NoError(t, err)
	defer feed.Close()

	got := make(chan ChangeEvent, 4)
	sub, err := feed.Subscribe(ctx, enums.TableOrders, Eq("table_id", "t-1"), func(_ context.Context, e ChangeEvent) {
		got <- e
	})
	require.NoError(t, err)
	waitFor(t, func() bool { return hub.Len() == 1 })

	want := orderEvent(t, enums.ChangeUpdate, map[string]any{"table_id": "t-1", "status": "READY"})
	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeUpdate, map[string]any{"table_id": "t-2"})))
	require.NoError(t, hub.Publish(ctx, want))

	select {
	case e := <-got:
		assert.Equal(t, want.ID, e.ID)
		assert.Equal(t, enums.ChangeUpdate, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected event over websocket")
	}

	require.NoError(t, sub.Unsubscribe())
	waitFor(t, func() bool { return hub.Len() == 0 })
}

func TestWSFeedRejectsUnknownTable(t *testing.T) {
	url := startWSServer(t, NewHub())
	ctx := context.Background()

	feed, err := DialWSFeed(ctx, url, nil, logger.Nop())
	require.NoError(t, err)
	defer feed.Close()

	_, err = feed.Subscribe(ctx, "menu_items", Filter{}, func(context.Context, ChangeEvent) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}

func TestServerDropsSubscriptionsOnDisconnect(t *testing.T) {
	hub := NewHub()
	url := startWSServer(t, hub)
	ctx := context.Background()

	feed, err := DialWSFeed(ctx, url, nil, logger.Nop())
	require.NoError(t, err)
	_, err = feed.Subscribe(ctx, enums.TableCustomerTabs, Filter{}, func(context.Context, ChangeEvent) {})
	require.NoError(t, err)
	waitFor(t, func() bool { return hub.Len() == 1 })

	require.NoError(t, feed.Close())
	waitFor(t, func() bool { return hub.Len() == 0 })

	_, err = feed.Subscribe(ctx, enums.TableOrders, Filter{}, func(context.Context, ChangeEvent) {})
	require.Error(t, err)
}
