package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

func orderEvent(t *testing.T, typ enums.ChangeType, row map[string]any) ChangeEvent {
	t.Helper()
	data, err := json.Marshal(row)
	require.NoError(t, err)
	event := ChangeEvent{ID: uuid.New(), Table: enums.TableOrders, Type: typ}
	if typ == enums.ChangeDelete {
		event.Old = data
	} else {
		event.New = data
	}
	return event
}

func TestHubDeliversMatchingEventsOnly(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var got []string
	_, err := hub.Subscribe(ctx, enums.TableOrders, Eq("table_id", "t-1"), func(_ context.Context, e ChangeEvent) {
		got = append(got, string(e.Type))
	})
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeInsert, map[string]any{"table_id": "t-1"})))
	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeUpdate, map[string]any{"table_id": "t-2"})))
	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeDelete, map[string]any{"table_id": "t-1"})))

	other := orderEvent(t, enums.ChangeInsert, map[string]any{"table_id": "t-1"})
	other.Table = enums.TableCustomerTabs
	require.NoError(t, hub.Publish(ctx, other))

	assert.Equal(t, []string{"INSERT", "DELETE"}, got)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	calls := 0
	sub, err := hub.Subscribe(ctx, enums.TableOrders, Filter{}, func(context.Context, ChangeEvent) { calls++ })
	require.NoError(t, err)
	require.Equal(t, 1, hub.Len())

	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeInsert, map[string]any{"id": "x"})))
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeInsert, map[string]any{"id": "y"})))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, hub.Len())
}

func TestHubUnsubscribeDuringFanOutSkipsLaterSubscriber(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var second Subscription
	secondCalls := 0
	_, err := hub.Subscribe(ctx, enums.TableOrders, Filter{}, func(context.Context, ChangeEvent) {
		_ = second.Unsubscribe()
	})
	require.NoError(t, err)
	second, err = hub.Subscribe(ctx, enums.TableOrders, Filter{}, func(context.Context, ChangeEvent) { secondCalls++ })
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, orderEvent(t, enums.ChangeInsert, map[string]any{})))
	assert.Zero(t, secondCalls)
}

func TestHubUnsubscribeFromOwnHandler(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	calls := 0
	var sub Subscription
	sub, err := hub.Subscribe(ctx, enums.TableOrders, Filter{}, func(_ context.Context, _ ChangeEvent) {
		calls++
		require.NoError(t, sub.Unsubscribe())
	})
	require.NoError(t, err)

	event := orderEvent(t, enums.ChangeInsert, map[string]any{"table_id": "t-1"})
	require.NoError(t, hub.Publish(ctx, event))
	require.NoError(t, hub.Publish(ctx, event))
	assert.Equal(t, 1, calls)
	assert.Zero(t, hub.Len())
}

func TestHubSubscribeValidation(t *testing.T) {
	hub := NewHub()
	_, err := hub.Subscribe(context.Background(), "", Filter{}, func(context.Context, ChangeEvent) {})
	require.Error(t, err)
	_, err = hub.Subscribe(context.Background(), enums.TableOrders, Filter{}, nil)
	require.Error(t, err)
}

func TestFilterMatches(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		row    map[string]any
		want   bool
	}{
		{name: "zero filter", filter: Filter{}, row: map[string]any{"a": 1}, want: true},
		{name: "string equal", filter: Eq("table_id", "abc"), row: map[string]any{"table_id": "abc"}, want: true},
		{name: "string differs", filter: Eq("table_id", "abc"), row: map[string]any{"table_id": "abd"}, want: false},
		{name: "integral number", filter: Eq("table_number", 7), row: map[string]any{"table_number": 7}, want: true},
		{name: "number differs", filter: Eq("table_number", 7), row: map[string]any{"table_number": 17}, want: false},
		{name: "missing column", filter: Eq("order_id", "o"), row: map[string]any{"id": "o"}, want: false},
		{name: "null column", filter: Eq("order_id", "o"), row: map[string]any{"order_id": nil}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := orderEvent(t, enums.ChangeUpdate, tc.row)
			assert.Equal(t, tc.want, tc.filter.Matches(event))
		})
	}
}

func TestFilterUsesOldRowForDeletes(t *testing.T) {
	event := orderEvent(t, enums.ChangeDelete, map[string]any{"order_id": "o-1"})
	assert.True(t, Eq("order_id", "o-1").Matches(event))
	assert.Equal(t, "order_id=eq.o-1", Eq("order_id", "o-1").String())
	assert.Equal(t, "*", Filter{}.String())
}

type failingFeed struct {
	failOn string
	subs   []*countingSub
}

type countingSub struct{ unsubscribed int }

func (s *countingSub) Unsubscribe() error {
	s.unsubscribed++
	return nil
}

func (f *failingFeed) Subscribe(_ context.Context, table string, _ Filter, _ Handler) (Subscription, error) {
	if table == f.failOn {
		return nil, assert.AnError
	}
	sub := &countingSub{}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func TestForwardRepublishesIntoHub(t *testing.T) {
	src := NewHub()
	dst := NewHub()
	ctx := context.Background()

	subs, err := Forward(ctx, src, dst, enums.TableOrders, enums.TableCustomerTabs)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	received := 0
	_, err = dst.Subscribe(ctx, enums.TableOrders, Eq("table_id", "t-9"), func(context.Context, ChangeEvent) { received++ })
	require.NoError(t, err)

	require.NoError(t, src.Publish(ctx, orderEvent(t, enums.ChangeInsert, map[string]any{"table_id": "t-9"})))
	require.NoError(t, src.Publish(ctx, orderEvent(t, enums.ChangeInsert, map[string]any{"table_id": "t-1"})))
	assert.Equal(t, 1, received)

	require.NoError(t, UnsubscribeAll(subs))
	require.NoError(t, src.Publish(ctx, orderEvent(t, enums.ChangeInsert, map[string]any{"table_id": "t-9"})))
	assert.Equal(t, 1, received)
}

func TestForwardRollsBackOnFailure(t *testing.T) {
	feed := &failingFeed{failOn: enums.TableCustomerTabs}
	_, err := Forward(context.Background(), feed, NewHub(), enums.TableOrders, enums.TableCustomerTabs)
	require.Error(t, err)
	require.Len(t, feed.subs, 1)
	assert.Equal(t, 1, feed.subs[0].unsubscribed)
}
