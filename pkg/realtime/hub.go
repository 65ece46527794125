package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Hub is an in-process Feed. Publish delivers synchronously on the caller's
// goroutine in subscription order.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*hubSubscription
}

type hubSubscription struct {
	gate
	id      uint64
	hub     *Hub
	table   string
	filter  Filter
	handler Handler
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*hubSubscription)}
}

func (h *Hub) Subscribe(_ context.Context, table string, filter Filter, handler Handler) (Subscription, error) {
	if table == "" {
		return nil, errors.New("table is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &hubSubscription{id: h.nextID, hub: h, table: table, filter: filter, handler: handler}
	h.subs[sub.id] = sub
	return sub, nil
}

// Publish fans the event out to every matching subscription.
func (h *Hub) Publish(ctx context.Context, event ChangeEvent) error {
	h.mu.RLock()
	targets := make([]*hubSubscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.table == event.Table {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	for _, sub := range targets {
		if !sub.open() || !sub.filter.Matches(event) {
			continue
		}
		sub.handler(ctx, event)
	}
	return nil
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *hubSubscription) Unsubscribe() error {
	if !s.shut() {
		return nil
	}
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
	return nil
}
