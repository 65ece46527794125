package realtime

import (
	"context"
	"sync/atomic"
)

// Handler receives change events for a subscription.
type Handler func(ctx context.Context, event ChangeEvent)

// Subscription is a live registration on a Feed.
type Subscription interface {
	// Unsubscribe stops delivery. A call that already passed the delivery
	// check may still run after it returns; handlers that need a hard cut
	// guard themselves. Calling it from inside the subscription's own
	// handler is allowed.
	Unsubscribe() error
}

// Feed is a per-table, equality-filtered change stream.
type Feed interface {
	Subscribe(ctx context.Context, table string, filter Filter, handler Handler) (Subscription, error)
}

// Publisher pushes change events to a transport.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// gate tracks whether a subscription still accepts deliveries.
type gate struct {
	closed atomic.Bool
}

func (g *gate) open() bool {
	return !g.closed.Load()
}

// shut reports whether this call closed the gate.
func (g *gate) shut() bool {
	return g.closed.CompareAndSwap(false, true)
}
