package realtime

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Forward subscribes src to every table unfiltered and republishes into dst.
// It lets one broker subscription per table serve many local subscribers.
func Forward(ctx context.Context, src Feed, dst Publisher, tables ...string) ([]Subscription, error) {
	subs := make([]Subscription, 0, len(tables))
	for _, table := range tables {
		sub, err := src.Subscribe(ctx, table, Filter{}, func(ctx context.Context, event ChangeEvent) {
			_ = dst.Publish(ctx, event)
		})
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("forward %s: %w", table, err), UnsubscribeAll(subs))
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// UnsubscribeAll tears down every subscription and combines the errors.
func UnsubscribeAll(subs []Subscription) error {
	var err error
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		err = multierr.Append(err, sub.Unsubscribe())
	}
	return err
}
