package kitchen

import (
	"context"
	"time"

	"github.com/angelmondragon/dinein-backend/internal/orders"
)

type kitchenQueue interface {
	KitchenQueue(ctx context.Context) ([]orders.KitchenEntry, error)
}

// DineInSource turns active orders with sent items into tickets.
type DineInSource struct {
	queue kitchenQueue
}

func NewDineInSource(queue kitchenQueue) *DineInSource {
	return &DineInSource{queue: queue}
}

func (s *DineInSource) Name() string { return "dine_in" }

func (s *DineInSource) Tickets(ctx context.Context) ([]Ticket, error) {
	entries, err := s.queue.KitchenQueue(ctx)
	if err != nil {
		return nil, err
	}
	tickets := make([]Ticket, 0, len(entries))
	for _, entry := range entries {
		ticket := Ticket{
			ID:          s.Name() + ":" + entry.Order.ID.String(),
			Source:      s.Name(),
			OrderID:     entry.Order.ID,
			TableNumber: entry.Order.TableNumber,
			GuestCount:  entry.Order.GuestCount,
			Items:       make([]TicketItem, 0, len(entry.Items)),
		}
		var sentAt time.Time
		for _, item := range entry.Items {
			name := item.Name
			if item.KitchenDisplayName != nil && *item.KitchenDisplayName != "" {
				name = *item.KitchenDisplayName
			}
			ti := TicketItem{
				ItemID:         item.ID,
				Name:           name,
				Quantity:       item.Quantity,
				Status:         item.Status,
				Customizations: item.Customizations.Names(),
			}
			if item.CategoryName != nil {
				ti.Category = *item.CategoryName
			}
			if item.Notes != nil {
				ti.Notes = *item.Notes
			}
			ticket.Items = append(ticket.Items, ti)
			if item.SentToKitchenAt != nil && (sentAt.IsZero() || item.SentToKitchenAt.Before(sentAt)) {
				sentAt = *item.SentToKitchenAt
			}
		}
		if sentAt.IsZero() {
			sentAt = entry.Order.CreatedAt
		}
		ticket.SentAt = sentAt
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}
