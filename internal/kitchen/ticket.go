package kitchen

import (
	"time"

	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/google/uuid"
)

// Ticket is one order as the kitchen board shows it.
type Ticket struct {
	ID             string             `json:"id"`
	Source         string             `json:"source"`
	OrderID        uuid.UUID          `json:"order_id"`
	TableNumber    int                `json:"table_number"`
	GuestCount     int                `json:"guest_count"`
	Items          []TicketItem       `json:"items"`
	Status         enums.TicketStatus `json:"status"`
	Urgency        enums.Urgency      `json:"urgency"`
	SentAt         time.Time          `json:"sent_at"`
	MinutesWaiting int                `json:"minutes_waiting"`
}

type TicketItem struct {
	ItemID         uuid.UUID        `json:"item_id"`
	Name           string           `json:"name"`
	Quantity       int              `json:"quantity"`
	Status         enums.ItemStatus `json:"status"`
	Category       string           `json:"category,omitempty"`
	Customizations []string         `json:"customizations,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

var ticketRank = map[enums.TicketStatus]int{
	enums.TicketStatusNew:        0,
	enums.TicketStatusInProgress: 1,
	enums.TicketStatusReady:      2,
}

var urgencyRank = map[enums.Urgency]int{
	enums.UrgencyNormal:  0,
	enums.UrgencyWarning: 1,
	enums.UrgencyUrgent:  2,
}

// ticketStatus is the least advanced column among the items.
func ticketStatus(items []TicketItem) enums.TicketStatus {
	status := enums.TicketStatusReady
	for _, item := range items {
		s := enums.TicketStatusFor(item.Status)
		if ticketRank[s] < ticketRank[status] {
			status = s
		}
	}
	if len(items) == 0 {
		return enums.TicketStatusNew
	}
	return status
}

func urgencyFor(waiting, warning, urgent time.Duration) enums.Urgency {
	switch {
	case waiting >= urgent:
		return enums.UrgencyUrgent
	case waiting >= warning:
		return enums.UrgencyWarning
	default:
		return enums.UrgencyNormal
	}
}
