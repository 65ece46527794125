package enums

import (
	"fmt"
	"strings"
)

// ChangeType is the kind of row change carried by the realtime feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

func ParseChangeType(value string) (ChangeType, error) {
	c := ChangeType(strings.ToUpper(strings.TrimSpace(value)))
	if c.IsValid() {
		return c, nil
	}
	return "", fmt.Errorf("invalid change type %q", value)
}

// Table names observed through the realtime feed.
const (
	TableOrders       = "orders"
	TableOrderItems   = "dine_in_order_items"
	TableCustomerTabs = "customer_tabs"
	TablePOSTables    = "pos_tables"
)

// RealtimeTables lists every table whose changes are captured.
func RealtimeTables() []string {
	return []string{TableOrders, TableOrderItems, TableCustomerTabs, TablePOSTables}
}

// Urgency grades how long a kitchen ticket has been waiting.
type Urgency string

const (
	UrgencyNormal  Urgency = "normal"
	UrgencyWarning Urgency = "warning"
	UrgencyUrgent  Urgency = "urgent"
)

// TicketStatus is the kitchen board column of a ticket.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusReady      TicketStatus = "ready"
)

// TicketStatusFor maps an item status to its board column.
func TicketStatusFor(s ItemStatus) TicketStatus {
	switch s {
	case ItemStatusPreparing:
		return TicketStatusInProgress
	case ItemStatusReady, ItemStatusServed:
		return TicketStatusReady
	default:
		return TicketStatusNew
	}
}
