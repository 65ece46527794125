package enums

import (
	"fmt"
	"strings"
)

// OrderStatus tracks a dine-in order through the floor and kitchen.
type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "CREATED"
	OrderStatusSentToKitchen  OrderStatus = "SENT_TO_KITCHEN"
	OrderStatusInPrep         OrderStatus = "IN_PREP"
	OrderStatusReady          OrderStatus = "READY"
	OrderStatusServed         OrderStatus = "SERVED"
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusClosed         OrderStatus = "CLOSED"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusSentToKitchen,
	OrderStatusInPrep,
	OrderStatusReady,
	OrderStatusServed,
	OrderStatusPendingPayment,
	OrderStatusClosed,
	OrderStatusPaid,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// ActiveOrderStatuses is the open set; at most one order per table may be in it.
var ActiveOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusSentToKitchen,
	OrderStatusInPrep,
	OrderStatusReady,
	OrderStatusServed,
	OrderStatusPendingPayment,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive is true unless the order is closed, paid, completed or cancelled.
// Unknown values count as active so a new server status never frees a table.
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusClosed, OrderStatusPaid, OrderStatusCompleted, OrderStatusCancelled:
		return false
	}
	return true
}

// IsFoodInProgress groups the kitchen-side statuses.
func (s OrderStatus) IsFoodInProgress() bool {
	switch s {
	case OrderStatusSentToKitchen, OrderStatusInPrep, OrderStatusReady, OrderStatusServed:
		return true
	}
	return false
}

// ActiveOrderStatusStrings is ActiveOrderStatuses as plain strings for query args.
func ActiveOrderStatusStrings() []string {
	out := make([]string, 0, len(ActiveOrderStatuses))
	for _, s := range ActiveOrderStatuses {
		out = append(out, string(s))
	}
	return out
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := OrderStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validOrderStatuses {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
