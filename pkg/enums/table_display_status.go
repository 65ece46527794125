package enums

// TableDisplayStatus is the floor-plan state shown for a table.
type TableDisplayStatus string

const (
	TableDisplayAvailable       TableDisplayStatus = "AVAILABLE"
	TableDisplaySeated          TableDisplayStatus = "SEATED"
	TableDisplayFoodSent        TableDisplayStatus = "FOOD_SENT"
	TableDisplayRequestingCheck TableDisplayStatus = "REQUESTING_CHECK"
)

func (s TableDisplayStatus) String() string {
	return string(s)
}

// DisplayStatusFor maps an order status to its table display status. The
// empty status stands for "no order".
func DisplayStatusFor(status OrderStatus) TableDisplayStatus {
	switch {
	case status == OrderStatusCreated:
		return TableDisplaySeated
	case status.IsFoodInProgress():
		return TableDisplayFoodSent
	case status == OrderStatusPendingPayment:
		return TableDisplayRequestingCheck
	default:
		return TableDisplayAvailable
	}
}
