package tablesync

import (
	"github.com/angelmondragon/dinein-backend/internal/orders"
	"github.com/google/uuid"
)

// CreateOrderArg is either a GuestCount or a CreateOrderParams.
type CreateOrderArg interface {
	orderInput(tableID uuid.UUID) orders.CreateOrderInput
}

// GuestCount opens an order with only a party size.
type GuestCount int

func (g GuestCount) orderInput(tableID uuid.UUID) orders.CreateOrderInput {
	return orders.CreateOrderInput{TableID: tableID, GuestCount: int(g)}
}

// CreateOrderParams opens an order with linked tables.
type CreateOrderParams struct {
	GuestCount     int
	LinkedTables   []int
	LinkedTableIDs []uuid.UUID
}

func (p CreateOrderParams) orderInput(tableID uuid.UUID) orders.CreateOrderInput {
	return orders.CreateOrderInput{
		TableID:        tableID,
		GuestCount:     p.GuestCount,
		LinkedTables:   append([]int(nil), p.LinkedTables...),
		LinkedTableIDs: append([]uuid.UUID(nil), p.LinkedTableIDs...),
	}
}
