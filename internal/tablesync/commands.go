package tablesync

import (
	"context"

	"github.com/angelmondragon/dinein-backend/internal/orders"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const genericFailure = "Something went wrong. Please try again."

var titles = map[string]string{
	"create_order":         "Could not open order",
	"add_item":             "Could not add item",
	"remove_item":          "Could not remove item",
	"update_item_quantity": "Could not update quantity",
	"update_guest_count":   "Could not update guests",
	"send_to_kitchen":      "Could not send to kitchen",
	"request_check":        "Could not request check",
	"mark_paid":            "Could not record payment",
	"update_linked_tables": "Could not link tables",
}

// run wraps a command with the loading flag, the error field and the user
// notification.
func (s *Syncer) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx = s.logg.WithOperation(ctx, op)
	s.mu.Lock()
	s.loading++
	s.lastErr = nil
	s.mu.Unlock()
	s.emit()

	defer func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
		s.emit()
	}()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.notifier.Notify(ctx, Notification{Title: titles[op], Message: pkgerrors.UserMessage(err, genericFailure)})
	s.logg.Error(ctx, "order command failed", err)
	return err
}

func (s *Syncer) activeOrderID() (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "No active order for this table")
	}
	return s.order.ID, nil
}

// CreateOrder opens an order on the current table.
func (s *Syncer) CreateOrder(ctx context.Context, arg CreateOrderArg) (uuid.UUID, error) {
	var orderID uuid.UUID
	err := s.run(ctx, "create_order", func(ctx context.Context) error {
		s.mu.Lock()
		tableID := s.tableID
		s.mu.Unlock()
		if tableID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "Select a table first")
		}
		if arg == nil {
			arg = GuestCount(1)
		}
		id, err := s.commands.CreateOrder(ctx, arg.orderInput(tableID))
		orderID = id
		return err
	})
	return orderID, err
}

// AddItem adds a line to the cached order; input.OrderID is filled in.
func (s *Syncer) AddItem(ctx context.Context, input orders.AddItemInput) (uuid.UUID, error) {
	var itemID uuid.UUID
	err := s.run(ctx, "add_item", func(ctx context.Context) error {
		orderID, err := s.activeOrderID()
		if err != nil {
			return err
		}
		input.OrderID = orderID
		itemID, err = s.commands.AddItem(ctx, input)
		return err
	})
	return itemID, err
}

func (s *Syncer) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	return s.run(ctx, "remove_item", func(ctx context.Context) error {
		return s.commands.RemoveItem(ctx, itemID)
	})
}

// UpdateItemQuantity removes the item for non-positive quantities. On success
// the items are re-read without waiting for the feed.
func (s *Syncer) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	err := s.run(ctx, "update_item_quantity", func(ctx context.Context) error {
		return s.commands.UpdateItemQuantity(ctx, itemID, quantity)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	gen := s.gen
	var orderID uuid.UUID
	if s.order != nil {
		orderID = s.order.ID
	}
	s.mu.Unlock()
	if orderID != uuid.Nil {
		s.fetchItems(ctx, gen, orderID)
	}
	return nil
}

func (s *Syncer) UpdateGuestCount(ctx context.Context, guests int) error {
	return s.run(ctx, "update_guest_count", func(ctx context.Context) error {
		orderID, err := s.activeOrderID()
		if err != nil {
			return err
		}
		return s.commands.UpdateGuestCount(ctx, orderID, guests)
	})
}

// SendToKitchen refuses locally when neither the order row nor the enriched
// cache holds an item.
func (s *Syncer) SendToKitchen(ctx context.Context) (int, error) {
	sent := 0
	err := s.run(ctx, "send_to_kitchen", func(ctx context.Context) error {
		s.mu.Lock()
		order := s.order
		empty := order == nil || (len(order.Items) == 0 && len(s.items) == 0)
		s.mu.Unlock()
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "No active order for this table")
		}
		if empty {
			return pkgerrors.New(pkgerrors.CodeValidation, "Add items before sending to the kitchen")
		}
		n, err := s.commands.SendToKitchen(ctx, order.ID)
		sent = n
		return err
	})
	return sent, err
}

func (s *Syncer) RequestCheck(ctx context.Context) error {
	return s.run(ctx, "request_check", func(ctx context.Context) error {
		orderID, err := s.activeOrderID()
		if err != nil {
			return err
		}
		return s.commands.RequestCheck(ctx, orderID)
	})
}

func (s *Syncer) MarkPaid(ctx context.Context, method enums.PaymentMethod, amount decimal.Decimal) error {
	return s.run(ctx, "mark_paid", func(ctx context.Context) error {
		if method == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "Select a payment method")
		}
		if !amount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "Payment amount must be greater than zero")
		}
		orderID, err := s.activeOrderID()
		if err != nil {
			return err
		}
		return s.commands.MarkPaid(ctx, orders.MarkPaidInput{OrderID: orderID, PaymentMethod: method, Amount: amount})
	})
}

// UpdateLinkedTables replaces the linked tables by number.
func (s *Syncer) UpdateLinkedTables(ctx context.Context, numbers []int) error {
	return s.updateLinks(ctx, orders.LinkTablesInput{TableNumbers: numbers})
}

// UpdateLinkedTablesByID replaces the linked tables by table id.
func (s *Syncer) UpdateLinkedTablesByID(ctx context.Context, ids []uuid.UUID) error {
	return s.updateLinks(ctx, orders.LinkTablesInput{TableIDs: ids})
}

func (s *Syncer) updateLinks(ctx context.Context, input orders.LinkTablesInput) error {
	return s.run(ctx, "update_linked_tables", func(ctx context.Context) error {
		orderID, err := s.activeOrderID()
		if err != nil {
			return err
		}
		input.OrderID = orderID
		_, err = s.commands.UpdateLinkedTables(ctx, input)
		return err
	})
}
