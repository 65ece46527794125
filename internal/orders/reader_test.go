package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/dinein-backend/pkg/db/types"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

func TestActiveOrderForTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.reader.ActiveOrderForTable(ctx, f.tables[1].ID)
	require.NoError(t, err)
	assert.Nil(t, order)

	orderID := f.openOrder(t, 1)
	_, err = f.svc.AddItem(ctx, AddItemInput{OrderID: orderID, Name: "Nachos", Quantity: 1, Price: decimal.NewFromInt(8)})
	require.NoError(t, err)

	order, err = f.reader.ActiveOrderForTable(ctx, f.tables[1].ID)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, orderID, order.ID)
	assert.Len(t, order.Items, 1)
}

func TestEnrichedItemsBackfillFromMenu(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	category := models.MenuCategory{Name: "Mains"}
	require.NoError(t, f.conn.Create(&category).Error)
	display := "BRGR"
	veggie := true
	menuItem := models.MenuItem{
		Name:               "Veggie Burger",
		CategoryID:         &category.ID,
		KitchenDisplayName: &display,
		IsVegetarian:       &veggie,
		Price:              decimal.NewFromInt(14),
		IsActive:           true,
	}
	require.NoError(t, f.conn.Create(&menuItem).Error)

	orderID := f.openOrder(t, 1)
	_, err := f.svc.AddItem(ctx, AddItemInput{OrderID: orderID, MenuItemID: &menuItem.ID, Name: "Veggie Burger", Quantity: 1, Price: decimal.NewFromInt(14)})
	require.NoError(t, err)
	ghost := uuid.New()
	require.NoError(t, f.conn.Create(&models.DineInOrderItem{
		OrderID:    orderID,
		TableID:    f.tables[1].ID,
		MenuItemID: &ghost,
		Name:       "Off menu",
		Quantity:   2,
		UnitPrice:  decimal.NewFromInt(3),
		Status:     enums.ItemStatusPending,
	}).Error)

	items, err := f.reader.EnrichedItems(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byName := map[string]EnrichedItem{}
	for _, item := range items {
		byName[item.Name] = item
	}
	burger := byName["Veggie Burger"]
	require.NotNil(t, burger.CategoryName)
	assert.Equal(t, "Mains", *burger.CategoryName)
	require.NotNil(t, burger.KitchenDisplayName)
	assert.Equal(t, "BRGR", *burger.KitchenDisplayName)
	require.NotNil(t, burger.IsVegetarian)
	assert.True(t, *burger.IsVegetarian)

	offMenu := byName["Off menu"]
	assert.Nil(t, offMenu.CategoryName)
	assert.Nil(t, offMenu.KitchenDisplayName)
	assert.Equal(t, "6.00", offMenu.LineTotal.Decimal.StringFixed(2))
}

func TestEnrichedItemsMissingLineTotalMatchesOrderSubtotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orderID := f.openOrder(t, 1)
	require.NoError(t, f.conn.Create(&models.DineInOrderItem{
		OrderID:   orderID,
		TableID:   f.tables[1].ID,
		Name:      "Wings",
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(10),
		Customizations: dbtypes.Customizations{
			{Name: "Extra sauce", PriceAdjustment: decimal.RequireFromString("1.50")},
		},
		Status: enums.ItemStatusPending,
	}).Error)
	_, err := f.svc.AddItem(ctx, AddItemInput{OrderID: orderID, Name: "Soda", Quantity: 1, Price: decimal.NewFromInt(5)})
	require.NoError(t, err)

	items, err := f.reader.EnrichedItems(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	sum := decimal.Zero
	for _, item := range items {
		require.True(t, item.LineTotal.Valid)
		if item.Name == "Wings" {
			assert.Equal(t, "20.00", item.LineTotal.Decimal.StringFixed(2))
		}
		sum = sum.Add(item.LineTotal.Decimal)
	}
	order := f.order(t, orderID)
	assert.Equal(t, "25.00", order.Subtotal.StringFixed(2))
	assert.True(t, order.Subtotal.Equal(sum), "subtotal %s, items %s", order.Subtotal, sum)
}

func TestKitchenQueueGroupsByOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.openOrder(t, 1)
	second := f.openOrder(t, 2)
	for _, id := range []uuid.UUID{first, second} {
		_, err := f.svc.AddItem(ctx, AddItemInput{OrderID: id, Name: "Fries", Quantity: 1, Price: decimal.NewFromInt(4)})
		require.NoError(t, err)
		_, err = f.svc.SendToKitchen(ctx, id)
		require.NoError(t, err)
	}
	_, err := f.svc.AddItem(ctx, AddItemInput{OrderID: first, Name: "Held", Quantity: 1, Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	queue, err := f.reader.KitchenQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	for _, entry := range queue {
		require.Len(t, entry.Items, 1)
		assert.Equal(t, "Fries", entry.Items[0].Name)
	}
}
