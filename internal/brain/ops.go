package brain

// Operation names accepted by POST /api/v1/brain/{operation}.
const (
	OpCreateOrder         = "create_order"
	OpAddItemToOrder      = "add_item_to_order"
	OpRemoveItemFromOrder = "remove_item_from_order"
	OpUpdateItemQuantity  = "update_item_quantity"
	OpUpdateGuestCount    = "update_guest_count"
	OpSendToKitchen       = "send_to_kitchen"
	OpRequestCheck        = "request_check"
	OpMarkPaid            = "mark_paid"
	OpUpdateLinkedTables  = "update_linked_tables"
	OpUnlinkTables        = "unlink_tables"
	OpCancelOrder         = "cancel_order"
	OpUpdateItemStatus    = "update_item_status"

	OpCreateCustomerTab     = "create_customer_tab"
	OpAddItemsToCustomerTab = "add_items_to_customer_tab"
	OpUpdateCustomerTab     = "update_customer_tab"
	OpCloseCustomerTab      = "close_customer_tab"
	OpSplitCustomerTab      = "split_customer_tab"
	OpMergeCustomerTabs     = "merge_customer_tabs"
	OpMoveItemsBetweenTabs  = "move_items_between_customer_tabs"
)

// IdempotentOps replay their first response when retried with the same
// Idempotency-Key.
var IdempotentOps = map[string]bool{
	OpCreateOrder:       true,
	OpMarkPaid:          true,
	OpSplitCustomerTab:  true,
	OpMergeCustomerTabs: true,
}
