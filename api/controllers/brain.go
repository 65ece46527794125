package controllers

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/dinein-backend/api/middleware"
	"github.com/angelmondragon/dinein-backend/api/responses"
	"github.com/angelmondragon/dinein-backend/api/validators"
	"github.com/angelmondragon/dinein-backend/internal/brain"
	"github.com/angelmondragon/dinein-backend/internal/orders"
	"github.com/angelmondragon/dinein-backend/internal/tabs"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/metrics"
)

type operation func(r *http.Request) (any, error)

type empty struct{}

// Brain dispatches POST /api/v1/brain/{op} to the order and tab services.
func Brain(ordersSvc orders.Service, tabsSvc tabs.Service, cm *metrics.CommandMetrics, logg *logger.Logger) http.HandlerFunc {
	ops := brainOperations(ordersSvc, tabsSvc)
	return func(w http.ResponseWriter, r *http.Request) {
		op := chi.URLParam(r, "op")
		handle, ok := ops[op]
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown operation").
				WithDetails(map[string]any{"operation": op}))
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOperation(ctx, op)
		}
		r = r.WithContext(ctx)

		start := time.Now()
		data, err := handle(r)
		cm.Observe(op, errorCode(err), time.Since(start))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if data == nil {
			data = empty{}
		}
		responses.WriteSuccess(w, data)
	}
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}

func brainOperations(o orders.Service, t tabs.Service) map[string]operation {
	return map[string]operation{
		brain.OpCreateOrder: func(r *http.Request) (any, error) {
			input, err := decodeCreateOrder(r)
			if err != nil {
				return nil, err
			}
			id, err := o.CreateOrder(r.Context(), input)
			if err != nil {
				return nil, err
			}
			return brain.OrderCreated{OrderID: id}, nil
		},
		brain.OpAddItemToOrder: func(r *http.Request) (any, error) {
			var input orders.AddItemInput
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				return nil, err
			}
			id, err := o.AddItem(r.Context(), input)
			if err != nil {
				return nil, err
			}
			return brain.ItemAdded{ItemID: id}, nil
		},
		brain.OpRemoveItemFromOrder: func(r *http.Request) (any, error) {
			var req brain.ItemRef
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			return nil, o.RemoveItem(r.Context(), req.ItemID)
		},
		brain.OpUpdateItemQuantity: func(r *http.Request) (any, error) {
			var req brain.QuantityRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			return nil, o.UpdateItemQuantity(r.Context(), req.ItemID, req.Quantity)
		},
		brain.OpUpdateGuestCount: func(r *http.Request) (any, error) {
			var req brain.GuestCountRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			return nil, o.UpdateGuestCount(r.Context(), req.OrderID, req.GuestCount)
		},
		brain.OpSendToKitchen: func(r *http.Request) (any, error) {
			var req brain.OrderRef
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			sent, err := o.SendToKitchen(r.Context(), req.OrderID)
			if err != nil {
				return nil, err
			}
			return brain.SentToKitchen{SentItems: sent}, nil
		},
		brain.OpRequestCheck: func(r *http.Request) (any, error) {
			var req brain.OrderRef
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			return nil, o.RequestCheck(r.Context(), req.OrderID)
		},
		brain.OpMarkPaid: func(r *http.Request) (any, error) {
			var input orders.MarkPaidInput
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				return nil, err
			}
			return nil, o.MarkPaid(r.Context(), input)
		},
		brain.OpUpdateLinkedTables: func(r *http.Request) (any, error) {
			var input orders.LinkTablesInput
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				return nil, err
			}
			groupID, err := o.UpdateLinkedTables(r.Context(), input)
			if err != nil {
				return nil, err
			}
			return brain.TablesLinked{TableGroupID: groupID}, nil
		},
		brain.OpUnlinkTables: func(r *http.Request) (any, error) {
			var req brain.GroupRef
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			return nil, o.UnlinkTables(r.Context(), req.TableGroupID)
		},
		brain.OpCancelOrder: func(r *http.Request) (any, error) {
			var req brain.OrderRef
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			return nil, o.CancelOrder(r.Context(), req.OrderID)
		},
		brain.OpUpdateItemStatus: func(r *http.Request) (any, error) {
			var req brain.ItemStatusRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			return nil, o.UpdateItemStatus(r.Context(), req.ItemID, req.Status)
		},
		brain.OpCreateCustomerTab: func(r *http.Request) (any, error) {
			var input tabs.CreateTabInput
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				return nil, err
			}
			id, err := t.CreateTab(r.Context(), input)
			if err != nil {
				return nil, err
			}
			return brain.TabCreated{TabID: id}, nil
		},
		brain.OpAddItemsToCustomerTab: func(r *http.Request) (any, error) {
			var req brain.TabItemsRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			return nil, t.AddItems(r.Context(), req.TabID, req.ItemIDs)
		},
		brain.OpUpdateCustomerTab: func(r *http.Request) (any, error) {
			var input tabs.UpdateTabInput
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				return nil, err
			}
			return nil, t.UpdateTab(r.Context(), input)
		},
		brain.OpCloseCustomerTab: func(r *http.Request) (any, error) {
			var input tabs.CloseTabInput
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				return nil, err
			}
			return nil, t.CloseTab(r.Context(), input)
		},
		brain.OpSplitCustomerTab: func(r *http.Request) (any, error) {
			var input tabs.SplitTabInput
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				return nil, err
			}
			id, err := t.SplitTab(r.Context(), input)
			if err != nil {
				return nil, err
			}
			return brain.TabSplit{NewTabID: id}, nil
		},
		brain.OpMergeCustomerTabs: func(r *http.Request) (any, error) {
			var req brain.MergeTabsRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
			return nil, t.MergeTabs(r.Context(), req.SourceTabID, req.TargetTabID)
		},
		brain.OpMoveItemsBetweenTabs: func(r *http.Request) (any, error) {
			var input tabs.MoveItemsInput
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				return nil, err
			}
			return nil, t.MoveItems(r.Context(), input)
		},
	}
}

// decodeCreateOrder accepts either the structured body or a bare guest count.
// The bare form names its table with the table_id query parameter.
func decodeCreateOrder(r *http.Request) (orders.CreateOrderInput, error) {
	var input orders.CreateOrderInput
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	trimmed := strings.TrimSpace(string(raw))
	if guests, convErr := strconv.Atoi(trimmed); convErr == nil {
		tableID, err := validators.ParseQueryUUID(r, "table_id", "table_id query parameter required with a bare guest count")
		if err != nil {
			return input, err
		}
		input = orders.CreateOrderInput{TableID: tableID, GuestCount: guests}
	} else {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return input, err
		}
	}
	if staff, err := uuid.Parse(middleware.StaffIDFromContext(r.Context())); err == nil {
		input.ServerID = &staff
	}
	return input, nil
}
