package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/dinein-backend/api/responses"
	"github.com/angelmondragon/dinein-backend/api/validators"
	"github.com/angelmondragon/dinein-backend/internal/kitchen"
	"github.com/angelmondragon/dinein-backend/internal/orders"
	"github.com/angelmondragon/dinein-backend/internal/tables"
	"github.com/angelmondragon/dinein-backend/internal/tabs"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

const maxBoardLimit = 500

// TablesDashboard lists every table with its display status.
func TablesDashboard(svc tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Dashboard(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ActiveOrder returns the active order of a table, or null when it has none.
func ActiveOrder(reader orders.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableID, err := uuidParam(r, "tableId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := reader.ActiveOrderForTable(r.Context(), tableID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func OrderItems(reader orders.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := reader.EnrichedItems(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// TableTabs lists the active customer tabs of a table number.
func TableTabs(svc tabs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "tableNumber")))
		if err != nil || number <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid table number").
				WithDetails(map[string]any{"field": "tableNumber"}))
			return
		}
		list, err := svc.ActiveTabsByTable(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// KitchenBoard returns the ticket board, most urgent first. An optional
// limit keeps only the head of the board; 0 returns every ticket.
func KitchenBoard(svc kitchen.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxBoardLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		board, err := svc.Board(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if limit > 0 && len(board) > limit {
			board = board[:limit]
		}
		responses.WriteSuccess(w, board)
	}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
