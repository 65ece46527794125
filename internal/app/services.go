// Package app assembles the dine-in services over one database connection.
package app

import (
	"fmt"
	"time"

	"github.com/angelmondragon/dinein-backend/internal/kitchen"
	"github.com/angelmondragon/dinein-backend/internal/orders"
	"github.com/angelmondragon/dinein-backend/internal/tables"
	"github.com/angelmondragon/dinein-backend/internal/tabs"
	"github.com/angelmondragon/dinein-backend/pkg/config"
	"github.com/angelmondragon/dinein-backend/pkg/db"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
)

type Services struct {
	Changes *realtime.Repository
	Orders  orders.Service
	Reader  orders.Reader
	Tabs    tabs.Service
	Tables  tables.Service
	Kitchen kitchen.Service
}

// Build wires every command service to the shared change recorder so each
// mutation and its change rows commit together.
func Build(cfg *config.Config, logg *logger.Logger, client *db.Client, clock func() time.Time) (*Services, error) {
	if clock == nil {
		clock = time.Now
	}
	taxRate, err := cfg.Pricing.Rate()
	if err != nil {
		return nil, err
	}

	conn := client.DB()
	changes := realtime.NewRepository(conn)
	recorder := realtime.NewRecorder(changes, logg)

	tableSvc, err := tables.NewService(tables.NewRepository(conn), recorder, logg)
	if err != nil {
		return nil, fmt.Errorf("tables service: %w", err)
	}
	tabSvc, err := tabs.NewService(tabs.ServiceParams{
		Repo:    tabs.NewRepository(conn),
		Tx:      client,
		Changes: recorder,
		TaxRate: taxRate,
		Clock:   clock,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("tabs service: %w", err)
	}

	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    orderRepo,
		Tx:      client,
		Changes: recorder,
		Tables:  tableSvc,
		Tabs:    tabSvc,
		TaxRate: taxRate,
		Clock:   clock,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	reader, err := orders.NewReader(orderRepo)
	if err != nil {
		return nil, fmt.Errorf("orders reader: %w", err)
	}

	kitchenSvc, err := kitchen.NewService(kitchen.ServiceParams{
		Sources:      []kitchen.Source{kitchen.NewDineInSource(reader)},
		Items:        orderSvc,
		WarningAfter: cfg.Kitchen.WarningAfter,
		UrgentAfter:  cfg.Kitchen.UrgentAfter,
		Clock:        clock,
		Logger:       logg,
	})
	if err != nil {
		return nil, fmt.Errorf("kitchen service: %w", err)
	}

	return &Services{
		Changes: changes,
		Orders:  orderSvc,
		Reader:  reader,
		Tabs:    tabSvc,
		Tables:  tableSvc,
		Kitchen: kitchenSvc,
	}, nil
}
