package tables

import (
	"context"
	"fmt"
	"sort"

	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/dinein-backend/pkg/db/types"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type changeRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, changes ...realtime.Change) error
}

// Service maintains table link groups and serves the floor dashboard.
type Service interface {
	Link(ctx context.Context, tx *gorm.DB, primary int, secondaries []int) (uuid.UUID, error)
	Unlink(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) error
	Dashboard(ctx context.Context) ([]DashboardTable, error)
}

type service struct {
	repo    Repository
	changes changeRecorder
	logg    *logger.Logger
}

func NewService(repo Repository, changes changeRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tables repository required")
	}
	if changes == nil {
		return nil, fmt.Errorf("change recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, changes: changes, logg: logg}, nil
}

// Link groups primary with secondaries under a fresh group id. Every member
// stores the numbers of the other members.
func (s *service) Link(ctx context.Context, tx *gorm.DB, primary int, secondaries []int) (uuid.UUID, error) {
	if len(secondaries) == 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one table to link is required")
	}
	members := []int{primary}
	seen := map[int]bool{primary: true}
	for _, n := range secondaries {
		if n == primary {
			return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "table %d cannot be linked to itself", n)
		}
		if seen[n] {
			return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "table %d listed twice", n)
		}
		seen[n] = true
		members = append(members, n)
	}

	repo := s.repo.WithTx(tx)
	tables, err := repo.LockByNumbers(ctx, members)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tables")
	}
	if len(tables) != len(members) {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "table not found").
			WithDetails(map[string]any{"tables": missing(members, tables)})
	}
	for _, t := range tables {
		if t.TableGroupID != nil {
			return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeConflict, "table %d is already linked", t.TableNumber)
		}
	}

	groupID := uuid.New()
	changes := make([]realtime.Change, 0, len(tables))
	for i := range tables {
		before := tables[i]
		t := &tables[i]
		t.IsLinkedTable = true
		t.IsLinkedPrimary = t.TableNumber == primary
		t.TableGroupID = &groupID
		t.LinkedWithTables = others(members, t.TableNumber)
		if err := repo.Save(ctx, t); err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link table")
		}
		changes = append(changes, tableChange(&before, t))
	}
	if err := s.changes.Record(ctx, tx, changes...); err != nil {
		return uuid.Nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"table_group_id": groupID.String(),
		"primary":        primary,
		"tables":         secondaries,
	}), "tables linked")
	return groupID, nil
}

// Unlink clears every member of the group. An unknown group is a no-op.
func (s *service) Unlink(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	tables, err := repo.FindByGroup(ctx, groupID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load table group")
	}
	changes := make([]realtime.Change, 0, len(tables))
	for i := range tables {
		before := tables[i]
		t := &tables[i]
		t.IsLinkedTable = false
		t.IsLinkedPrimary = false
		t.TableGroupID = nil
		t.LinkedWithTables = dbtypes.IntArray{}
		if err := repo.Save(ctx, t); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unlink table")
		}
		changes = append(changes, tableChange(&before, t))
	}
	if err := s.changes.Record(ctx, tx, changes...); err != nil {
		return err
	}
	if len(tables) > 0 {
		s.logg.Info(s.logg.WithField(ctx, "table_group_id", groupID.String()), "tables unlinked")
	}
	return nil
}

// Dashboard lists every table with its display status. Members of a link
// group share the order held by the group's primary.
func (s *service) Dashboard(ctx context.Context) ([]DashboardTable, error) {
	tables, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tables")
	}
	orders, err := s.repo.ListActiveOrders(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active orders")
	}

	byTable := make(map[uuid.UUID]*models.Order, len(orders))
	byGroup := map[uuid.UUID]*models.Order{}
	for i := range orders {
		o := &orders[i]
		byTable[o.TableID] = o
		if o.TableGroupID != nil {
			byGroup[*o.TableGroupID] = o
		}
	}
	groupCapacity := map[uuid.UUID]int{}
	for _, t := range tables {
		if t.TableGroupID != nil {
			groupCapacity[*t.TableGroupID] += t.Capacity
		}
	}

	out := make([]DashboardTable, 0, len(tables))
	for _, t := range tables {
		entry := DashboardTable{POSTable: t, GroupCapacity: t.Capacity}
		order := byTable[t.ID]
		if t.TableGroupID != nil {
			entry.GroupCapacity = groupCapacity[*t.TableGroupID]
			if order == nil {
				order = byGroup[*t.TableGroupID]
			}
		}
		entry.ActiveOrder = order
		var status enums.OrderStatus
		if order != nil {
			status = order.Status
		}
		entry.DisplayStatus = enums.DisplayStatusFor(status)
		out = append(out, entry)
	}
	return out, nil
}

func others(members []int, self int) dbtypes.IntArray {
	out := make(dbtypes.IntArray, 0, len(members)-1)
	for _, n := range members {
		if n != self {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

func missing(want []int, found []models.POSTable) []int {
	have := map[int]bool{}
	for _, t := range found {
		have[t.TableNumber] = true
	}
	var out []int
	for _, n := range want {
		if !have[n] {
			out = append(out, n)
		}
	}
	return out
}

func tableChange(before, after *models.POSTable) realtime.Change {
	return realtime.Change{
		Table: enums.TablePOSTables,
		Type:  enums.ChangeUpdate,
		RowID: after.ID,
		Old:   *before,
		New:   *after,
	}
}
