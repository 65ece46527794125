package tabs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/dinein-backend/pkg/db/types"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type changeRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, changes ...realtime.Change) error
}

// Service implements split billing over customer tabs. The ledger methods
// run inside a transaction owned by the order commands.
type Service interface {
	CreateTab(ctx context.Context, input CreateTabInput) (uuid.UUID, error)
	AddItems(ctx context.Context, tabID uuid.UUID, itemIDs []uuid.UUID) error
	UpdateTab(ctx context.Context, input UpdateTabInput) error
	CloseTab(ctx context.Context, input CloseTabInput) error
	SplitTab(ctx context.Context, input SplitTabInput) (uuid.UUID, error)
	MergeTabs(ctx context.Context, sourceID, targetID uuid.UUID) error
	MoveItems(ctx context.Context, input MoveItemsInput) error
	ActiveTabsByTable(ctx context.Context, tableNumber int) ([]models.CustomerTab, error)

	AttachItem(ctx context.Context, tx *gorm.DB, tabID, itemID uuid.UUID) error
	DetachItem(ctx context.Context, tx *gorm.DB, tabID, itemID uuid.UUID) error
	Recalculate(ctx context.Context, tx *gorm.DB, tabID uuid.UUID) error
	CloseOrderTabs(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, outcome enums.TabStatus, method *enums.PaymentMethod) error
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Changes changeRecorder
	TaxRate decimal.Decimal
	Clock   func() time.Time
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	changes changeRecorder
	taxRate decimal.Decimal
	now     func() time.Time
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("tabs repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Changes == nil {
		return nil, fmt.Errorf("change recorder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		changes: params.Changes,
		taxRate: params.TaxRate,
		now:     clock,
		logg:    params.Logger,
	}, nil
}

func (s *service) CreateTab(ctx context.Context, input CreateTabInput) (uuid.UUID, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.TableNumber <= 0 && input.OrderID == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "table_number or order_id is required")
	}

	var tabID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var (
			order *models.Order
			err   error
		)
		if input.OrderID != nil {
			order, err = repo.FindOrder(ctx, *input.OrderID)
		} else {
			order, err = repo.FindActiveOrderByTableNumber(ctx, input.TableNumber)
		}
		if err != nil {
			return notFound(err, "active order")
		}
		if !order.IsActive() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer active")
		}

		tableNumber := input.TableNumber
		if tableNumber <= 0 {
			tableNumber = order.TableNumber
		}
		tab := &models.CustomerTab{
			OrderID:     order.ID,
			TableNumber: tableNumber,
			Name:        name,
			ItemIDs:     dbtypes.UUIDArray{},
			Status:      enums.TabStatusActive,
		}
		if err := repo.Create(ctx, tab); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tab")
		}
		tabID = tab.ID
		return s.changes.Record(ctx, tx, tabChange(enums.ChangeInsert, nil, tab))
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "tab_id", tabID.String()), "customer tab created")
	return tabID, nil
}

func (s *service) AddItems(ctx context.Context, tabID uuid.UUID, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "item_ids is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tab, err := s.lockActive(ctx, repo, tabID)
		if err != nil {
			return err
		}
		return s.assign(ctx, tx, repo, tab, itemIDs)
	})
}

func (s *service) UpdateTab(ctx context.Context, input UpdateTabInput) error {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
	}
	for field, value := range map[string]decimal.Decimal{
		"tip":      input.Tip.Or(decimal.Zero),
		"discount": input.Discount.Or(decimal.Zero),
	} {
		if value.IsNegative() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "%s must not be negative", field)
		}
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tab, err := s.lockActive(ctx, repo, input.TabID)
		if err != nil {
			return err
		}
		before := *tab
		if input.Name != nil {
			tab.Name = strings.TrimSpace(*input.Name)
		}
		tab.Tip = input.Tip.Or(tab.Tip).Round(2)
		tab.Discount = input.Discount.Or(tab.Discount).Round(2)
		return s.recalculate(ctx, tx, repo, tab, &before)
	})
}

func (s *service) CloseTab(ctx context.Context, input CloseTabInput) error {
	var method *enums.PaymentMethod
	if input.PaymentMethod != nil {
		parsed, err := enums.ParsePaymentMethod(string(*input.PaymentMethod))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method")
		}
		method = &parsed
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tab, err := s.lockActive(ctx, repo, input.TabID)
		if err != nil {
			return err
		}
		return s.settle(ctx, tx, repo, tab, enums.TabStatusPaid, method)
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "tab_id", input.TabID.String()), "customer tab closed")
	return nil
}

// SplitTab moves the items at the given positions of the source tab into a
// new tab on the same order.
func (s *service) SplitTab(ctx context.Context, input SplitTabInput) (uuid.UUID, error) {
	name := strings.TrimSpace(input.NewTabName)
	if name == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "new_tab_name is required")
	}
	if len(input.ItemIndices) == 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "item_indices is required")
	}

	var newID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		source, err := s.lockActive(ctx, repo, input.SourceTabID)
		if err != nil {
			return err
		}
		moving := make([]uuid.UUID, 0, len(input.ItemIndices))
		picked := map[int]bool{}
		for _, idx := range input.ItemIndices {
			if idx < 0 || idx >= len(source.ItemIDs) {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "item index %d out of range", idx).
					WithDetails(map[string]any{"items": len(source.ItemIDs)})
			}
			if !picked[idx] {
				picked[idx] = true
				moving = append(moving, source.ItemIDs[idx])
			}
		}

		target := &models.CustomerTab{
			OrderID:     source.OrderID,
			TableNumber: source.TableNumber,
			Name:        name,
			ItemIDs:     dbtypes.UUIDArray{},
			Status:      enums.TabStatusActive,
		}
		if err := repo.Create(ctx, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tab")
		}
		if err := s.changes.Record(ctx, tx, tabChange(enums.ChangeInsert, nil, target)); err != nil {
			return err
		}
		if err := s.transfer(ctx, tx, repo, source, target, moving); err != nil {
			return err
		}
		newID = target.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"source_tab_id": input.SourceTabID.String(),
		"tab_id":        newID.String(),
	}), "customer tab split")
	return newID, nil
}

// MergeTabs moves every item of source into target and cancels source.
func (s *service) MergeTabs(ctx context.Context, sourceID, targetID uuid.UUID) error {
	if sourceID == targetID {
		return nil
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		source, target, err := s.lockPair(ctx, repo, sourceID, targetID)
		if err != nil {
			return err
		}
		if err := s.transfer(ctx, tx, repo, source, target, source.ItemIDs); err != nil {
			return err
		}
		return s.settle(ctx, tx, repo, source, enums.TabStatusCancelled, nil)
	})
}

func (s *service) MoveItems(ctx context.Context, input MoveItemsInput) error {
	if len(input.ItemIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "item_ids is required")
	}
	if input.FromTabID == input.ToTabID {
		return nil
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		from, to, err := s.lockPair(ctx, repo, input.FromTabID, input.ToTabID)
		if err != nil {
			return err
		}
		for _, id := range input.ItemIDs {
			if !from.ItemIDs.Contains(id) {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "item %s is not on the source tab", id)
			}
		}
		return s.transfer(ctx, tx, repo, from, to, input.ItemIDs)
	})
}

func (s *service) ActiveTabsByTable(ctx context.Context, tableNumber int) ([]models.CustomerTab, error) {
	tabs, err := s.repo.ListActiveByTable(ctx, tableNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tabs")
	}
	return tabs, nil
}

func (s *service) AttachItem(ctx context.Context, tx *gorm.DB, tabID, itemID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	tab, err := s.lockActive(ctx, repo, tabID)
	if err != nil {
		return err
	}
	return s.assign(ctx, tx, repo, tab, []uuid.UUID{itemID})
}

func (s *service) DetachItem(ctx context.Context, tx *gorm.DB, tabID, itemID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	tab, err := repo.Lock(ctx, tabID)
	if err != nil {
		return notFound(err, "tab")
	}
	items, err := repo.FindItems(ctx, []uuid.UUID{itemID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load items")
	}
	if err := s.setItemTab(ctx, tx, repo, items, nil); err != nil {
		return err
	}
	if !tab.ItemIDs.Contains(itemID) {
		return nil
	}
	before := *tab
	tab.ItemIDs = tab.ItemIDs.Without(itemID)
	return s.recalculate(ctx, tx, repo, tab, &before)
}

func (s *service) Recalculate(ctx context.Context, tx *gorm.DB, tabID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	tab, err := repo.Lock(ctx, tabID)
	if err != nil {
		return notFound(err, "tab")
	}
	before := *tab
	return s.recalculate(ctx, tx, repo, tab, &before)
}

// CloseOrderTabs settles every remaining active tab of an order.
func (s *service) CloseOrderTabs(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, outcome enums.TabStatus, method *enums.PaymentMethod) error {
	if outcome == enums.TabStatusActive || !outcome.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid tab outcome %q", outcome)
	}
	repo := s.repo.WithTx(tx)
	tabs, err := repo.ListActiveByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order tabs")
	}
	for i := range tabs {
		if err := s.settle(ctx, tx, repo, &tabs[i], outcome, method); err != nil {
			return err
		}
	}
	return nil
}

// assign puts items on tab. Items must belong to the tab's order and may not
// sit on another active tab.
func (s *service) assign(ctx context.Context, tx *gorm.DB, repo Repository, tab *models.CustomerTab, itemIDs []uuid.UUID) error {
	items, err := s.loadOrderItems(ctx, repo, tab.OrderID, itemIDs)
	if err != nil {
		return err
	}
	fresh := make([]models.DineInOrderItem, 0, len(items))
	for _, item := range items {
		if item.CustomerTabID != nil && *item.CustomerTabID != tab.ID {
			owner, err := repo.Find(ctx, *item.CustomerTabID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load owning tab")
			}
			if owner.IsActive() {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "item %s is already on tab %q", item.ID, owner.Name)
			}
		}
		if !tab.ItemIDs.Contains(item.ID) {
			fresh = append(fresh, item)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := s.setItemTab(ctx, tx, repo, fresh, &tab.ID); err != nil {
		return err
	}
	before := *tab
	ids := append(dbtypes.UUIDArray{}, tab.ItemIDs...)
	for _, item := range fresh {
		ids = append(ids, item.ID)
	}
	tab.ItemIDs = ids
	return s.recalculate(ctx, tx, repo, tab, &before)
}

// transfer moves itemIDs from one tab to another, keeping both ledgers and the
// item rows consistent.
func (s *service) transfer(ctx context.Context, tx *gorm.DB, repo Repository, from, to *models.CustomerTab, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	moving := append([]uuid.UUID{}, itemIDs...)
	items, err := repo.FindItems(ctx, moving)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load items")
	}
	if err := s.setItemTab(ctx, tx, repo, items, &to.ID); err != nil {
		return err
	}

	fromBefore := *from
	from.ItemIDs = from.ItemIDs.Without(moving...)
	if err := s.recalculate(ctx, tx, repo, from, &fromBefore); err != nil {
		return err
	}

	toBefore := *to
	ids := append(dbtypes.UUIDArray{}, to.ItemIDs...)
	for _, id := range moving {
		if !ids.Contains(id) {
			ids = append(ids, id)
		}
	}
	to.ItemIDs = ids
	return s.recalculate(ctx, tx, repo, to, &toBefore)
}

// recalculate refreshes the money fields of tab from its items, then saves it
// and records the change against before.
func (s *service) recalculate(ctx context.Context, tx *gorm.DB, repo Repository, tab *models.CustomerTab, before *models.CustomerTab) error {
	items, err := repo.FindItems(ctx, tab.ItemIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tab items")
	}
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.EffectiveLineTotal())
	}
	tab.Subtotal = subtotal.Round(2)
	tab.Tax = subtotal.Mul(s.taxRate).Round(2)
	tab.Total = Total(tab.Subtotal, tab.Tax, tab.Tip, tab.Discount)

	if err := repo.Save(ctx, tab); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save tab")
	}
	return s.changes.Record(ctx, tx, tabChange(enums.ChangeUpdate, before, tab))
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, repo Repository, tab *models.CustomerTab, outcome enums.TabStatus, method *enums.PaymentMethod) error {
	before := *tab
	tab.Status = outcome
	if outcome == enums.TabStatusPaid {
		paidAt := s.now().UTC()
		tab.PaidAt = &paidAt
		tab.PaymentMethod = method
	}
	if err := repo.Save(ctx, tab); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle tab")
	}
	return s.changes.Record(ctx, tx, tabChange(enums.ChangeUpdate, &before, tab))
}

func (s *service) setItemTab(ctx context.Context, tx *gorm.DB, repo Repository, items []models.DineInOrderItem, tabID *uuid.UUID) error {
	changes := make([]realtime.Change, 0, len(items))
	for i := range items {
		before := items[i]
		items[i].CustomerTabID = tabID
		if err := repo.SaveItem(ctx, &items[i]); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign item")
		}
		changes = append(changes, realtime.Change{
			Table: enums.TableOrderItems,
			Type:  enums.ChangeUpdate,
			RowID: items[i].ID,
			Old:   before,
			New:   items[i],
		})
	}
	return s.changes.Record(ctx, tx, changes...)
}

func (s *service) loadOrderItems(ctx context.Context, repo Repository, orderID uuid.UUID, ids []uuid.UUID) ([]models.DineInOrderItem, error) {
	items, err := repo.FindItems(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load items")
	}
	found := make(map[uuid.UUID]models.DineInOrderItem, len(items))
	for _, item := range items {
		if item.OrderID != orderID {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "item %s belongs to another order", item.ID)
		}
		found[item.ID] = item
	}
	ordered := make([]models.DineInOrderItem, 0, len(ids))
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		item, ok := found[id]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "item %s not found", id)
		}
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, item)
		}
	}
	return ordered, nil
}

func (s *service) lockActive(ctx context.Context, repo Repository, id uuid.UUID) (*models.CustomerTab, error) {
	tab, err := repo.Lock(ctx, id)
	if err != nil {
		return nil, notFound(err, "tab")
	}
	if !tab.IsActive() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "tab is %s", tab.Status)
	}
	return tab, nil
}

func (s *service) lockPair(ctx context.Context, repo Repository, a, b uuid.UUID) (*models.CustomerTab, *models.CustomerTab, error) {
	first, err := s.lockActive(ctx, repo, a)
	if err != nil {
		return nil, nil, err
	}
	second, err := s.lockActive(ctx, repo, b)
	if err != nil {
		return nil, nil, err
	}
	if first.OrderID != second.OrderID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "tabs belong to different orders")
	}
	return first, second, nil
}

// Total is subtotal + tax + tip - discount, never below zero.
func Total(subtotal, tax, tip, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(tax).Add(tip).Sub(discount).Round(2)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}

func tabChange(typ enums.ChangeType, before, after *models.CustomerTab) realtime.Change {
	change := realtime.Change{Table: enums.TableCustomerTabs, Type: typ}
	if before != nil {
		change.Old, change.RowID = *before, before.ID
	}
	if after != nil {
		change.New, change.RowID = *after, after.ID
	}
	return change
}
