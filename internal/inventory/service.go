package inventory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
)

const uncategorized = "Uncategorized"

// ServiceParams groups dependencies for the inventory service.
type ServiceParams struct {
	DB         txRunner
	Repository Repository
	Logger     *logger.Logger
}

// Service exposes the manual inventory flows.
type Service interface {
	AddItem(ctx context.Context, input AddItemInput) (*models.InventoryItem, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*models.InventoryItem, error)
	ListItems(ctx context.Context, branchCode string) ([]models.InventoryItem, error)
	GetItem(ctx context.Context, branchCode string, id uuid.UUID) (*models.InventoryItem, error)
	ListHistory(ctx context.Context, branchCode string, id uuid.UUID) ([]models.InventoryHistory, error)
	Categories(ctx context.Context, branchCode string) ([]CategoryGroup, error)
}

type service struct {
	db   txRunner
	repo Repository
	logg *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db runner is required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory repository is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{db: params.DB, repo: params.Repository, logg: params.Logger}, nil
}

// AddItem normalises the unit and either tops up the single item with the same
// name or creates a new one. Both paths append an Add history row.
func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.InventoryItem, error) {
	branch := strings.TrimSpace(input.BranchCode)
	name := strings.TrimSpace(input.IngredientName)
	if branch == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch code is required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient name is required")
	}
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	unit, err := enums.ParseUnit(input.Unit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
	}
	qty, unit, err := enums.NormalizeQuantity(input.Quantity, unit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
	}

	var itemID uuid.UUID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByName(ctx, branch, name)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup inventory item")
		}
		if len(existing) > 1 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ingredient name matches more than one inventory item")
		}

		added := qty
		if len(existing) == 1 {
			item := existing[0]
			if item.Unit != unit {
				return pkgerrors.New(pkgerrors.CodeValidation, "unit does not match the stored item").
					WithDetails(map[string]any{"stored": item.Unit, "given": unit})
			}
			updated, err := repo.AdjustQuantity(ctx, branch, item.ID, qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increase inventory quantity")
			}
			if input.Category != "" && input.Category != item.Category {
				if err := repo.Update(ctx, branch, item.ID, map[string]any{"category": input.Category}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory category")
				}
			}
			itemID = item.ID
			return s.appendHistory(ctx, repo, branch, item.ID, enums.InventoryActionAdd, &added, nil, updated)
		}

		item := &models.InventoryItem{
			BranchCode:     branch,
			IngredientName: name,
			Category:       strings.TrimSpace(input.Category),
			Quantity:       qty,
			Unit:           unit,
		}
		if err := repo.Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory item")
		}
		itemID = item.ID
		return s.appendHistory(ctx, repo, branch, item.ID, enums.InventoryActionAdd, &added, nil, qty)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"branch_code":       branch,
		"inventory_item_id": itemID.String(),
		"quantity_added":    qty.String(),
		"unit":              unit,
	})
	s.logg.Info(logCtx, "inventory stock added")
	return s.GetItem(ctx, branch, itemID)
}

// UpdateItem applies a manual correction. Setting quantity appends an Update
// history row carrying the delta.
func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*models.InventoryItem, error) {
	branch := strings.TrimSpace(input.BranchCode)
	if branch == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch code is required")
	}
	if input.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory item id is required")
	}
	if input.Unit != nil && input.Quantity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "changing the unit requires a quantity")
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindByID(ctx, branch, input.ID)
		if err != nil {
			return lookupError(err, "inventory item")
		}

		updates := map[string]any{}
		if input.IngredientName != nil {
			name := strings.TrimSpace(*input.IngredientName)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "ingredient name must not be empty")
			}
			updates["ingredient_name"] = name
		}
		if input.Category != nil {
			updates["category"] = strings.TrimSpace(*input.Category)
		}

		if input.Quantity != nil {
			unit := item.Unit
			if input.Unit != nil {
				parsed, err := enums.ParseUnit(*input.Unit)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
				}
				unit = parsed
			}
			qty, unit, err := enums.NormalizeQuantity(*input.Quantity, unit)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
			}
			updates["quantity"] = qty
			updates["unit"] = unit

			delta := qty.Sub(item.Quantity)
			added, used := deltaParts(delta)
			if err := repo.Update(ctx, branch, item.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory item")
			}
			return s.appendHistory(ctx, repo, branch, item.ID, enums.InventoryActionUpdate, added, used, qty)
		}

		if len(updates) == 0 {
			return nil
		}
		if err := repo.Update(ctx, branch, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetItem(ctx, branch, input.ID)
}

func (s *service) ListItems(ctx context.Context, branchCode string) ([]models.InventoryItem, error) {
	items, err := s.repo.List(ctx, branchCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	return items, nil
}

func (s *service) GetItem(ctx context.Context, branchCode string, id uuid.UUID) (*models.InventoryItem, error) {
	item, err := s.repo.FindWithHistory(ctx, branchCode, id)
	if err != nil {
		return nil, lookupError(err, "inventory item")
	}
	return item, nil
}

func (s *service) ListHistory(ctx context.Context, branchCode string, id uuid.UUID) ([]models.InventoryHistory, error) {
	if _, err := s.repo.FindByID(ctx, branchCode, id); err != nil {
		return nil, lookupError(err, "inventory item")
	}
	rows, err := s.repo.ListHistory(ctx, branchCode, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory history")
	}
	return rows, nil
}

func (s *service) Categories(ctx context.Context, branchCode string) ([]CategoryGroup, error) {
	items, err := s.ListItems(ctx, branchCode)
	if err != nil {
		return nil, err
	}
	return GroupByCategory(items), nil
}

func (s *service) appendHistory(ctx context.Context, repo Repository, branch string, itemID uuid.UUID, action enums.InventoryAction, added, used *decimal.Decimal, updated decimal.Decimal) error {
	err := repo.InsertHistory(ctx, &models.InventoryHistory{
		InventoryItemID: itemID,
		BranchCode:      branch,
		Action:          action,
		QuantityAdded:   added,
		QuantityUsed:    used,
		UpdatedQuantity: updated,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append inventory history")
	}
	return nil
}

// GroupByCategory buckets items by category, sorted by category name. Items
// without a category land in "Uncategorized".
func GroupByCategory(items []models.InventoryItem) []CategoryGroup {
	byCategory := map[string][]models.InventoryItem{}
	for _, item := range items {
		category := strings.TrimSpace(item.Category)
		if category == "" {
			category = uncategorized
		}
		byCategory[category] = append(byCategory[category], item)
	}
	groups := make([]CategoryGroup, 0, len(byCategory))
	for category, grouped := range byCategory {
		groups = append(groups, CategoryGroup{Category: category, Items: grouped})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Category < groups[j].Category
	})
	return groups
}

func deltaParts(delta decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
	if delta.IsNegative() {
		used := delta.Neg()
		return nil, &used
	}
	return &delta, nil
}

func lookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
