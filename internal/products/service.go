package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// ProductInput holds the validated payload to add a menu item.
type ProductInput struct {
	Name        string
	Price       decimal.Decimal
	Subcategory string
	Ingredients []types.IngredientUse
}

// ListFilter narrows the menu listing. Search matches the name without case.
type ListFilter struct {
	Subcategory string
	Search      string
}

// Service manages a branch's menu.
type Service interface {
	Create(ctx context.Context, branchCode string, input ProductInput) (*models.Product, error)
	List(ctx context.Context, branchCode string, filter ListFilter) ([]models.Product, error)
	Get(ctx context.Context, branchCode string, id uuid.UUID) (*models.Product, error)
}

type ServiceParams struct {
	Repository Repository
	// Items checks recipe references against the branch inventory. Optional.
	Items  itemLoader
	Logger *logger.Logger
}

type service struct {
	repo  Repository
	items itemLoader
	logg  *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "products repository is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{repo: params.Repository, items: params.Items, logg: params.Logger}, nil
}

func (s *service) Create(ctx context.Context, branchCode string, input ProductInput) (*models.Product, error) {
	branchCode = strings.TrimSpace(branchCode)
	if branchCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch code is required")
	}
	ingredients, err := s.recipe(ctx, branchCode, input)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		BranchCode:  branchCode,
		Name:        strings.TrimSpace(input.Name),
		Price:       input.Price,
		Subcategory: strings.TrimSpace(input.Subcategory),
		Ingredients: ingredients,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"branch_code": branchCode,
		"product_id":  product.ID.String(),
	})
	s.logg.Info(logCtx, "product created")
	return product, nil
}

// recipe validates the input and returns the ingredient list to store. Lines
// referencing an inventory item take its current name when none was given.
func (s *service) recipe(ctx context.Context, branchCode string, input ProductInput) (types.IngredientUses, error) {
	problems := []string{}
	if strings.TrimSpace(input.Name) == "" {
		problems = append(problems, "name is required")
	}
	if input.Price.IsNegative() {
		problems = append(problems, "price must not be negative")
	}

	out := make(types.IngredientUses, 0, len(input.Ingredients))
	for i, ing := range input.Ingredients {
		use := types.IngredientUse{
			IngredientName:      strings.TrimSpace(ing.IngredientName),
			QuantityUsedPerUnit: ing.QuantityUsedPerUnit,
		}
		if ing.QuantityUsedPerUnit.IsNegative() {
			problems = append(problems, fmt.Sprintf("ingredients[%d].quantityUsedPerUnit must not be negative", i))
		}
		if ing.InventoryItemID != nil && *ing.InventoryItemID != uuid.Nil {
			id := *ing.InventoryItemID
			use.InventoryItemID = &id
			if s.items != nil {
				item, err := s.items.FindByID(ctx, branchCode, id)
				switch {
				case errors.Is(err, gorm.ErrRecordNotFound):
					problems = append(problems, fmt.Sprintf("ingredients[%d].inventoryItemId is not in this branch", i))
				case err != nil:
					return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
				case use.IngredientName == "":
					use.IngredientName = item.IngredientName
				}
			}
		}
		if use.InventoryItemID == nil && use.IngredientName == "" {
			problems = append(problems, fmt.Sprintf("ingredients[%d] needs inventoryItemId or ingredientName", i))
		}
		out = append(out, use)
	}

	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(problems)
	}
	return out, nil
}

func (s *service) List(ctx context.Context, branchCode string, filter ListFilter) ([]models.Product, error) {
	filter.Subcategory = strings.TrimSpace(filter.Subcategory)
	filter.Search = strings.TrimSpace(filter.Search)
	products, err := s.repo.List(ctx, branchCode, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (s *service) Get(ctx context.Context, branchCode string, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, branchCode, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}
