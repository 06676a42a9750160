package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
)

// AddItemInput records stock received for an ingredient.
type AddItemInput struct {
	BranchCode     string
	IngredientName string
	Category       string
	Quantity       decimal.Decimal
	Unit           string
}

// UpdateItemInput is a manual correction. Nil fields are left unchanged.
type UpdateItemInput struct {
	BranchCode     string
	ID             uuid.UUID
	IngredientName *string
	Category       *string
	Quantity       *decimal.Decimal
	Unit           *string
}

// CategoryGroup is the inventory of one category.
type CategoryGroup struct {
	Category string                 `json:"category"`
	Items    []models.InventoryItem `json:"items"`
}
