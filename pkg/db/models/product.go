package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// Product is a menu item a branch sells, with the recipe used for stock
// deduction when it is rung up on a table.
type Product struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BranchCode  string               `gorm:"column:branch_code;not null;index:idx_products_branch_name" json:"branchCode"`
	Name        string               `gorm:"column:name;not null;index:idx_products_branch_name" json:"name"`
	Price       decimal.Decimal      `gorm:"column:price;type:numeric(14,4);not null" json:"price"`
	Subcategory string               `gorm:"column:subcategory;not null" json:"subcategory"`
	Ingredients types.IngredientUses `gorm:"column:ingredients;type:jsonb;not null" json:"ingredients"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
