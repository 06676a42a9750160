package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/enums"
)

// InventoryItem is a branch's stock of one ingredient, in its canonical unit.
type InventoryItem struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BranchCode     string             `gorm:"column:branch_code;not null;index:idx_inventory_items_branch_name" json:"branchCode"`
	IngredientName string             `gorm:"column:ingredient_name;not null;index:idx_inventory_items_branch_name" json:"ingredientName"`
	Category       string             `gorm:"column:category;not null" json:"category"`
	Quantity       decimal.Decimal    `gorm:"column:quantity;type:numeric(14,4);not null" json:"quantity"`
	Unit           enums.Unit         `gorm:"column:unit;type:text;not null" json:"unit"`
	History        []InventoryHistory `gorm:"foreignKey:InventoryItemID" json:"history,omitempty"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// InventoryHistory is one audit row for a quantity change.
type InventoryHistory struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InventoryItemID uuid.UUID             `gorm:"column:inventory_item_id;type:uuid;not null;index" json:"inventoryItemId"`
	BranchCode      string                `gorm:"column:branch_code;not null" json:"branchCode"`
	Action          enums.InventoryAction `gorm:"column:action;type:text;not null" json:"action"`
	QuantityAdded   *decimal.Decimal      `gorm:"column:quantity_added;type:numeric(14,4)" json:"quantityAdded,omitempty"`
	QuantityUsed    *decimal.Decimal      `gorm:"column:quantity_used;type:numeric(14,4)" json:"quantityUsed,omitempty"`
	UpdatedQuantity decimal.Decimal       `gorm:"column:updated_quantity;type:numeric(14,4);not null" json:"updatedQuantity"`
	SettlementID    *uuid.UUID            `gorm:"column:settlement_id;type:uuid" json:"settlementId,omitempty"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime" json:"timestamp"`
}

func (InventoryHistory) TableName() string {
	return "inventory_history"
}

func (h *InventoryHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
