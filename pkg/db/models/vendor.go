package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/types"
)

type Vendor struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BranchCode    string           `gorm:"column:branch_code;not null;index" json:"branchCode"`
	Name          string           `gorm:"column:name;not null" json:"name"`
	ContactNo     string           `gorm:"column:contact_no" json:"contactNo"`
	Address       string           `gorm:"column:address" json:"address"`
	Categories    types.StringList `gorm:"column:categories;type:jsonb;not null" json:"categories"`
	SuppliedItems types.StringList `gorm:"column:supplied_items;type:jsonb;not null" json:"suppliedItems"`
	Stock         []VendorStock    `gorm:"foreignKey:VendorID" json:"stock,omitempty"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (v *Vendor) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// VendorStock is one delivery invoiced by a vendor.
type VendorStock struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	VendorID       uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendorId"`
	BranchCode     string          `gorm:"column:branch_code;not null" json:"branchCode"`
	IngredientName string          `gorm:"column:ingredient_name;not null" json:"ingredientName"`
	QuantityAdded  decimal.Decimal `gorm:"column:quantity_added;type:numeric(14,4);not null" json:"quantityAdded"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(14,4);not null" json:"price"`
	InvoiceDate    time.Time       `gorm:"column:invoice_date;not null" json:"invoiceDate"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (VendorStock) TableName() string {
	return "vendor_stock"
}

func (s *VendorStock) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
