package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// Table is a dining table with its running order.
type Table struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BranchCode   string           `gorm:"column:branch_code;not null;uniqueIndex:ux_tables_branch_number" json:"branchCode"`
	TableNumber  string           `gorm:"column:table_number;not null;uniqueIndex:ux_tables_branch_number" json:"tableNumber"`
	Orders       types.OrderLines `gorm:"column:orders;type:jsonb;not null" json:"orders"`
	OrderStatus  string           `gorm:"column:order_status;not null" json:"orderStatus"`
	OrderHistory []HistoryEntry   `gorm:"foreignKey:TableID" json:"orderHistory,omitempty"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (t *Table) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	if t.Orders == nil {
		t.Orders = types.OrderLines{}
	}
	return nil
}
