package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// Payment is the outcome recorded on a history entry. Columns are stored with
// the payment_ prefix on history_entries.
type Payment struct {
	Total              decimal.Decimal      `gorm:"column:total;type:numeric(14,4);not null" json:"total"`
	DiscountPercentage decimal.Decimal      `gorm:"column:discount_percentage;type:numeric(7,4);not null" json:"discountPercentage"`
	DiscountedTotal    decimal.Decimal      `gorm:"column:discounted_total;type:numeric(14,4);not null" json:"discountedTotal"`
	Status             enums.PaymentStatus  `gorm:"column:status;type:text;not null" json:"status"`
	Method             *enums.PaymentMethod `gorm:"column:method;type:text" json:"method"`
	Responsible        *string              `gorm:"column:responsible" json:"responsible"`
	Timestamp          time.Time            `gorm:"column:paid_at;not null" json:"timestamp"`
}

// EffectiveTotal is discountedTotal, falling back to total when unset.
func (p Payment) EffectiveTotal() decimal.Decimal {
	if p.DiscountedTotal.IsZero() && !p.Total.IsZero() && !p.DiscountPercentage.Equal(decimal.NewFromInt(100)) {
		return p.Total
	}
	return p.DiscountedTotal
}

// HistoryEntry is the snapshot appended when a table is settled.
type HistoryEntry struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TableID      uuid.UUID        `gorm:"column:table_id;type:uuid;not null;index" json:"tableId"`
	BranchCode   string           `gorm:"column:branch_code;not null;index" json:"branchCode"`
	TableNumber  string           `gorm:"column:table_number;not null" json:"tableNumber"`
	SettlementID *uuid.UUID       `gorm:"column:settlement_id;type:uuid;uniqueIndex" json:"settlementId,omitempty"`
	Orders       types.OrderLines `gorm:"column:orders;type:jsonb;not null" json:"orders"`
	Payment      Payment          `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (h *HistoryEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	if h.Orders == nil {
		h.Orders = types.OrderLines{}
	}
	return nil
}
