package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// Settlement is a persisted settlement attempt keyed by its attempt id. It
// carries the requested disposition so an interrupted attempt can be resumed.
type Settlement struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TableID            uuid.UUID             `gorm:"column:table_id;type:uuid;not null;index" json:"tableId"`
	BranchCode         string                `gorm:"column:branch_code;not null;index" json:"branchCode"`
	State              enums.SettlementState `gorm:"column:state;type:text;not null;index" json:"state"`
	DiscountPercentage decimal.Decimal       `gorm:"column:discount_percentage;type:numeric(7,4);not null" json:"discountPercentage"`
	Status             enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null" json:"status"`
	Method             *enums.PaymentMethod  `gorm:"column:payment_method;type:text" json:"method"`
	Responsible        *string               `gorm:"column:responsible" json:"responsible"`
	HistoryEntryID     *uuid.UUID            `gorm:"column:history_entry_id;type:uuid" json:"historyEntryId,omitempty"`
	Warnings           types.StringList      `gorm:"column:warnings;type:jsonb;not null" json:"warnings"`
	LastError          *string               `gorm:"column:last_error" json:"lastError,omitempty"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	ClosedAt           *time.Time            `gorm:"column:closed_at" json:"closedAt,omitempty"`
	CompletedAt        *time.Time            `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

func (s *Settlement) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	if s.Warnings == nil {
		s.Warnings = types.StringList{}
	}
	return nil
}
