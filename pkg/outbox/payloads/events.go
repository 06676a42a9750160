package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/pkg/enums"
)

// TableSettledEvent is emitted when a table closes with a Settled or Due payment.
// It is used for both table_settled and table_due.
type TableSettledEvent struct {
	SettlementID       uuid.UUID            `json:"settlement_id"`
	HistoryEntryID     uuid.UUID            `json:"history_entry_id"`
	TableID            uuid.UUID            `json:"table_id"`
	TableNumber        string               `json:"table_number"`
	BranchCode         string               `json:"branch_code"`
	Total              decimal.Decimal      `json:"total"`
	DiscountPercentage decimal.Decimal      `json:"discount_percentage"`
	DiscountedTotal    decimal.Decimal      `json:"discounted_total"`
	Status             enums.PaymentStatus  `json:"status"`
	Method             *enums.PaymentMethod `json:"method,omitempty"`
	Responsible        *string              `json:"responsible,omitempty"`
	LineCount          int                  `json:"line_count"`
	SettledAt          time.Time            `json:"settled_at"`
}

// DueSettledEvent is emitted when a Due history entry is reconciled.
type DueSettledEvent struct {
	HistoryEntryID  uuid.UUID           `json:"history_entry_id"`
	TableID         uuid.UUID           `json:"table_id"`
	BranchCode      string              `json:"branch_code"`
	Responsible     *string             `json:"responsible,omitempty"`
	DiscountedTotal decimal.Decimal     `json:"discounted_total"`
	Method          enums.PaymentMethod `json:"method"`
	SettledAt       time.Time           `json:"settled_at"`
}

// TableInconsistencyEvent reports a table whose running orders repeat a
// settled history snapshot.
type TableInconsistencyEvent struct {
	TableID        uuid.UUID `json:"table_id"`
	TableNumber    string    `json:"table_number"`
	BranchCode     string    `json:"branch_code"`
	HistoryEntryID uuid.UUID `json:"history_entry_id"`
	DetectedAt     time.Time `json:"detected_at"`
}

// NegativeStockEvent reports an inventory item that went below zero.
type NegativeStockEvent struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	BranchCode      string          `json:"branch_code"`
	IngredientName  string          `json:"ingredient_name"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            enums.Unit      `json:"unit"`
	DetectedAt      time.Time       `json:"detected_at"`
}
