package settlement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/internal/inventory"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
)

// SettleInput closes a table. AttemptID makes retries of the same request
// idempotent; a fresh id is generated when it is nil.
type SettleInput struct {
	BranchCode         string
	TableID            uuid.UUID
	AttemptID          *uuid.UUID
	DiscountPercentage decimal.Decimal
	Method             *enums.PaymentMethod
	Status             enums.PaymentStatus
	Responsible        string
	Actor              *outbox.ActorRef
}

// SettleResult is what a settle call (or its replay) produced.
type SettleResult struct {
	Settlement   models.Settlement          `json:"settlement"`
	HistoryEntry models.HistoryEntry        `json:"historyEntry"`
	Table        models.Table               `json:"table"`
	Deduction    *inventory.DeductionReport `json:"deduction,omitempty"`
	Replayed     bool                       `json:"replayed"`
}

// PreviewInput renders the bill of a table's running order without settling it.
type PreviewInput struct {
	BranchCode         string
	TableID            uuid.UUID
	DiscountPercentage decimal.Decimal
	Method             *enums.PaymentMethod
	Status             enums.PaymentStatus
	Responsible        string
}
