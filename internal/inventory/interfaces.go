package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
)

// Repository defines persistence for inventory items and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.InventoryItem) error
	FindByID(ctx context.Context, branchCode string, id uuid.UUID) (*models.InventoryItem, error)
	FindWithHistory(ctx context.Context, branchCode string, id uuid.UUID) (*models.InventoryItem, error)
	FindByName(ctx context.Context, branchCode, name string) ([]models.InventoryItem, error)
	List(ctx context.Context, branchCode string) ([]models.InventoryItem, error)
	ListNegative(ctx context.Context, limit int) ([]models.InventoryItem, error)
	AdjustQuantity(ctx context.Context, branchCode string, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	Update(ctx context.Context, branchCode string, id uuid.UUID, updates map[string]any) error
	InsertHistory(ctx context.Context, entry *models.InventoryHistory) error
	HasSettlementDeduction(ctx context.Context, settlementID, itemID uuid.UUID) (bool, error)
	ListHistory(ctx context.Context, branchCode string, id uuid.UUID) ([]models.InventoryHistory, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
