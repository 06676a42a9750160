package tables

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// Repository defines persistence for dining tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, table *models.Table) error
	List(ctx context.Context, branchCode string) ([]models.Table, error)
	ListWithHistory(ctx context.Context, branchCode string) ([]models.Table, error)
	ListOccupied(ctx context.Context, historySince time.Time, limit int) ([]models.Table, error)
	FindByID(ctx context.Context, branchCode string, id uuid.UUID) (*models.Table, error)
	FindWithHistory(ctx context.Context, branchCode string, id uuid.UUID) (*models.Table, error)
	UpdateOrders(ctx context.Context, branchCode string, id uuid.UUID, orders types.OrderLines, orderStatus string) error
}

type productCatalog interface {
	Get(ctx context.Context, branchCode string, id uuid.UUID) (*models.Product, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
