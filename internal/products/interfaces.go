package products

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
)

// Repository defines persistence for the branch menu.
type Repository interface {
	Create(ctx context.Context, product *models.Product) error
	List(ctx context.Context, branchCode string, filter ListFilter) ([]models.Product, error)
	FindByID(ctx context.Context, branchCode string, id uuid.UUID) (*models.Product, error)
}

type itemLoader interface {
	FindByID(ctx context.Context, branchCode string, id uuid.UUID) (*models.InventoryItem, error)
}
