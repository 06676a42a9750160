package vendors

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
)

// Repository defines persistence for vendors and their deliveries.
type Repository interface {
	Create(ctx context.Context, vendor *models.Vendor) error
	List(ctx context.Context, branchCode string) ([]models.Vendor, error)
	FindByID(ctx context.Context, branchCode string, id uuid.UUID) (*models.Vendor, error)
	FindWithStock(ctx context.Context, branchCode string, id uuid.UUID) (*models.Vendor, error)
	Update(ctx context.Context, branchCode string, id uuid.UUID, updates map[string]any) error
	AddStock(ctx context.Context, stock *models.VendorStock) error
}
