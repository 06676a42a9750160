package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) List(ctx context.Context, branchCode string, filter ListFilter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Where("branch_code = ?", branchCode)
	if filter.Subcategory != "" {
		q = q.Where("subcategory = ?", filter.Subcategory)
	}
	if filter.Search != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	var products []models.Product
	err := q.Order("subcategory ASC").Order("name ASC").Find(&products).Error
	return products, err
}

func (r *repository) FindByID(ctx context.Context, branchCode string, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ? AND branch_code = ?", id, branchCode).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
