package vendors

import (
	"context"

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

func (r *repository) Create(ctx context.Context, vendor *models.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

func (r *repository) List(ctx context.Context, branchCode string) ([]models.Vendor, error) {
	var vendors []models.Vendor
	err := r.db.WithContext(ctx).
		Where("branch_code = ?", branchCode).
		Order("name ASC").
		Find(&vendors).Error
	return vendors, err
}

func (r *repository) FindByID(ctx context.Context, branchCode string, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("id = ? AND branch_code = ?", id, branchCode).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) FindWithStock(ctx context.Context, branchCode string, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).
		Preload("Stock", func(db *gorm.DB) *gorm.DB {
			return db.Order("invoice_date DESC").Order("created_at DESC")
		}).
		Where("id = ? AND branch_code = ?", id, branchCode).
		First(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) Update(ctx context.Context, branchCode string, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ? AND branch_code = ?", id, branchCode).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) AddStock(ctx context.Context, stock *models.VendorStock) error {
	return r.db.WithContext(ctx).Create(stock).Error
}
