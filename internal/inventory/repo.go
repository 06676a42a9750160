package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindByID(ctx context.Context, branchCode string, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND branch_code = ?", id, branchCode).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindWithHistory(ctx context.Context, branchCode string, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ? AND branch_code = ?", id, branchCode).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByName returns every item in the branch whose name matches exactly.
func (r *repository) FindByName(ctx context.Context, branchCode, name string) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("branch_code = ? AND ingredient_name = ?", branchCode, name).
		Order("created_at ASC").
		Limit(2).
		Find(&items).Error
	return items, err
}

func (r *repository) List(ctx context.Context, branchCode string) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("branch_code = ?", branchCode).
		Order("ingredient_name ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// ListNegative returns items below zero across all branches.
func (r *repository) ListNegative(ctx context.Context, limit int) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	q := r.db.WithContext(ctx).
		Where("quantity < 0").
		Order("branch_code ASC").
		Order("ingredient_name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&items).Error
	return items, err
}

// AdjustQuantity applies quantity = quantity + delta in a single statement and
// returns the stored result.
func (r *repository) AdjustQuantity(ctx context.Context, branchCode string, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ? AND branch_code = ?", id, branchCode).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, gorm.ErrRecordNotFound
	}
	item, err := r.FindByID(ctx, branchCode, id)
	if err != nil {
		return decimal.Zero, err
	}
	return item.Quantity, nil
}

func (r *repository) Update(ctx context.Context, branchCode string, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
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

func (r *repository) InsertHistory(ctx context.Context, entry *models.InventoryHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// HasSettlementDeduction reports whether the settlement already deducted the item.
func (r *repository) HasSettlementDeduction(ctx context.Context, settlementID, itemID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryHistory{}).
		Where("settlement_id = ? AND inventory_item_id = ? AND action = ?", settlementID, itemID, enums.InventoryActionDeduct).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListHistory(ctx context.Context, branchCode string, id uuid.UUID) ([]models.InventoryHistory, error) {
	var rows []models.InventoryHistory
	err := r.db.WithContext(ctx).
		Where("inventory_item_id = ? AND branch_code = ?", id, branchCode).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
