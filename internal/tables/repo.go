package tables

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a tables repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, table *models.Table) error {
	return r.db.WithContext(ctx).Create(table).Error
}

func (r *repository) List(ctx context.Context, branchCode string) ([]models.Table, error) {
	var tables []models.Table
	err := r.db.WithContext(ctx).
		Where("branch_code = ?", branchCode).
		Order("table_number ASC").
		Find(&tables).Error
	return tables, err
}

// ListWithHistory loads every table of the branch with its settled history.
func (r *repository) ListWithHistory(ctx context.Context, branchCode string) ([]models.Table, error) {
	var tables []models.Table
	err := r.db.WithContext(ctx).
		Preload("OrderHistory", historyOrder).
		Where("branch_code = ?", branchCode).
		Order("table_number ASC").
		Find(&tables).Error
	return tables, err
}

// ListOccupied returns tables across branches that still carry running
// orders, with the history entries written since historySince.
func (r *repository) ListOccupied(ctx context.Context, historySince time.Time, limit int) ([]models.Table, error) {
	var tables []models.Table
	q := r.db.WithContext(ctx).
		Preload("OrderHistory", func(db *gorm.DB) *gorm.DB {
			return historyOrder(db.Where("created_at >= ?", historySince.UTC()))
		}).
		Where("orders <> ?", "[]").
		Order("branch_code ASC").
		Order("table_number ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&tables).Error
	return tables, err
}

// FindByID loads one table. Inside a Postgres transaction the row stays locked.
func (r *repository) FindByID(ctx context.Context, branchCode string, id uuid.UUID) (*models.Table, error) {
	q := r.db.WithContext(ctx).Where("id = ? AND branch_code = ?", id, branchCode)
	if r.db.Dialector.Name() == "postgres" && inTransaction(r.db) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var table models.Table
	if err := q.First(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) FindWithHistory(ctx context.Context, branchCode string, id uuid.UUID) (*models.Table, error) {
	var table models.Table
	err := r.db.WithContext(ctx).
		Preload("OrderHistory", historyOrder).
		Where("id = ? AND branch_code = ?", id, branchCode).
		First(&table).Error
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) UpdateOrders(ctx context.Context, branchCode string, id uuid.UUID, orders types.OrderLines, orderStatus string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Table{}).
		Where("id = ? AND branch_code = ?", id, branchCode).
		Updates(map[string]any{
			"orders":       orders,
			"order_status": orderStatus,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func historyOrder(db *gorm.DB) *gorm.DB {
	return db.Order("payment_paid_at DESC").Order("id DESC")
}

func inTransaction(db *gorm.DB) bool {
	_, ok := db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}
