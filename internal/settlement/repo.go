package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// ErrStateChanged is returned by Transition when the row left the expected state.
var ErrStateChanged = errors.New("settlement state changed concurrently")

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, settlement *models.Settlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&settlement).Error; err != nil {
		return nil, err
	}
	return &settlement, nil
}

// Transition applies updates only while the row is still in from.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.SettlementState, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// Reclaim refreshes a deducting row whose claim is older than staleBefore.
func (r *repository) Reclaim(ctx context.Context, id uuid.UUID, staleBefore time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("id = ? AND state = ? AND updated_at < ?", id, enums.SettlementStateDeducting, staleBefore).
		Update("updated_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

func (r *repository) ListStale(ctx context.Context, states []enums.SettlementState, before time.Time, limit int) ([]models.Settlement, error) {
	var rows []models.Settlement
	q := r.db.WithContext(ctx).
		Where("state IN ?", states).
		Where("updated_at < ?", before).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (r *repository) FindTable(ctx context.Context, branchCode string, tableID uuid.UUID) (*models.Table, error) {
	var table models.Table
	err := r.db.WithContext(ctx).
		Where("id = ? AND branch_code = ?", tableID, branchCode).
		First(&table).Error
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// LockTable loads the table inside the caller's transaction, holding a row lock
// on Postgres.
func (r *repository) LockTable(ctx context.Context, branchCode string, tableID uuid.UUID) (*models.Table, error) {
	q := r.db.WithContext(ctx).Where("id = ? AND branch_code = ?", tableID, branchCode)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var table models.Table
	if err := q.First(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) ClearTable(ctx context.Context, branchCode string, tableID uuid.UUID, orderStatus string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Table{}).
		Where("id = ? AND branch_code = ?", tableID, branchCode).
		Updates(map[string]any{
			"orders":       types.OrderLines{},
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

func (r *repository) CreateHistoryEntry(ctx context.Context, entry *models.HistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindHistoryEntry(ctx context.Context, id uuid.UUID) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
