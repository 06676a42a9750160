package dues

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
)

// ErrNotDue is returned when a guarded reconcile finds the entry no longer Due.
var ErrNotDue = errors.New("history entry is not due")

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByStatus(ctx context.Context, branchCode string, status enums.PaymentStatus) ([]models.HistoryEntry, error) {
	var rows []models.HistoryEntry
	err := r.db.WithContext(ctx).
		Where("branch_code = ? AND payment_status = ?", branchCode, status).
		Order("payment_paid_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// ListBetween returns the branch's entries paid in [from, until). Nil bounds are open.
func (r *repository) ListBetween(ctx context.Context, branchCode string, from, until *time.Time) ([]models.HistoryEntry, error) {
	q := r.db.WithContext(ctx).Where("branch_code = ?", branchCode)
	if from != nil {
		q = q.Where("payment_paid_at >= ?", from.UTC())
	}
	if until != nil {
		q = q.Where("payment_paid_at < ?", until.UTC())
	}
	var rows []models.HistoryEntry
	err := q.Order("payment_paid_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) FindEntry(ctx context.Context, branchCode string, id uuid.UUID) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	err := r.db.WithContext(ctx).
		Where("id = ? AND branch_code = ?", id, branchCode).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkDueSettled flips a Due entry to Settled with the collected method. The
// status guard makes concurrent reconciles of the same entry race safely.
func (r *repository) MarkDueSettled(ctx context.Context, branchCode string, id uuid.UUID, method enums.PaymentMethod) error {
	res := r.db.WithContext(ctx).
		Model(&models.HistoryEntry{}).
		Where("id = ? AND branch_code = ? AND payment_status = ?", id, branchCode, enums.PaymentStatusDue).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusSettled,
			"payment_method": method,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotDue
	}
	return nil
}
