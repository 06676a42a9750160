package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/internal/inventory"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// Repository persists settlement attempts and the table rows they close.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, settlement *models.Settlement) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	Transition(ctx context.Context, id uuid.UUID, from enums.SettlementState, updates map[string]any) error
	Reclaim(ctx context.Context, id uuid.UUID, staleBefore time.Time) error
	ListStale(ctx context.Context, states []enums.SettlementState, before time.Time, limit int) ([]models.Settlement, error)

	FindTable(ctx context.Context, branchCode string, tableID uuid.UUID) (*models.Table, error)
	LockTable(ctx context.Context, branchCode string, tableID uuid.UUID) (*models.Table, error)
	ClearTable(ctx context.Context, branchCode string, tableID uuid.UUID, orderStatus string) error

	CreateHistoryEntry(ctx context.Context, entry *models.HistoryEntry) error
	FindHistoryEntry(ctx context.Context, id uuid.UUID) (*models.HistoryEntry, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type deductor interface {
	Deduct(ctx context.Context, branchCode string, settlementID *uuid.UUID, lines types.OrderLines) inventory.DeductionReport
}

type tableLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
	TableLockKey(branchCode, tableID string) string
}
