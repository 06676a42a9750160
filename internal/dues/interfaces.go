package dues

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
)

// Repository reads and reconciles history entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByStatus(ctx context.Context, branchCode string, status enums.PaymentStatus) ([]models.HistoryEntry, error)
	ListBetween(ctx context.Context, branchCode string, from, until *time.Time) ([]models.HistoryEntry, error)
	FindEntry(ctx context.Context, branchCode string, id uuid.UUID) (*models.HistoryEntry, error)
	MarkDueSettled(ctx context.Context, branchCode string, id uuid.UUID, method enums.PaymentMethod) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
