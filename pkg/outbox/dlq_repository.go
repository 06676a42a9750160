package outbox

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
)

const maxDLQErrorLen = 1024

// DLQRepository parks outbox rows the publisher gave up on, with the
// payload intact so an operator can replay them by hand.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// Park copies event into outbox_dlq inside tx.
func (r *DLQRepository) Park(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !reason.IsValid() {
		return errors.New("invalid dlq reason")
	}
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if cause != nil {
		msg := clipDLQError(cause.Error())
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// PruneBefore deletes at most limit parked rows that failed before cutoff.
func (r *DLQRepository) PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	if limit <= 0 {
		return 0, errors.New("limit must be positive")
	}
	batch := tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.OutboxDLQ{}).
		Select("id").
		Where("failed_at < ?", cutoff).
		Order("failed_at").
		Limit(limit)
	res := tx.WithContext(ctx).Where("id IN (?)", batch).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}

func clipDLQError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	message = message[:maxDLQErrorLen]
	for !utf8.ValidString(message) {
		message = message[:len(message)-1]
	}
	return message
}
