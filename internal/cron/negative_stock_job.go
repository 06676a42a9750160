package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/outbox/payloads"
)

const negativeStockBatchSize = 500

type negativeStockSource interface {
	ListNegative(ctx context.Context, limit int) ([]models.InventoryItem, error)
}

type eventHistory interface {
	ExistsSinceTx(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, since time.Time) (bool, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type NegativeStockJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Inventory negativeStockSource
	Events    eventHistory
	Outbox    eventEmitter
}

// NewNegativeStockJob raises one alert per negative inventory item for every
// change to its quantity.
func NewNegativeStockJob(params NegativeStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Events == nil || params.Outbox == nil {
		return nil, fmt.Errorf("outbox required")
	}
	return &negativeStockJob{
		logg:      params.Logger,
		db:        params.DB,
		inventory: params.Inventory,
		events:    params.Events,
		outbox:    params.Outbox,
		now:       time.Now,
	}, nil
}

type negativeStockJob struct {
	logg      *logger.Logger
	db        txRunner
	inventory negativeStockSource
	events    eventHistory
	outbox    eventEmitter
	now       func() time.Time
}

func (j *negativeStockJob) Name() string { return "negative-stock" }

func (j *negativeStockJob) Run(ctx context.Context) error {
	items, err := j.inventory.ListNegative(ctx, negativeStockBatchSize)
	if err != nil {
		return fmt.Errorf("list negative stock: %w", err)
	}

	alerted := 0
	for _, item := range items {
		itemCtx := j.logg.WithFields(ctx, map[string]any{
			"branch_code":       item.BranchCode,
			"inventory_item_id": item.ID.String(),
			"ingredient":        item.IngredientName,
			"quantity":          item.Quantity.String(),
		})
		emitted := false
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			exists, err := j.events.ExistsSinceTx(tx, enums.EventInventoryNegativeStock, enums.AggregateInventoryItem, item.ID, item.UpdatedAt)
			if err != nil || exists {
				return err
			}
			emitted = true
			return j.outbox.Emit(itemCtx, tx, outbox.DomainEvent{
				EventType:     enums.EventInventoryNegativeStock,
				AggregateType: enums.AggregateInventoryItem,
				AggregateID:   item.ID,
				Data: payloads.NegativeStockEvent{
					InventoryItemID: item.ID,
					BranchCode:      item.BranchCode,
					IngredientName:  item.IngredientName,
					Quantity:        item.Quantity,
					Unit:            item.Unit,
					DetectedAt:      j.now().UTC(),
				},
			})
		})
		if err != nil {
			return fmt.Errorf("alert negative stock %s: %w", item.ID, err)
		}
		if emitted {
			alerted++
			j.logg.Warn(itemCtx, "negative stock alert queued")
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"negative": len(items),
		"alerted":  alerted,
	})
	j.logg.Info(logCtx, "negative stock scan complete")
	return nil
}
