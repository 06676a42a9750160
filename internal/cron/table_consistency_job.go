package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

const (
	defaultConsistencyLookback = 24 * time.Hour
	consistencyBatchSize       = 500
)

type occupiedTableSource interface {
	ListOccupied(ctx context.Context, historySince time.Time, limit int) ([]models.Table, error)
}

type onceEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type TableConsistencyJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Tables   occupiedTableSource
	Outbox   onceEmitter
	Lookback time.Duration
}

// NewTableConsistencyJob flags tables whose running orders are identical to a
// recently settled snapshot, which means the table was never cleared.
func NewTableConsistencyJob(params TableConsistencyJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Tables == nil {
		return nil, fmt.Errorf("tables repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultConsistencyLookback
	}
	return &tableConsistencyJob{
		logg:     params.Logger,
		db:       params.DB,
		tables:   params.Tables,
		outbox:   params.Outbox,
		lookback: lookback,
		now:      time.Now,
	}, nil
}

type tableConsistencyJob struct {
	logg     *logger.Logger
	db       txRunner
	tables   occupiedTableSource
	outbox   onceEmitter
	lookback time.Duration
	now      func() time.Time
}

func (j *tableConsistencyJob) Name() string { return "table-history-consistency" }

func (j *tableConsistencyJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	tables, err := j.tables.ListOccupied(ctx, now.Add(-j.lookback), consistencyBatchSize)
	if err != nil {
		return fmt.Errorf("list occupied tables: %w", err)
	}

	flagged := 0
	for _, table := range tables {
		entry := matchingSnapshot(table)
		if entry == nil {
			continue
		}
		flagged++
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"branch_code":      table.BranchCode,
			"table_id":         table.ID.String(),
			"history_entry_id": entry.ID.String(),
		})
		j.logg.Warn(logCtx, "table still holds settled orders")

		event := outbox.DomainEvent{
			EventType:     enums.EventTableInconsistencyDetected,
			AggregateType: enums.AggregateHistoryEntry,
			AggregateID:   entry.ID,
			Data: payloads.TableInconsistencyEvent{
				TableID:        table.ID,
				TableNumber:    table.TableNumber,
				BranchCode:     table.BranchCode,
				HistoryEntryID: entry.ID,
				DetectedAt:     now,
			},
		}
		if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.outbox.EmitIfNotExists(logCtx, tx, event)
		}); err != nil {
			return fmt.Errorf("emit inconsistency for table %s: %w", table.ID, err)
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": len(tables),
		"flagged": flagged,
	})
	j.logg.Info(logCtx, "table consistency scan complete")
	return nil
}

// matchingSnapshot returns the loaded history entry whose orders equal the
// table's running orders.
func matchingSnapshot(table models.Table) *models.HistoryEntry {
	if len(table.Orders) == 0 {
		return nil
	}
	for i := range table.OrderHistory {
		if ordersEqual(table.Orders, table.OrderHistory[i].Orders) {
			return &table.OrderHistory[i]
		}
	}
	return nil
}

func ordersEqual(a, b types.OrderLines) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !lineEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func lineEqual(a, b types.OrderLine) bool {
	if a.ItemName != b.ItemName || a.Quantity != b.Quantity || !a.UnitPrice.Equal(b.UnitPrice) {
		return false
	}
	if len(a.Ingredients) != len(b.Ingredients) {
		return false
	}
	for i := range a.Ingredients {
		x, y := a.Ingredients[i], b.Ingredients[i]
		if x.IngredientName != y.IngredientName || !x.QuantityUsedPerUnit.Equal(y.QuantityUsedPerUnit) {
			return false
		}
		if (x.InventoryItemID == nil) != (y.InventoryItemID == nil) {
			return false
		}
		if x.InventoryItemID != nil && *x.InventoryItemID != *y.InventoryItemID {
			return false
		}
	}
	return true
}
