package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableside-backend/internal/tables"
	"github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

func orderLine(name string, price int64, qty int) types.OrderLine {
	return types.OrderLine{ItemName: name, UnitPrice: decimal.NewFromInt(price), Quantity: qty}
}

func seedTable(t *testing.T, client *db.Client, number string, orders types.OrderLines) models.Table {
	t.Helper()
	table := models.Table{BranchCode: "BR1", TableNumber: number, Orders: orders, OrderStatus: tables.RunningOrderStatus}
	require.NoError(t, client.DB().Create(&table).Error)
	return table
}

func seedHistory(t *testing.T, client *db.Client, table models.Table, orders types.OrderLines) models.HistoryEntry {
	t.Helper()
	entry := models.HistoryEntry{
		TableID:     table.ID,
		BranchCode:  table.BranchCode,
		TableNumber: table.TableNumber,
		Orders:      orders,
		Payment: models.Payment{
			Total:           decimal.NewFromInt(20),
			DiscountedTotal: decimal.NewFromInt(20),
			Status:          enums.PaymentStatusSettled,
			Timestamp:       time.Now().UTC(),
		},
	}
	require.NoError(t, client.DB().Create(&entry).Error)
	return entry
}

func countEvents(t *testing.T, client *db.Client, eventType enums.OutboxEventType, aggregateID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&n).Error)
	return n
}

func TestTableConsistencyJobFlagsUnclearedTables(t *testing.T) {
	client := dbtest.Open(t)
	logg := dbtest.Logger()

	stuck := seedTable(t, client, "1", types.OrderLines{orderLine("Tea", 10, 2)})
	stuckEntry := seedHistory(t, client, stuck, types.OrderLines{orderLine("Tea", 10, 2)})
	fresh := seedTable(t, client, "2", types.OrderLines{orderLine("Tea", 10, 1)})
	freshEntry := seedHistory(t, client, fresh, types.OrderLines{orderLine("Tea", 10, 2)})
	seedTable(t, client, "3", types.OrderLines{})

	job, err := NewTableConsistencyJob(TableConsistencyJobParams{
		Logger: logg,
		DB:     client,
		Tables: tables.NewRepository(client.DB()),
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), logg),
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, int64(1), countEvents(t, client, enums.EventTableInconsistencyDetected, stuckEntry.ID))
	assert.Equal(t, int64(0), countEvents(t, client, enums.EventTableInconsistencyDetected, freshEntry.ID))
}

func TestOrdersEqualComparesDecimalsByValue(t *testing.T) {
	id := uuid.New()
	a := types.OrderLines{{
		ItemName:  "Coffee",
		UnitPrice: decimal.RequireFromString("12.50"),
		Quantity:  1,
		Ingredients: []types.IngredientUse{{
			InventoryItemID:     &id,
			IngredientName:      "Milk",
			QuantityUsedPerUnit: decimal.RequireFromString("150.0"),
		}},
	}}
	b := a.Clone()
	b[0].UnitPrice = decimal.RequireFromString("12.5")
	b[0].Ingredients[0].QuantityUsedPerUnit = decimal.NewFromInt(150)
	assert.True(t, ordersEqual(a, b))

	other := uuid.New()
	b[0].Ingredients[0].InventoryItemID = &other
	assert.False(t, ordersEqual(a, b))
	assert.False(t, ordersEqual(a, types.OrderLines{}))
}
