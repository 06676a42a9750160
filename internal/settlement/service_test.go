package settlement

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableside-backend/internal/inventory"
	"github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

const testBranch = "BR1"

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: map[string]string{}}
}

func (l *memoryLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	owner := uuid.NewString()
	l.held[key] = owner
	return owner, true, nil
}

func (l *memoryLocker) ReleaseLock(ctx context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == owner {
		delete(l.held, key)
	}
	return nil
}

func (l *memoryLocker) TableLockKey(branchCode, tableID string) string {
	return "lock:" + branchCode + ":" + tableID
}

type fixture struct {
	client *db.Client
	svc    Service
	repo   Repository
	locker *memoryLocker
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test wrap the real ledger.
func newFixtureWith(t *testing.T, wrap func(deductor) deductor) fixture {
	t.Helper()
	client := dbtest.Open(t)
	logg := dbtest.Logger()
	ledger, err := inventory.NewLedger(inventory.LedgerParams{
		DB:         client,
		Repository: inventory.NewRepository(client.DB()),
		Logger:     logg,
	})
	require.NoError(t, err)

	var ded deductor = ledger
	if wrap != nil {
		ded = wrap(ledger)
	}

	repo := NewRepository(client.DB())
	locker := newMemoryLocker()
	svc, err := NewService(ServiceParams{
		DB:         client,
		Repository: repo,
		Outbox:     outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Ledger:     ded,
		Locker:     locker,
		Logger:     logg,
	})
	require.NoError(t, err)
	return fixture{client: client, svc: svc, repo: repo, locker: locker}
}

func (f fixture) seedTable(t *testing.T, number string, orders types.OrderLines) models.Table {
	t.Helper()
	table := models.Table{BranchCode: testBranch, TableNumber: number, Orders: orders}
	require.NoError(t, f.client.DB().Create(&table).Error)
	return table
}

func (f fixture) historyCount(t *testing.T, tableID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.HistoryEntry{}).Where("table_id = ?", tableID).Count(&count).Error)
	return count
}

func twoTeas() types.OrderLines {
	return types.OrderLines{{
		ItemName:  "Tea",
		UnitPrice: decimal.NewFromInt(10),
		Quantity:  2,
		Ingredients: []types.IngredientUse{
			{IngredientName: "Milk", QuantityUsedPerUnit: decimal.NewFromInt(50)},
		},
	}}
}

func method(m enums.PaymentMethod) *enums.PaymentMethod {
	return &m
}

func TestSettleClosesTableAndAppendsHistory(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T1", twoTeas())

	result, err := f.svc.Settle(context.Background(), SettleInput{
		BranchCode:         testBranch,
		TableID:            table.ID,
		DiscountPercentage: decimal.Zero,
		Method:             method(enums.PaymentMethodCash),
		Status:             enums.PaymentStatusSettled,
		Responsible:        "ignored",
	})
	require.NoError(t, err)

	assert.Empty(t, result.Table.Orders)
	assert.Equal(t, "Payment Successfully Settled", result.Table.OrderStatus)
	assert.True(t, result.HistoryEntry.Payment.Total.Equal(decimal.NewFromInt(20)))
	assert.True(t, result.HistoryEntry.Payment.DiscountedTotal.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, enums.PaymentStatusSettled, result.HistoryEntry.Payment.Status)
	assert.Nil(t, result.HistoryEntry.Payment.Responsible)
	assert.Len(t, result.HistoryEntry.Orders, 1)
	assert.Equal(t, enums.SettlementStateCompleted, result.Settlement.State)
	assert.False(t, result.Replayed)

	var stored models.Table
	require.NoError(t, f.client.DB().First(&stored, "id = ?", table.ID).Error)
	assert.Empty(t, stored.Orders)
	assert.Equal(t, int64(1), f.historyCount(t, table.ID))

	var events []models.OutboxEvent
	require.NoError(t, f.client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventTableSettled, events[0].EventType)
	assert.Equal(t, result.HistoryEntry.ID, events[0].AggregateID)

	assert.Empty(t, f.locker.held)
}

func TestSettleDueRecordsResponsible(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T2", twoTeas())

	result, err := f.svc.Settle(context.Background(), SettleInput{
		BranchCode:         testBranch,
		TableID:            table.ID,
		DiscountPercentage: decimal.NewFromInt(10),
		Method:             method(enums.PaymentMethodDue),
		Status:             enums.PaymentStatusDue,
		Responsible:        "  Asha ",
	})
	require.NoError(t, err)

	require.NotNil(t, result.HistoryEntry.Payment.Responsible)
	assert.Equal(t, "Asha", *result.HistoryEntry.Payment.Responsible)
	assert.True(t, result.HistoryEntry.Payment.DiscountedTotal.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, "Payment Due Successfully by Asha", result.Table.OrderStatus)

	var events []models.OutboxEvent
	require.NoError(t, f.client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventTableDue, events[0].EventType)
}

func TestSettleRejectsEmptyOrders(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T3", types.OrderLines{})

	_, err := f.svc.Settle(context.Background(), SettleInput{
		BranchCode: testBranch,
		TableID:    table.ID,
		Method:     method(enums.PaymentMethodCash),
		Status:     enums.PaymentStatusSettled,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStateConflict(err))
	assert.Equal(t, int64(0), f.historyCount(t, table.ID))

	var settlements int64
	require.NoError(t, f.client.DB().Model(&models.Settlement{}).Count(&settlements).Error)
	assert.Equal(t, int64(0), settlements)

	var stored models.Table
	require.NoError(t, f.client.DB().First(&stored, "id = ?", table.ID).Error)
	assert.Equal(t, table.OrderStatus, stored.OrderStatus)
}

func TestSettleValidation(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T4", twoTeas())

	cases := map[string]SettleInput{
		"due without responsible": {Method: method(enums.PaymentMethodDue), Status: enums.PaymentStatusDue, Responsible: "   "},
		"missing method":          {Status: enums.PaymentStatusSettled},
		"unknown method":          {Method: method(enums.PaymentMethod("Cheque")), Status: enums.PaymentStatusSettled},
		"unknown status":          {Method: method(enums.PaymentMethodCash), Status: "Partial"},
		"discount over 100":       {Method: method(enums.PaymentMethodCash), Status: enums.PaymentStatusSettled, DiscountPercentage: decimal.NewFromInt(101)},
		"negative discount":       {Method: method(enums.PaymentMethodCash), Status: enums.PaymentStatusSettled, DiscountPercentage: decimal.NewFromInt(-1)},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			input.BranchCode = testBranch
			input.TableID = table.ID
			_, err := f.svc.Settle(context.Background(), input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}

	assert.Equal(t, int64(0), f.historyCount(t, table.ID))
	var stored models.Table
	require.NoError(t, f.client.DB().First(&stored, "id = ?", table.ID).Error)
	assert.Len(t, stored.Orders, 1)
}

func TestSettleUnknownTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Settle(context.Background(), SettleInput{
		BranchCode: testBranch,
		TableID:    uuid.New(),
		Method:     method(enums.PaymentMethodCash),
		Status:     enums.PaymentStatusSettled,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSettleTableOfOtherBranchIsNotFound(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T5", twoTeas())

	_, err := f.svc.Settle(context.Background(), SettleInput{
		BranchCode: "BR2",
		TableID:    table.ID,
		Method:     method(enums.PaymentMethodCash),
		Status:     enums.PaymentStatusSettled,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSettleReplaysAttempt(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T6", twoTeas())
	attempt := uuid.New()
	input := SettleInput{
		BranchCode: testBranch,
		TableID:    table.ID,
		AttemptID:  &attempt,
		Method:     method(enums.PaymentMethodCard),
		Status:     enums.PaymentStatusSettled,
	}

	first, err := f.svc.Settle(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, attempt, first.Settlement.ID)

	second, err := f.svc.Settle(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.HistoryEntry.ID, second.HistoryEntry.ID)
	assert.Equal(t, int64(1), f.historyCount(t, table.ID))

	other := f.seedTable(t, "T7", twoTeas())
	input.TableID = other.ID
	_, err = f.svc.Settle(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIdempotency))
}

func TestSettleRejectsWhileTableLocked(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T8", twoTeas())
	_, ok, err := f.locker.AcquireLock(context.Background(), f.locker.TableLockKey(testBranch, table.ID.String()), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Settle(context.Background(), SettleInput{
		BranchCode: testBranch,
		TableID:    table.ID,
		Method:     method(enums.PaymentMethodCash),
		Status:     enums.PaymentStatusSettled,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, int64(0), f.historyCount(t, table.ID))
}

func TestSettleDeductsIngredientsAndKeepsWarnings(t *testing.T) {
	f := newFixture(t)
	milk := models.InventoryItem{BranchCode: testBranch, IngredientName: "Milk", Quantity: decimal.NewFromInt(1000), Unit: enums.UnitMilliliters}
	require.NoError(t, f.client.DB().Create(&milk).Error)
	orders := twoTeas()
	orders[0].Ingredients = append(orders[0].Ingredients, types.IngredientUse{IngredientName: "Honey", QuantityUsedPerUnit: decimal.NewFromInt(5)})
	table := f.seedTable(t, "T9", orders)

	result, err := f.svc.Settle(context.Background(), SettleInput{
		BranchCode: testBranch,
		TableID:    table.ID,
		Method:     method(enums.PaymentMethodUPI),
		Status:     enums.PaymentStatusSettled,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Deduction)
	assert.Equal(t, 1, result.Deduction.Applied())
	require.Len(t, result.Settlement.Warnings, 1)
	assert.Contains(t, result.Settlement.Warnings[0], "Honey")

	var stored models.InventoryItem
	require.NoError(t, f.client.DB().First(&stored, "id = ?", milk.ID).Error)
	assert.True(t, stored.Quantity.Equal(decimal.NewFromInt(900)))

	persisted, err := f.repo.FindByID(context.Background(), result.Settlement.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SettlementStateCompleted, persisted.State)
	assert.Len(t, persisted.Warnings, 1)
}

func TestResumeSettlingAttempt(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T10", twoTeas())
	pending := models.Settlement{
		TableID:    table.ID,
		BranchCode: testBranch,
		State:      enums.SettlementStateSettling,
		Status:     enums.PaymentStatusSettled,
		Method:     method(enums.PaymentMethodCash),
	}
	require.NoError(t, f.repo.Create(context.Background(), &pending))

	result, err := f.svc.Resume(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, enums.SettlementStateCompleted, result.Settlement.State)
	assert.Equal(t, int64(1), f.historyCount(t, table.ID))
}

func TestResumeAbandonsAttemptForEmptyTable(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T11", types.OrderLines{})
	pending := models.Settlement{
		TableID:    table.ID,
		BranchCode: testBranch,
		State:      enums.SettlementStateSettling,
		Status:     enums.PaymentStatusSettled,
		Method:     method(enums.PaymentMethodCash),
	}
	require.NoError(t, f.repo.Create(context.Background(), &pending))

	_, err := f.svc.Resume(context.Background(), pending.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStateConflict(err))

	stored, err := f.repo.FindByID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SettlementStateCompleted, stored.State)
	require.Len(t, stored.Warnings, 1)
	assert.Contains(t, stored.Warnings[0], "abandoned")
	assert.Equal(t, int64(0), f.historyCount(t, table.ID))
}

func TestResumeClosedAttemptRunsDeduction(t *testing.T) {
	f := newFixture(t)
	milk := models.InventoryItem{BranchCode: testBranch, IngredientName: "Milk", Quantity: decimal.NewFromInt(500), Unit: enums.UnitMilliliters}
	require.NoError(t, f.client.DB().Create(&milk).Error)
	table := f.seedTable(t, "T12", types.OrderLines{})

	settlementID := uuid.New()
	entry := models.HistoryEntry{
		TableID:      table.ID,
		BranchCode:   testBranch,
		TableNumber:  table.TableNumber,
		SettlementID: &settlementID,
		Orders:       twoTeas(),
		Payment: models.Payment{
			Total:           decimal.NewFromInt(20),
			DiscountedTotal: decimal.NewFromInt(20),
			Status:          enums.PaymentStatusSettled,
			Method:          method(enums.PaymentMethodCash),
			Timestamp:       time.Now().UTC(),
		},
	}
	require.NoError(t, f.client.DB().Create(&entry).Error)
	closed := models.Settlement{
		ID:             settlementID,
		TableID:        table.ID,
		BranchCode:     testBranch,
		State:          enums.SettlementStateClosed,
		Status:         enums.PaymentStatusSettled,
		Method:         method(enums.PaymentMethodCash),
		HistoryEntryID: &entry.ID,
	}
	require.NoError(t, f.repo.Create(context.Background(), &closed))

	result, err := f.svc.Resume(context.Background(), settlementID)
	require.NoError(t, err)
	require.NotNil(t, result.Deduction)
	assert.Equal(t, 1, result.Deduction.Applied())
	assert.Equal(t, enums.SettlementStateCompleted, result.Settlement.State)

	var stored models.InventoryItem
	require.NoError(t, f.client.DB().First(&stored, "id = ?", milk.ID).Error)
	assert.True(t, stored.Quantity.Equal(decimal.NewFromInt(400)))
}

func TestPreviewBuildsBill(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T13", twoTeas())

	bill, err := f.svc.Preview(context.Background(), PreviewInput{
		BranchCode:         testBranch,
		TableID:            table.ID,
		DiscountPercentage: decimal.NewFromInt(10),
		Method:             method(enums.PaymentMethodCash),
	})
	require.NoError(t, err)
	assert.Equal(t, "T13", bill.TableNumber)
	assert.Equal(t, "20.00", bill.Total)
	assert.Equal(t, "18.00", bill.FinalPrice)
	require.Len(t, bill.Lines, 1)
	assert.Equal(t, "10.00", bill.Lines[0].UnitPrice)

	var stored models.Table
	require.NoError(t, f.client.DB().First(&stored, "id = ?", table.ID).Error)
	assert.Len(t, stored.Orders, 1)
}

func TestOrderStatusText(t *testing.T) {
	assert.Equal(t, "Payment Successfully Settled", OrderStatusText(enums.PaymentStatusSettled, "x"))
	assert.Equal(t, "Payment Due Successfully by Ravi", OrderStatusText(enums.PaymentStatusDue, "Ravi"))
}

// heldDeductor parks the first deduction until release is closed.
type heldDeductor struct {
	next    deductor
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newHeldDeductor(next deductor) *heldDeductor {
	return &heldDeductor{next: next, entered: make(chan struct{}), release: make(chan struct{})}
}

func (d *heldDeductor) Deduct(ctx context.Context, branchCode string, settlementID *uuid.UUID, lines types.OrderLines) inventory.DeductionReport {
	if d.calls.Add(1) == 1 {
		close(d.entered)
		<-d.release
	}
	return d.next.Deduct(ctx, branchCode, settlementID, lines)
}

func (f fixture) deductRows(t *testing.T, itemID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.InventoryHistory{}).
		Where("inventory_item_id = ? AND action = ?", itemID, enums.InventoryActionDeduct).
		Count(&count).Error)
	return count
}

func TestReplayDuringDeductionDoesNotDeductTwice(t *testing.T) {
	var held *heldDeductor
	f := newFixtureWith(t, func(next deductor) deductor {
		held = newHeldDeductor(next)
		return held
	})
	milk := models.InventoryItem{BranchCode: testBranch, IngredientName: "Milk", Quantity: decimal.NewFromInt(1000), Unit: enums.UnitMilliliters}
	require.NoError(t, f.client.DB().Create(&milk).Error)
	table := f.seedTable(t, "T14", twoTeas())

	attemptID := uuid.New()
	input := SettleInput{
		BranchCode: testBranch,
		TableID:    table.ID,
		AttemptID:  &attemptID,
		Method:     method(enums.PaymentMethodCash),
		Status:     enums.PaymentStatusSettled,
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := f.svc.Settle(context.Background(), input)
		firstErr <- err
	}()
	<-held.entered

	replay, err := f.svc.Settle(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Nil(t, replay.Deduction)
	assert.Equal(t, enums.SettlementStateDeducting, replay.Settlement.State)

	resumed, err := f.svc.Resume(context.Background(), attemptID)
	require.NoError(t, err)
	assert.Nil(t, resumed.Deduction)

	close(held.release)
	require.NoError(t, <-firstErr)

	assert.Equal(t, int32(1), held.calls.Load())
	var stored models.InventoryItem
	require.NoError(t, f.client.DB().First(&stored, "id = ?", milk.ID).Error)
	assert.True(t, stored.Quantity.Equal(decimal.NewFromInt(900)), "got %s", stored.Quantity)
	assert.Equal(t, int64(1), f.deductRows(t, milk.ID))

	persisted, err := f.repo.FindByID(context.Background(), attemptID)
	require.NoError(t, err)
	assert.Equal(t, enums.SettlementStateCompleted, persisted.State)
}

func TestResumeTakesOverExpiredDeductionWithoutRepeatingIt(t *testing.T) {
	f := newFixture(t)
	milk := models.InventoryItem{BranchCode: testBranch, IngredientName: "Milk", Quantity: decimal.NewFromInt(1000), Unit: enums.UnitMilliliters}
	require.NoError(t, f.client.DB().Create(&milk).Error)
	table := f.seedTable(t, "T15", twoTeas())

	result, err := f.svc.Settle(context.Background(), SettleInput{
		BranchCode: testBranch,
		TableID:    table.ID,
		Method:     method(enums.PaymentMethodCash),
		Status:     enums.PaymentStatusSettled,
	})
	require.NoError(t, err)

	// The claim holder died after writing stock but before completing.
	require.NoError(t, f.client.DB().Model(&models.Settlement{}).
		Where("id = ?", result.Settlement.ID).
		UpdateColumns(map[string]any{
			"state":      enums.SettlementStateDeducting,
			"updated_at": time.Now().Add(-time.Hour),
		}).Error)

	resumed, err := f.svc.Resume(context.Background(), result.Settlement.ID)
	require.NoError(t, err)
	require.NotNil(t, resumed.Deduction)
	require.Len(t, resumed.Deduction.Results, 1)
	assert.Equal(t, inventory.DeductionSkipped, resumed.Deduction.Results[0].Status)
	assert.Equal(t, enums.SettlementStateCompleted, resumed.Settlement.State)

	var stored models.InventoryItem
	require.NoError(t, f.client.DB().First(&stored, "id = ?", milk.ID).Error)
	assert.True(t, stored.Quantity.Equal(decimal.NewFromInt(900)), "got %s", stored.Quantity)
	assert.Equal(t, int64(1), f.deductRows(t, milk.ID))
}

func TestResumeLeavesLiveDeductionClaimAlone(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(t, "T16", twoTeas())

	result, err := f.svc.Settle(context.Background(), SettleInput{
		BranchCode: testBranch,
		TableID:    table.ID,
		Method:     method(enums.PaymentMethodCash),
		Status:     enums.PaymentStatusSettled,
	})
	require.NoError(t, err)
	require.NoError(t, f.client.DB().Model(&models.Settlement{}).
		Where("id = ?", result.Settlement.ID).
		UpdateColumn("state", enums.SettlementStateDeducting).Error)

	resumed, err := f.svc.Resume(context.Background(), result.Settlement.ID)
	require.NoError(t, err)
	assert.Nil(t, resumed.Deduction)
	assert.Equal(t, enums.SettlementStateDeducting, resumed.Settlement.State)
}
