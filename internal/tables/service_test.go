package tables

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

const testBranch = "BR1"

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		DB:         client,
		Repository: NewRepository(client.DB()),
		Logger:     dbtest.Logger(),
	})
	require.NoError(t, err)
	return svc, client
}

func coffee(qty int) types.OrderLine {
	return types.OrderLine{ItemName: "Coffee", UnitPrice: decimal.RequireFromString("3.5"), Quantity: qty}
}

func TestCreateEnforcesUniqueNumberPerBranch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	table, err := svc.Create(ctx, testBranch, " 4 ")
	require.NoError(t, err)
	assert.Equal(t, "4", table.TableNumber)
	assert.NotEqual(t, uuid.Nil, table.ID)

	_, err = svc.Create(ctx, testBranch, "4")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.Create(ctx, "BR2", "4")
	require.NoError(t, err)

	_, err = svc.Create(ctx, testBranch, " ")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAddOrderLinesAppendsAndListTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	table, err := svc.Create(ctx, testBranch, "1")
	require.NoError(t, err)

	_, err = svc.AddOrderLines(ctx, testBranch, table.ID, types.OrderLines{coffee(2)})
	require.NoError(t, err)
	updated, err := svc.AddOrderLines(ctx, testBranch, table.ID, types.OrderLines{coffee(1)})
	require.NoError(t, err)
	assert.Len(t, updated.Orders, 2)
	assert.Equal(t, RunningOrderStatus, updated.OrderStatus)

	summaries, err := svc.List(ctx, testBranch)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].RunningTotal.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, 2, summaries[0].LineCount)
}

func TestAddOrderLinesValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	table, err := svc.Create(ctx, testBranch, "2")
	require.NoError(t, err)

	_, err = svc.AddOrderLines(ctx, testBranch, table.ID, types.OrderLines{coffee(0)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.AddOrderLines(ctx, testBranch, table.ID, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.AddOrderLines(ctx, testBranch, uuid.New(), types.OrderLines{coffee(1)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestGetIncludesHistoryNewestFirst(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	table, err := svc.Create(ctx, testBranch, "3")
	require.NoError(t, err)

	base := time.Now().UTC()
	for i := 0; i < 2; i++ {
		entry := models.HistoryEntry{
			TableID:     table.ID,
			BranchCode:  testBranch,
			TableNumber: table.TableNumber,
			Orders:      types.OrderLines{coffee(i + 1)},
			Payment: models.Payment{
				Status:    enums.PaymentStatusSettled,
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			},
		}
		require.NoError(t, client.DB().Create(&entry).Error)
	}

	got, err := svc.Get(ctx, testBranch, table.ID)
	require.NoError(t, err)
	require.Len(t, got.OrderHistory, 2)
	assert.Equal(t, 2, got.OrderHistory[0].Orders[0].Quantity)

	_, err = svc.Get(ctx, "BR2", table.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

type stubCatalog map[uuid.UUID]models.Product

func (c stubCatalog) Get(ctx context.Context, branchCode string, id uuid.UUID) (*models.Product, error) {
	product, ok := c[id]
	if !ok || product.BranchCode != branchCode {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &product, nil
}

func TestAddOrderLinesResolvesMenuProducts(t *testing.T) {
	client := dbtest.Open(t)
	milkID := uuid.New()
	chai := models.Product{
		ID:         uuid.New(),
		BranchCode: testBranch,
		Name:       "Masala Chai",
		Price:      decimal.NewFromInt(40),
		Ingredients: types.IngredientUses{
			{InventoryItemID: &milkID, IngredientName: "Milk", QuantityUsedPerUnit: decimal.NewFromInt(80)},
		},
	}
	svc, err := NewService(ServiceParams{
		DB:         client,
		Repository: NewRepository(client.DB()),
		Catalog:    stubCatalog{chai.ID: chai},
		Logger:     dbtest.Logger(),
	})
	require.NoError(t, err)
	ctx := context.Background()
	table, err := svc.Create(ctx, testBranch, "9")
	require.NoError(t, err)

	updated, err := svc.AddOrderLines(ctx, testBranch, table.ID, types.OrderLines{
		{ProductID: &chai.ID, Quantity: 2},
		coffee(1),
	})
	require.NoError(t, err)
	require.Len(t, updated.Orders, 2)
	line := updated.Orders[0]
	assert.Equal(t, "Masala Chai", line.ItemName)
	assert.True(t, line.UnitPrice.Equal(decimal.NewFromInt(40)))
	require.Len(t, line.Ingredients, 1)
	assert.Equal(t, milkID, *line.Ingredients[0].InventoryItemID)
	assert.Equal(t, chai.ID, *line.ProductID)

	stored, err := svc.Get(ctx, testBranch, table.ID)
	require.NoError(t, err)
	require.Len(t, stored.Orders, 2)
	assert.Equal(t, milkID, *stored.Orders[0].Ingredients[0].InventoryItemID)

	missing := uuid.New()
	_, err = svc.AddOrderLines(ctx, testBranch, table.ID, types.OrderLines{{ProductID: &missing, Quantity: 1}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAddOrderLinesWithoutCatalogRejectsProductLines(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	table, err := svc.Create(ctx, testBranch, "10")
	require.NoError(t, err)

	productID := uuid.New()
	_, err = svc.AddOrderLines(ctx, testBranch, table.ID, types.OrderLines{{ProductID: &productID, Quantity: 1}})
	assert.True(t, pkgerrors.IsValidation(err))
}
