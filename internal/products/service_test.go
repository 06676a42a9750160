package products

import (
	"context"
	"testing"

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
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

const testBranch = "BR1"

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(client.DB()),
		Items:      inventory.NewRepository(client.DB()),
		Logger:     dbtest.Logger(),
	})
	require.NoError(t, err)
	return svc, client
}

func TestCreateProductFillsNamesFromInventory(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	milk := models.InventoryItem{BranchCode: testBranch, IngredientName: "Milk", Category: "Dairy", Quantity: decimal.NewFromInt(1000), Unit: enums.UnitMilliliters}
	require.NoError(t, client.DB().Create(&milk).Error)

	product, err := svc.Create(ctx, testBranch, ProductInput{
		Name:        " Masala Chai ",
		Price:       decimal.NewFromInt(40),
		Subcategory: "Tea",
		Ingredients: []types.IngredientUse{
			{InventoryItemID: &milk.ID, QuantityUsedPerUnit: decimal.NewFromInt(80)},
			{IngredientName: " Sugar ", QuantityUsedPerUnit: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Masala Chai", product.Name)
	require.Len(t, product.Ingredients, 2)
	assert.Equal(t, "Milk", product.Ingredients[0].IngredientName)
	assert.Equal(t, milk.ID, *product.Ingredients[0].InventoryItemID)
	assert.Equal(t, "Sugar", product.Ingredients[1].IngredientName)

	stored, err := svc.Get(ctx, testBranch, product.ID)
	require.NoError(t, err)
	require.Len(t, stored.Ingredients, 2)
	assert.True(t, stored.Price.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, milk.ID, *stored.Ingredients[0].InventoryItemID)
}

func TestCreateProductValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	foreign := uuid.New()

	_, err := svc.Create(ctx, testBranch, ProductInput{
		Price: decimal.NewFromInt(-1),
		Ingredients: []types.IngredientUse{
			{QuantityUsedPerUnit: decimal.NewFromInt(1)},
			{InventoryItemID: &foreign, QuantityUsedPerUnit: decimal.NewFromInt(1)},
		},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	perr := pkgerrors.As(err)
	require.NotNil(t, perr)
	problems, ok := perr.Details().([]string)
	require.True(t, ok)
	assert.Len(t, problems, 4)

	_, err = svc.Create(ctx, "", ProductInput{Name: "Tea"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListProductsIsBranchScopedAndFiltered(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, in := range []ProductInput{
		{Name: "Masala Chai", Price: decimal.NewFromInt(40), Subcategory: "Tea"},
		{Name: "Green Tea", Price: decimal.NewFromInt(35), Subcategory: "Tea"},
		{Name: "Samosa", Price: decimal.NewFromInt(20), Subcategory: "Snacks"},
	} {
		_, err := svc.Create(ctx, testBranch, in)
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "BR2", ProductInput{Name: "Chai Latte", Price: decimal.NewFromInt(90)})
	require.NoError(t, err)

	all, err := svc.List(ctx, testBranch, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Samosa", all[0].Name)

	teas, err := svc.List(ctx, testBranch, ListFilter{Subcategory: "Tea"})
	require.NoError(t, err)
	assert.Len(t, teas, 2)

	chai, err := svc.List(ctx, testBranch, ListFilter{Search: "CHAI"})
	require.NoError(t, err)
	require.Len(t, chai, 1)
	assert.Equal(t, "Masala Chai", chai[0].Name)
}

func TestGetProductFromOtherBranchIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	product, err := svc.Create(context.Background(), "BR2", ProductInput{Name: "Tea", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), testBranch, product.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: dbtest.Logger()})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Repository: NewRepository(nil)})
	require.Error(t, err)
}
