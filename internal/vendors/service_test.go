package vendors

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableside-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
)

const testBranch = "BR1"

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) *Service {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), dbtest.Logger())
	require.NoError(t, err)
	return svc
}

func TestVendorLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	vendor, err := svc.Create(ctx, testBranch, VendorInput{
		Name:          strPtr(" Fresh Farms "),
		ContactNo:     strPtr("555-0101"),
		Categories:    []string{"Dairy", " "},
		SuppliedItems: []string{"Milk", "Paneer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Fresh Farms", vendor.Name)
	assert.Len(t, vendor.Categories, 1)

	day1 := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	_, err = svc.AddStock(ctx, testBranch, vendor.ID, StockInput{IngredientName: "Milk", QuantityAdded: decimal.NewFromInt(20), Price: decimal.NewFromInt(400), InvoiceDate: day1})
	require.NoError(t, err)
	_, err = svc.AddStock(ctx, testBranch, vendor.ID, StockInput{IngredientName: "Paneer", QuantityAdded: decimal.NewFromInt(5), Price: decimal.NewFromInt(250), InvoiceDate: day2})
	require.NoError(t, err)

	detail, err := svc.Get(ctx, testBranch, vendor.ID, nil)
	require.NoError(t, err)
	assert.Len(t, detail.Stock, 2)
	assert.True(t, detail.TotalPayment.Equal(decimal.NewFromInt(650)))

	filtered, err := svc.Get(ctx, testBranch, vendor.ID, &day1)
	require.NoError(t, err)
	assert.True(t, filtered.TotalPayment.Equal(decimal.NewFromInt(400)))

	updated, err := svc.Update(ctx, testBranch, vendor.ID, VendorInput{Address: strPtr("12 Market Rd")})
	require.NoError(t, err)
	assert.Equal(t, "12 Market Rd", updated.Address)
	assert.Equal(t, "Fresh Farms", updated.Name)

	list, err := svc.List(ctx, testBranch)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other, err := svc.List(ctx, "BR2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestVendorValidationAndNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, testBranch, VendorInput{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.AddStock(ctx, testBranch, uuid.New(), StockInput{IngredientName: "Milk", QuantityAdded: decimal.NewFromInt(1), InvoiceDate: time.Now()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = svc.Update(ctx, testBranch, uuid.New(), VendorInput{Name: strPtr("x")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = svc.AddStock(ctx, testBranch, uuid.New(), StockInput{IngredientName: "Milk", QuantityAdded: decimal.Zero, InvoiceDate: time.Now()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestTotalPaymentAndExport(t *testing.T) {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	stock := []models.VendorStock{
		{IngredientName: "Milk", QuantityAdded: decimal.NewFromInt(20), Price: decimal.RequireFromString("400.5"), InvoiceDate: day},
		{IngredientName: "Curd", QuantityAdded: decimal.NewFromInt(3), Price: decimal.NewFromInt(90), InvoiceDate: day.AddDate(0, 0, 2)},
	}
	assert.True(t, TotalPayment(stock, nil).Equal(decimal.RequireFromString("490.5")))
	assert.True(t, TotalPayment(stock, &day).Equal(decimal.RequireFromString("400.5")))
	assert.True(t, TotalPayment(nil, nil).IsZero())

	var buf bytes.Buffer
	require.NoError(t, ExportStockCSV(&buf, stock))
	assert.Equal(t, "ingredient_name,quantity_added,price,invoice_date\nMilk,20,400.50,2026-04-01\nCurd,3,90.00,2026-04-03\n", buf.String())
}
