package dues

import (
	"bytes"
	"context"
	"encoding/csv"
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
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

const testBranch = "BR1"

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		DB:         client,
		Repository: NewRepository(client.DB()),
		Outbox:     outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Logger:     dbtest.Logger(),
	})
	require.NoError(t, err)
	return svc, client
}

func seedEntry(t *testing.T, client *db.Client, status enums.PaymentStatus, method enums.PaymentMethod, responsible *string, total int64, at time.Time) models.HistoryEntry {
	t.Helper()
	entry := models.HistoryEntry{
		TableID:     uuid.New(),
		BranchCode:  testBranch,
		TableNumber: "T1",
		Orders: types.OrderLines{{
			ItemName:  "Tea",
			UnitPrice: decimal.NewFromInt(total),
			Quantity:  1,
		}},
		Payment: models.Payment{
			Total:           decimal.NewFromInt(total),
			DiscountedTotal: decimal.NewFromInt(total),
			Status:          status,
			Method:          &method,
			Responsible:     responsible,
			Timestamp:       at.UTC(),
		},
	}
	require.NoError(t, client.DB().Create(&entry).Error)
	return entry
}

func TestListDueGroupedSumsSameResponsible(t *testing.T) {
	svc, client := newTestService(t)
	now := time.Now()
	seedEntry(t, client, enums.PaymentStatusDue, enums.PaymentMethodDue, strPtr("Ravi"), 30, now)
	seedEntry(t, client, enums.PaymentStatusDue, enums.PaymentMethodDue, strPtr("Ravi"), 20, now)
	seedEntry(t, client, enums.PaymentStatusSettled, enums.PaymentMethodCash, nil, 99, now)

	flat, err := svc.ListDue(context.Background(), testBranch)
	require.NoError(t, err)
	assert.Len(t, flat, 2)

	groups, err := svc.ListDueGrouped(context.Background(), testBranch)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Ravi", groups[0].Responsible)
	assert.Equal(t, 2, groups[0].Count)
	assert.True(t, groups[0].Total.Equal(decimal.NewFromInt(50)))
}

func TestMarkSettledReconcilesDueEntry(t *testing.T) {
	svc, client := newTestService(t)
	due := seedEntry(t, client, enums.PaymentStatusDue, enums.PaymentMethodDue, strPtr("Asha"), 40, time.Now())

	entry, err := svc.MarkSettled(context.Background(), MarkSettledInput{
		BranchCode: testBranch,
		EntryID:    due.ID,
		Method:     enums.PaymentMethodCard,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSettled, entry.Status)
	require.NotNil(t, entry.Method)
	assert.Equal(t, enums.PaymentMethodCard, *entry.Method)

	var stored models.HistoryEntry
	require.NoError(t, client.DB().First(&stored, "id = ?", due.ID).Error)
	assert.Equal(t, enums.PaymentStatusSettled, stored.Payment.Status)
	require.NotNil(t, stored.Payment.Responsible)
	assert.Equal(t, "Asha", *stored.Payment.Responsible)

	var events []models.OutboxEvent
	require.NoError(t, client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventDueSettled, events[0].EventType)

	remaining, err := svc.ListDue(context.Background(), testBranch)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMarkSettledRejectsSettledEntry(t *testing.T) {
	svc, client := newTestService(t)
	settled := seedEntry(t, client, enums.PaymentStatusSettled, enums.PaymentMethodCash, nil, 40, time.Now())

	_, err := svc.MarkSettled(context.Background(), MarkSettledInput{
		BranchCode: testBranch,
		EntryID:    settled.ID,
		Method:     enums.PaymentMethodCash,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStateConflict(err))

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestMarkSettledValidation(t *testing.T) {
	svc, client := newTestService(t)
	due := seedEntry(t, client, enums.PaymentStatusDue, enums.PaymentMethodDue, strPtr("Asha"), 40, time.Now())

	for _, m := range []enums.PaymentMethod{enums.PaymentMethodDue, "", "Cheque"} {
		_, err := svc.MarkSettled(context.Background(), MarkSettledInput{BranchCode: testBranch, EntryID: due.ID, Method: m})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err), "method %q", m)
	}

	_, err := svc.MarkSettled(context.Background(), MarkSettledInput{BranchCode: testBranch, EntryID: uuid.New(), Method: enums.PaymentMethodCash})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = svc.MarkSettled(context.Background(), MarkSettledInput{BranchCode: "BR2", EntryID: due.ID, Method: enums.PaymentMethodCash})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestHistoryPaginatesAndTotals(t *testing.T) {
	svc, client := newTestService(t)
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedEntry(t, client, enums.PaymentStatusSettled, enums.PaymentMethodCash, nil, 10, base.Add(time.Duration(i)*time.Hour))
	}
	seedEntry(t, client, enums.PaymentStatusDue, enums.PaymentMethodDue, strPtr("Ravi"), 7, base.AddDate(0, 0, -3))

	from := base
	to := base
	first, err := svc.History(context.Background(), HistoryQuery{BranchCode: testBranch, From: &from, To: &to, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, first.Count)
	require.Len(t, first.Items, 2)
	assert.True(t, first.Items[0].Timestamp.After(first.Items[1].Timestamp))
	require.NotEmpty(t, first.NextCursor)
	assert.True(t, first.Totals[enums.PaymentMethodCash].Equal(decimal.NewFromInt(50)))
	assert.True(t, first.Totals[enums.PaymentMethodDue].IsZero())

	seen := map[uuid.UUID]bool{}
	for _, item := range first.Items {
		seen[item.EntryID] = true
	}
	cursor := first.NextCursor
	for cursor != "" {
		page, err := svc.History(context.Background(), HistoryQuery{BranchCode: testBranch, From: &from, To: &to, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, item := range page.Items {
			assert.False(t, seen[item.EntryID])
			seen[item.EntryID] = true
		}
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 5)

	all, err := svc.History(context.Background(), HistoryQuery{BranchCode: testBranch, Search: "ravi"})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
	assert.True(t, all.Totals[enums.PaymentMethodDue].Equal(decimal.NewFromInt(7)))
}

func TestHistoryRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	from := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)

	_, err := svc.History(context.Background(), HistoryQuery{BranchCode: testBranch, From: &from, To: &to})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.History(context.Background(), HistoryQuery{BranchCode: testBranch, Cursor: "%%%"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestExportHistoryCSV(t *testing.T) {
	ts := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	entry := entryAt(ts, 20, methodPtr(enums.PaymentMethodCash))
	entry.DiscountPercentage = decimal.NewFromInt(10)
	entry.DiscountedTotal = decimal.NewFromInt(18)

	var buf bytes.Buffer
	require.NoError(t, ExportHistoryCSV(&buf, []Entry{entry}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, []string{
		entry.EntryID.String(), "T1", "2026-05-10T12:00:00Z", "Settled", "Cash", "", "20.00", "10.00", "18.00",
	}, records[1])
}
