package service

import (
	"context"
	"testing"
	"time"

	"restopos/internal/database"
	"restopos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevenueService_DayBounds(t *testing.T) {
	ict := time.FixedZone("ICT", 7*3600)
	svc := NewRevenueService(nil, ict)
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC) }

	day, from, to, err := svc.DayBounds("")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", day, "20:00 UTC is already the next day in ICT")
	assert.Equal(t, time.Date(2026, 3, 4, 17, 0, 0, 0, time.UTC), from.UTC())
	assert.Equal(t, 24*time.Hour, to.Sub(from))

	day, _, _, err = svc.DayBounds("2026-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-31", day)

	_, _, _, err = svc.DayBounds("31/01/2026")
	assert.ErrorIs(t, err, database.ErrValidation)
}

func TestRevenueService_Reports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orders := NewOrderService(f.db, nil, nil, nil, nil)

	bill := func(tableID, menuItemID, qty, discount int64) {
		o, err := orders.OpenOrder(ctx, tableID)
		require.NoError(t, err)
		_, err = orders.AddLineItem(ctx, o.ID, menuItemID, qty, nil)
		require.NoError(t, err)
		_, _, err = orders.CompleteOrder(ctx, o.ID, models.PaymentCash, discount)
		require.NoError(t, err)
	}
	bill(f.table.ID, f.coffee.ID, 2, 0)
	bill(f.table.ID, f.milkTea.ID, 1, 5000)
	bill(f.other.ID, f.milkTea.ID, 4, 0)

	svc := NewRevenueService(f.db, time.UTC)
	today := time.Now().UTC().Format(dateLayout)

	daily, err := svc.DailyRevenue(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(30000+20000+100000), daily.Revenue)
	assert.Equal(t, int64(3), daily.BillCount)

	byTable, err := svc.RevenueByTable(ctx, today)
	require.NoError(t, err)
	require.Len(t, byTable, 2)
	assert.Equal(t, "Bàn 2", byTable[0].TableName)
	assert.Equal(t, int64(2), byTable[1].OrderCount)

	bills, err := svc.ListBills(ctx, today)
	require.NoError(t, err)
	require.Len(t, bills, 3)

	got, err := svc.GetBill(ctx, bills[0].ID)
	require.NoError(t, err)
	assert.Equal(t, bills[0].TotalAmount, got.TotalAmount)

	report, err := svc.DayReport(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, daily.Revenue, report.Daily.Revenue)
	assert.Len(t, report.Bills, 3)
	assert.Len(t, report.ByTable, 2)

	empty, err := svc.DailyRevenue(ctx, "2001-01-01")
	require.NoError(t, err)
	assert.Zero(t, empty.Revenue)
}
