package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"restopos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() *models.DayReport {
	at := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)
	return &models.DayReport{
		Daily: models.DailyRevenue{Date: "2026-05-01", Revenue: 95000, BillCount: 2},
		Bills: []models.Bill{
			{ID: 2, OrderID: 7, TableName: "Bàn 3", Subtotal: 50000, Discount: 5000, TotalAmount: 45000, PaymentMethod: "card", CreatedAt: at},
			{ID: 1, OrderID: 6, TableName: "Bàn 1", Subtotal: 50000, TotalAmount: 50000, PaymentMethod: "cash", CreatedAt: at.Add(-time.Hour)},
		},
		ByTable: []models.TableRevenue{
			{TableName: "Bàn 1", BillCount: 1, OrderCount: 1, Revenue: 50000},
			{TableName: "Bàn 3", BillCount: 1, OrderCount: 1, Revenue: 45000},
		},
	}
}

func TestBuild(t *testing.T) {
	f, err := Build(sampleReport())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{billsSheet, byTableSheet}, f.GetSheetList())

	rows, err := f.GetRows(billsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Revenue 2026-05-01", rows[0][0])
	assert.Equal(t, "Bill", rows[1][0])
	assert.Equal(t, []string{"2", "7", "Bàn 3", "50000", "5000", "45000", "card", "2026-05-01 12:30:00"}, rows[2])
	assert.Equal(t, "Total", rows[4][0])
	assert.Equal(t, "95000", rows[4][5])

	rows, err = f.GetRows(byTableSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Bàn 1", "1", "1", "50000"}, rows[1])
}

func TestRevenueExporter_SaveAndWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	exporter := NewRevenueExporter(dir, nil)

	path, err := exporter.Save(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "revenue_2026-05-01.xlsx"), path)
	assert.FileExists(t, path)

	var buf bytes.Buffer
	require.NoError(t, exporter.Write(&buf, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(byTableSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestBuild_EmptyDay(t *testing.T) {
	f, err := Build(&models.DayReport{Daily: models.DailyRevenue{Date: "2026-05-02"}})
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(billsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "0", rows[2][5])
}
