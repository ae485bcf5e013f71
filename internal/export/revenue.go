package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"restopos/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	billsSheet   = "Bills"
	byTableSheet = "By table"
)

// RevenueExporter renders a day of bills as an xlsx workbook.
type RevenueExporter struct {
	dir    string
	logger *zerolog.Logger
}

func NewRevenueExporter(dir string, logger *zerolog.Logger) *RevenueExporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RevenueExporter{dir: dir, logger: logger}
}

// FileName is the workbook name used for a report day.
func FileName(date string) string {
	return fmt.Sprintf("revenue_%s.xlsx", date)
}

// Save writes the workbook into the export directory and returns its path.
func (e *RevenueExporter) Save(report *models.DayReport) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Build(report)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(e.dir, FileName(report.Daily.Date))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bills", len(report.Bills)).Msg("revenue export created")
	return filePath, nil
}

// Write streams the workbook to w.
func (e *RevenueExporter) Write(w io.Writer, report *models.DayReport) error {
	f, err := Build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Build lays out the "Bills" and "By table" sheets. The caller closes the file.
func Build(report *models.DayReport) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", billsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(byTableSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating style: %w", err)
	}

	if err := writeBills(f, header, report); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeByTable(f, header, report); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeBills(f *excelize.File, header int, report *models.DayReport) error {
	_ = f.SetCellValue(billsSheet, "A1", fmt.Sprintf("Revenue %s", report.Daily.Date))
	_ = f.MergeCell(billsSheet, "A1", "H1")
	title, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(billsSheet, "A1", "A1", title)

	headers := []interface{}{"Bill", "Order", "Table", "Subtotal", "Discount", "Total", "Payment", "Time"}
	if err := f.SetSheetRow(billsSheet, "A2", &headers); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	_ = f.SetCellStyle(billsSheet, "A2", "H2", header)

	row := 3
	for _, b := range report.Bills {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			b.ID, b.OrderID, b.TableName, b.Subtotal, b.Discount, b.TotalAmount, b.PaymentMethod,
			b.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(billsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing bill %d: %w", b.ID, err)
		}
		row++
	}

	cell, _ := excelize.CoordinatesToCellName(1, row)
	totals := []interface{}{"Total", nil, nil, nil, nil, report.Daily.Revenue, fmt.Sprintf("%d bills", report.Daily.BillCount)}
	if err := f.SetSheetRow(billsSheet, cell, &totals); err != nil {
		return fmt.Errorf("error writing totals: %w", err)
	}
	end, _ := excelize.CoordinatesToCellName(8, row)
	_ = f.SetCellStyle(billsSheet, cell, end, header)

	_ = f.SetColWidth(billsSheet, "A", "B", 10)
	_ = f.SetColWidth(billsSheet, "C", "C", 20)
	_ = f.SetColWidth(billsSheet, "D", "G", 14)
	_ = f.SetColWidth(billsSheet, "H", "H", 20)
	return nil
}

func writeByTable(f *excelize.File, header int, report *models.DayReport) error {
	headers := []interface{}{"Table", "Bills", "Orders", "Revenue"}
	if err := f.SetSheetRow(byTableSheet, "A1", &headers); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	_ = f.SetCellStyle(byTableSheet, "A1", "D1", header)

	for i, r := range report.ByTable {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{r.TableName, r.BillCount, r.OrderCount, r.Revenue}
		if err := f.SetSheetRow(byTableSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing table %q: %w", r.TableName, err)
		}
	}

	_ = f.SetColWidth(byTableSheet, "A", "A", 25)
	_ = f.SetColWidth(byTableSheet, "B", "D", 14)
	return nil
}
