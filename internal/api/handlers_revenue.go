package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"restopos/internal/export"
	"restopos/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func queryDate(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("date"))
}

func (s *HTTPServer) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.svc.Revenue.ListBills(r.Context(), queryDate(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if bills == nil {
		bills = []models.Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *HTTPServer) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	bill, err := s.svc.Revenue.GetBill(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *HTTPServer) handleDailyRevenue(w http.ResponseWriter, r *http.Request) {
	daily, err := s.svc.Revenue.DailyRevenue(r.Context(), queryDate(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

func (s *HTTPServer) handleRevenueByTable(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Revenue.RevenueByTable(r.Context(), queryDate(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if rows == nil {
		rows = []models.TableRevenue{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleExportRevenue streams the day's workbook. With save=true the file is
// written to the export directory instead and its path returned.
func (s *HTTPServer) handleExportRevenue(w http.ResponseWriter, r *http.Request) {
	save, err := queryBool(r, "save")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	report, err := s.svc.Revenue.DayReport(r.Context(), queryDate(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	if save {
		path, err := s.svc.Exporter.Save(report)
		if err != nil {
			writeServiceError(w, r, s.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"path": path})
		return
	}

	var buf bytes.Buffer
	if err := s.svc.Exporter.Write(&buf, report); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(report.Daily.Date)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
