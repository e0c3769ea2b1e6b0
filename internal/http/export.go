package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"attendancepro/internal/attendance"
	"attendancepro/internal/db"
)

const (
	exportPageSize = 500
	maxExportRows  = 10000
)

var exportHeaders = []string{"Date", "Time", "Status", "Latitude", "Longitude", "Accuracy"}

type exportPeriod struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type exportJSONResponse struct {
	UserID      string           `json:"user_id"`
	Period      exportPeriod     `json:"period"`
	Data        []recordResponse `json:"data"`
	GeneratedAt string           `json:"generated_at"`
}

func (s *Server) handleExportAttendance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "unsupported_format")
		return
	}
	filter, errCode := parseFilter(r, claims.UserID)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}

	ctx, cancel := s.storeContext(r.Context())
	defer cancel()
	records, err := s.collectRecords(ctx, filter)
	if err != nil {
		serverError(w, r, "export lookup", claims.UserID, err)
		return
	}

	now := time.Now().In(s.location())
	filename := fmt.Sprintf("attendance_report_%s.%s", now.Format("20060102_150405"), format)
	switch format {
	case "csv":
		body, err := s.exportCSV(claims.UserID, filter, records, now)
		if err != nil {
			serverError(w, r, "export csv", claims.UserID, err)
			return
		}
		writeAttachment(w, "text/csv", filename, body)
	case "xlsx":
		body, err := s.exportXLSX(records)
		if err != nil {
			serverError(w, r, "export xlsx", claims.UserID, err)
			return
		}
		writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename, body)
	default:
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		writeJSON(w, http.StatusOK, exportJSONResponse{
			UserID:      claims.UserID,
			Period:      periodOf(filter),
			Data:        s.mapRecords(records),
			GeneratedAt: now.Format(time.RFC3339),
		})
	}
}

// collectRecords pages through the filtered history, newest first.
func (s *Server) collectRecords(ctx context.Context, filter db.Filter) ([]attendance.Record, error) {
	filter.Limit = exportPageSize
	var all []attendance.Record
	for offset := 0; offset < maxExportRows; offset += exportPageSize {
		filter.Offset = int32(offset)
		page, err := s.history.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			break
		}
	}
	return all, nil
}

func (s *Server) exportCSV(userID string, filter db.Filter, records []attendance.Record, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	out := csv.NewWriter(&buf)
	period := periodOf(filter)
	rows := [][]string{
		{"Attendance Report"},
		{"User:", userID},
		{"Period:", period.StartDate + " to " + period.EndDate},
		{"Generated:", now.Format("2006-01-02 15:04:05")},
		{},
		exportHeaders,
	}
	for _, rec := range records {
		rows = append(rows, s.exportRow(rec))
	}
	if err := out.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) exportXLSX(records []attendance.Record) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()
	sheet := file.GetSheetName(file.GetActiveSheetIndex())

	for i, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}
	for index, rec := range records {
		for col, value := range s.exportRow(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, index+2)
			if err != nil {
				return nil, err
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buffer, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (s *Server) exportRow(rec attendance.Record) []string {
	local := rec.Timestamp.In(s.location())
	accuracy := ""
	if rec.Accuracy != nil {
		accuracy = strconv.FormatFloat(*rec.Accuracy, 'f', -1, 64)
	}
	return []string{
		local.Format(dateLayout),
		local.Format("15:04:05"),
		string(rec.Status),
		strconv.FormatFloat(rec.Latitude, 'f', -1, 64),
		strconv.FormatFloat(rec.Longitude, 'f', -1, 64),
		accuracy,
	}
}

func periodOf(filter db.Filter) exportPeriod {
	var period exportPeriod
	if filter.StartDate != nil {
		period.StartDate = filter.StartDate.Format(dateLayout)
	}
	if filter.EndDate != nil {
		period.EndDate = filter.EndDate.Format(dateLayout)
	}
	return period
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
