package http

import (
	"context"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"attendancepro/internal/attendance"
	"attendancepro/internal/db"
)

const (
	dateLayout      = "2006-01-02"
	defaultPageSize = 20
	maxPageSize     = 100
)

// Models

type markAttendanceRequest struct {
	QRData    string   `json:"qr_data" validate:"required_without=QRPayload"`
	QRPayload string   `json:"qr_payload"`
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
	Accuracy  *float64 `json:"accuracy" validate:"omitempty,gte=0"`
}

type recordResponse struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Timestamp string   `json:"timestamp"`
	Date      string   `json:"date"`
	Status    string   `json:"status"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	QRData    string   `json:"qr_data"`
}

type markAttendanceResponse struct {
	Status         string         `json:"status"`
	DistanceMeters float64        `json:"distance_meters"`
	Record         recordResponse `json:"record"`
}

type rejectionResponse struct {
	Error          string   `json:"error"`
	ErrorKind      string   `json:"error_kind"`
	Detail         string   `json:"detail"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type reportRowResponse struct {
	PeriodStart  string `json:"period_start"`
	TotalEntries int64  `json:"total_entries"`
	Present      int64  `json:"present"`
	Late         int64  `json:"late"`
	Early        int64  `json:"early"`
	FirstCheckIn string `json:"first_checkin"`
	LastCheckIn  string `json:"last_checkin"`
}

type reportParameters struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Type      string `json:"type"`
}

type reportResponse struct {
	Report     []reportRowResponse `json:"report"`
	Parameters reportParameters    `json:"parameters"`
}

type listAttendanceResponse struct {
	Data       []recordResponse `json:"data"`
	Pagination pagination       `json:"pagination"`
	Stats      db.Stats         `json:"stats"`
}

// Handlers

func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req markAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	payload := req.QRData
	if payload == "" {
		payload = req.QRPayload
	}

	ctx, cancel := s.storeContext(r.Context())
	defer cancel()

	result, err := s.validator.Mark(ctx, attendance.CheckInRequest{
		UserID:    claims.UserID,
		QRPayload: payload,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Accuracy:  req.Accuracy,
	})
	if err != nil {
		s.writeMarkError(r.Context(), w, claims.UserID, err)
		return
	}

	s.metrics.checkIns.WithLabelValues(string(result.Status)).Inc()
	s.metrics.distance.Observe(result.DistanceMeters)
	writeJSON(w, http.StatusCreated, markAttendanceResponse{
		Status:         string(result.Status),
		DistanceMeters: result.DistanceMeters,
		Record:         s.mapRecord(result.Record),
	})
}

func (s *Server) writeMarkError(ctx context.Context, w http.ResponseWriter, userID string, err error) {
	rej, ok := attendance.AsReject(err)
	if !ok {
		s.metrics.checkIns.WithLabelValues("error").Inc()
		log.Printf("mark attendance failed request_id=%s user=%s: %v", middleware.GetReqID(ctx), userID, err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.metrics.checkIns.WithLabelValues(string(rej.Kind)).Inc()

	resp := rejectionResponse{
		Error:     rejectionCode(rej.Kind),
		ErrorKind: string(rej.Kind),
		Detail:    rej.Detail,
	}
	status := http.StatusBadRequest
	switch rej.Kind {
	case attendance.KindAlreadyMarked:
		status = http.StatusConflict
	case attendance.KindOutOfRange:
		distance := rej.DistanceMeters
		resp.DistanceMeters = &distance
		s.metrics.distance.Observe(distance)
	}
	writeJSON(w, status, resp)
}

func rejectionCode(kind attendance.Kind) string {
	switch kind {
	case attendance.KindInvalidCoordinates:
		return "invalid_coordinates"
	case attendance.KindMalformedToken:
		return "invalid_qr_code"
	case attendance.KindExpiredToken:
		return "qr_code_expired"
	case attendance.KindAlreadyMarked:
		return "already_marked"
	case attendance.KindOutOfRange:
		return "out_of_range"
	default:
		return "rejected"
	}
}

func (s *Server) handleTodayAttendance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	ctx, cancel := s.storeContext(r.Context())
	defer cancel()

	record, err := s.history.FindByUserAndDate(ctx, claims.UserID, s.validator.Today())
	if err != nil {
		serverError(w, r, "today lookup", claims.UserID, err)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"marked": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"marked": true,
		"record": s.mapRecord(*record),
	})
}

func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	filter, errCode := parseFilter(r, claims.UserID)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}
	page := parsePositive(r, "page", 1)
	limit := parsePositive(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	// OFFSET must stay within int32.
	if int64(page-1) > math.MaxInt32/int64(limit) {
		writeError(w, http.StatusBadRequest, "invalid_page")
		return
	}
	filter.Limit = int32(limit)
	filter.Offset = int32(int64(page-1) * int64(limit))

	ctx, cancel := s.storeContext(r.Context())
	defer cancel()

	records, err := s.history.List(ctx, filter)
	if err != nil {
		serverError(w, r, "history lookup", claims.UserID, err)
		return
	}
	total, err := s.history.Count(ctx, filter)
	if err != nil {
		serverError(w, r, "history count", claims.UserID, err)
		return
	}
	stats, err := s.history.Stats(ctx, filter)
	if err != nil {
		serverError(w, r, "history stats", claims.UserID, err)
		return
	}

	writeJSON(w, http.StatusOK, listAttendanceResponse{
		Data: s.mapRecords(records),
		Pagination: pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int64(math.Ceil(float64(total) / float64(limit))),
		},
		Stats: stats,
	})
}

// handleAttendanceReport groups the caller's records by day, week or month. The range defaults
// to the first of the current month through today.
func (s *Server) handleAttendanceReport(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	periodName := r.URL.Query().Get("type")
	if periodName == "" {
		periodName = string(db.ReportMonthly)
	}
	period, err := db.ParseReportPeriod(periodName)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_report_type")
		return
	}
	filter, errCode := parseFilter(r, claims.UserID)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}
	today := s.validator.Today()
	if filter.EndDate == nil {
		filter.EndDate = &today
	}
	if filter.StartDate == nil {
		monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		filter.StartDate = &monthStart
	}
	if filter.EndDate.Before(*filter.StartDate) {
		writeError(w, http.StatusBadRequest, "invalid_date_range")
		return
	}
	filter.Status = nil

	ctx, cancel := s.storeContext(r.Context())
	defer cancel()

	rows, err := s.history.Report(ctx, filter, period)
	if err != nil {
		serverError(w, r, "attendance report", claims.UserID, err)
		return
	}
	out := make([]reportRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, reportRowResponse{
			PeriodStart:  row.PeriodStart.Format(dateLayout),
			TotalEntries: row.TotalEntries,
			Present:      row.Present,
			Late:         row.Late,
			Early:        row.Early,
			FirstCheckIn: row.FirstCheckIn.In(s.location()).Format(time.RFC3339),
			LastCheckIn:  row.LastCheckIn.In(s.location()).Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, reportResponse{
		Report: out,
		Parameters: reportParameters{
			StartDate: filter.StartDate.Format(dateLayout),
			EndDate:   filter.EndDate.Format(dateLayout),
			Type:      string(period),
		},
	})
}

// parseFilter reads start_date, end_date and status. It returns an error code on bad input.
func parseFilter(r *http.Request, userID string) (db.Filter, string) {
	filter := db.Filter{UserID: userID}
	query := r.URL.Query()
	if raw := query.Get("start_date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return db.Filter{}, "invalid_start_date"
		}
		filter.StartDate = &parsed
	}
	if raw := query.Get("end_date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return db.Filter{}, "invalid_end_date"
		}
		filter.EndDate = &parsed
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return db.Filter{}, "invalid_date_range"
	}
	if raw := query.Get("status"); raw != "" {
		status, err := attendance.ParseStatus(raw)
		if err != nil {
			return db.Filter{}, "invalid_status"
		}
		filter.Status = &status
	}
	return filter, ""
}

func parsePositive(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func (s *Server) location() *time.Location {
	if loc := s.validator.Config().Location; loc != nil {
		return loc
	}
	return time.UTC
}

func (s *Server) mapRecord(rec attendance.Record) recordResponse {
	return recordResponse{
		ID:        rec.ID.String(),
		UserID:    rec.UserID,
		Timestamp: rec.Timestamp.In(s.location()).Format(time.RFC3339),
		Date:      rec.Date.Format(dateLayout),
		Status:    string(rec.Status),
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		Accuracy:  rec.Accuracy,
		QRData:    rec.QRPayload,
	}
}

func (s *Server) mapRecords(records []attendance.Record) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, s.mapRecord(rec))
	}
	return out
}
