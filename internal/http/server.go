package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendancepro/internal/attendance"
	"attendancepro/internal/auth"
	"attendancepro/internal/config"
	"attendancepro/internal/db"
	"attendancepro/internal/kiosk"
)

// HistoryStore is the read side used by the history, report, today and export endpoints.
type HistoryStore interface {
	FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*attendance.Record, error)
	List(ctx context.Context, f db.Filter) ([]attendance.Record, error)
	Count(ctx context.Context, f db.Filter) (int64, error)
	Stats(ctx context.Context, f db.Filter) (db.Stats, error)
	Report(ctx context.Context, f db.Filter, period db.ReportPeriod) ([]db.ReportRow, error)
}

type Server struct {
	cfg       config.Config
	validator *attendance.Validator
	history   HistoryStore
	kiosk     *kiosk.Issuer
	validate  *validator.Validate
	registry  *prometheus.Registry
	metrics   *metrics
}

func NewServer(cfg config.Config, v *attendance.Validator, history HistoryStore, issuer *kiosk.Issuer) *Server {
	registry := prometheus.NewRegistry()
	return &Server{
		cfg:       cfg,
		validator: v,
		history:   history,
		kiosk:     issuer,
		validate:  validator.New(),
		registry:  registry,
		metrics:   newMetrics(registry),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/kiosk/qr", s.handleKioskCode)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/attendance", s.handleMarkAttendance)
		r.Get("/attendance", s.handleListAttendance)
		r.Get("/attendance/today", s.handleTodayAttendance)
		r.Get("/attendance/report", s.handleAttendanceReport)
		r.Get("/attendance/export", s.handleExportAttendance)
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// storeContext bounds one storage round trip.
func (s *Server) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Utilities

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// serverError logs the cause and answers with an opaque 500.
func serverError(w http.ResponseWriter, r *http.Request, op, userID string, err error) {
	log.Printf("%s failed request_id=%s user=%s: %v", op, middleware.GetReqID(r.Context()), userID, err)
	writeError(w, http.StatusInternalServerError, "server_error")
}
