package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/gauge-tracker/internal/entity"
	"github.com/joseph-ayodele/gauge-tracker/internal/metrics"
	"github.com/joseph-ayodele/gauge-tracker/internal/repository"
	"github.com/joseph-ayodele/gauge-tracker/internal/table"
)

// HealthChecker is satisfied by *repository.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

const maxListLimit = 1000

// NewHTTPHandler serves health, metrics and the readings sheet.
//
//	GET /healthz
//	GET /metrics
//	GET /readings?limit=N       JSON records, newest first
//	GET /readings.csv?limit=N   sheet rows, UTF-8 with BOM; every record without limit
//	GET /readings.xlsx?limit=N  sheet rows as a workbook; every record without limit
func NewHTTPHandler(repo repository.ReadingRepository, health HealthChecker, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandler{repo: repo, health: health, logger: logger}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/readings", h.listReadings)
	r.Get("/readings.csv", h.exportCSV)
	r.Get("/readings.xlsx", h.exportXLSX)
	return r
}

type httpHandler struct {
	repo   repository.ReadingRepository
	health HealthChecker
	logger *slog.Logger
}

func (h *httpHandler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.HealthCheck(r.Context(), 2*time.Second); err != nil {
			h.logger.Warn("http.healthz.failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandler) listReadings(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.load(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": recs})
}

func (h *httpHandler) exportCSV(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.load(w, r, true)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="gauge_readings.csv"`)
	if err := table.WriteCSV(w, sheetRows(recs)); err != nil {
		h.logger.Error("export.csv.failed", "error", err)
	}
}

func (h *httpHandler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.load(w, r, true)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="gauge_readings.xlsx"`)
	if err := table.WriteXLSX(w, sheetRows(recs)); err != nil {
		h.logger.Error("export.xlsx.failed", "error", err)
	}
}

// load reads ?limit and fetches records; it writes the error response itself.
// Without a limit, sheet exports get every record.
func (h *httpHandler) load(w http.ResponseWriter, r *http.Request, sheet bool) ([]*entity.Reading, bool) {
	limit := 0
	s := r.URL.Query().Get("limit")
	if s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > maxListLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("limit must be an integer in [0, %d]", maxListLimit)})
			return nil, false
		}
		limit = n
	}
	var (
		recs []*entity.Reading
		err  error
	)
	if sheet && s == "" {
		recs, err = h.repo.ListAll(r.Context())
	} else {
		recs, err = h.repo.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("http.readings.failed", "error", err, "request_id", chiMiddleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return nil, false
	}
	return recs, true
}

// sheetRows keeps records that produced a row, oldest first.
func sheetRows(recs []*entity.Reading) []table.Row {
	rows := make([]table.Row, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		if rec := recs[i]; rec.HasRow() {
			rows = append(rows, table.Row{Source: rec.Source, Reading: rec.Values()})
		}
	}
	return rows
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
