package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"trading-journal-go/internal/database"
	"trading-journal-go/internal/journal"
	"trading-journal-go/internal/models"
	"trading-journal-go/internal/service"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Journal is the service surface the handlers call.
type Journal interface {
	CreateTrade(ctx context.Context, in journal.TradeInput) (*models.Trade, error)
	UpdateTrade(ctx context.Context, id string, in journal.TradeInput) (*models.Trade, error)
	AddExit(ctx context.Context, id string, in journal.ExitInput) (*models.Trade, error)
	AddStopModification(ctx context.Context, id string, in journal.StopInput) (*models.Trade, error)
	UpdateCurrentPrice(ctx context.Context, id string, price float64) (*models.Trade, error)
	DeleteTrade(ctx context.Context, id string) error
	GetTrade(ctx context.Context, id string) (*models.Trade, error)
	ListTrades(ctx context.Context, f database.TradeFilter) ([]models.Trade, error)
	ListTickers(ctx context.Context) ([]models.Ticker, error)
	Statistics(ctx context.Context, opts journal.StatisticsOptions) (journal.Snapshot, error)
}

// Handler holds dependencies for the API endpoints.
type Handler struct {
	journal Journal
	logger  *zap.Logger
}

func NewHandler(j Journal, logger *zap.Logger) *Handler {
	return &Handler{journal: j, logger: logger.Named("api")}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTrades returns trades, optionally narrowed by ?status=open,partial,
// ?ticker=<id> and ?limit=n.
// GET /api/trades
func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f database.TradeFilter
	for _, s := range strings.Split(q.Get("status"), ",") {
		if s = strings.TrimSpace(strings.ToLower(s)); s == "" {
			continue
		}
		status := models.TradeStatus(s)
		if !status.Valid() {
			h.respondError(w, http.StatusBadRequest, "invalid status "+s)
			return
		}
		f.Statuses = append(f.Statuses, status)
	}
	f.TickerID = q.Get("ticker")
	if raw := q.Get("limit"); raw != "" {
		limit, err := cast.ToIntE(raw)
		if err != nil || limit < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = limit
	}

	trades, err := h.journal.ListTrades(r.Context(), f)
	if err != nil {
		h.fail(w, "Failed to list trades", err)
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	h.respondJSON(w, http.StatusOK, trades)
}

// POST /api/trades
func (h *Handler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	var in journal.TradeInput
	if !h.decode(w, r, &in) {
		return
	}
	trade, err := h.journal.CreateTrade(r.Context(), in)
	if err != nil {
		h.fail(w, "Failed to create trade", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, trade)
}

// GET /api/trades/{id}
func (h *Handler) GetTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := h.journal.GetTrade(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "Failed to get trade", err)
		return
	}
	h.respondJSON(w, http.StatusOK, trade)
}

// PUT /api/trades/{id}
func (h *Handler) UpdateTrade(w http.ResponseWriter, r *http.Request) {
	var in journal.TradeInput
	if !h.decode(w, r, &in) {
		return
	}
	trade, err := h.journal.UpdateTrade(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.fail(w, "Failed to update trade", err)
		return
	}
	h.respondJSON(w, http.StatusOK, trade)
}

// DELETE /api/trades/{id}
func (h *Handler) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.DeleteTrade(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, "Failed to delete trade", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/trades/{id}/exits
func (h *Handler) AddExit(w http.ResponseWriter, r *http.Request) {
	var in journal.ExitInput
	if !h.decode(w, r, &in) {
		return
	}
	trade, err := h.journal.AddExit(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.fail(w, "Failed to add exit", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, trade)
}

// POST /api/trades/{id}/stops
func (h *Handler) AddStopModification(w http.ResponseWriter, r *http.Request) {
	var in journal.StopInput
	if !h.decode(w, r, &in) {
		return
	}
	trade, err := h.journal.AddStopModification(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.fail(w, "Failed to add stop modification", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, trade)
}

// PUT /api/trades/{id}/price
func (h *Handler) UpdateCurrentPrice(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Price journal.Number `json:"price"`
	}
	if !h.decode(w, r, &in) {
		return
	}
	if !in.Price.Set {
		h.respondError(w, http.StatusBadRequest, "price is required and must be numeric")
		return
	}
	trade, err := h.journal.UpdateCurrentPrice(r.Context(), mux.Vars(r)["id"], in.Price.Value)
	if err != nil {
		h.fail(w, "Failed to update current price", err)
		return
	}
	h.respondJSON(w, http.StatusOK, trade)
}

// GET /api/tickers
func (h *Handler) ListTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.journal.ListTickers(r.Context())
	if err != nil {
		h.fail(w, "Failed to list tickers", err)
		return
	}
	if tickers == nil {
		tickers = []models.Ticker{}
	}
	h.respondJSON(w, http.StatusOK, tickers)
}

// Statistics returns the statistics snapshot for
// ?status=closed-only|closed-and-partial&ticker=<id>&start=<date>&end=<date>.
// GET /api/statistics
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	opts, err := StatisticsOptionsFromQuery(r.URL.Query().Get, time.UTC)
	if err != nil {
		h.fail(w, "Invalid statistics query", err)
		return
	}
	snapshot, err := h.journal.Statistics(r.Context(), opts)
	if err != nil {
		h.fail(w, "Failed to compute statistics", err)
		return
	}
	h.respondJSON(w, http.StatusOK, snapshot)
}

// StatisticsOptionsFromQuery reads status, ticker, start and end through get.
// Dates without a zone are read in loc.
func StatisticsOptionsFromQuery(get func(string) string, loc *time.Location) (journal.StatisticsOptions, error) {
	status, err := journal.ParseStatusFilter(get("status"))
	if err != nil {
		return journal.StatisticsOptions{}, err
	}
	opts := journal.StatisticsOptions{Status: status, TickerID: get("ticker")}

	var rng journal.DateRange
	for _, b := range []struct {
		name string
		dst  *time.Time
	}{{"start", &rng.Start}, {"end", &rng.End}} {
		raw := strings.TrimSpace(get(b.name))
		if raw == "" {
			continue
		}
		t, err := cast.ToTimeInDefaultLocationE(raw, loc)
		if err != nil {
			return journal.StatisticsOptions{}, &journal.ValidationError{Field: b.name, Reason: "is not a date"}
		}
		*b.dst = t
	}
	if !rng.Start.IsZero() || !rng.End.IsZero() {
		opts.DateRange = &rng
	}
	return opts, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// fail maps service errors onto status codes.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, journal.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrExitExceedsShares):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, msg)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(h.logger, w, status, v)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	writeJSON(h.logger, w, status, map[string]string{"error": msg})
}

// writeJSON encodes v as the response body. The status line is already sent
// when encoding fails, so the error is only logged.
func writeJSON(log *zap.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response body", zap.Int("status", status), zap.Error(err))
	}
}
