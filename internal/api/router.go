package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// NewRouter maps the journal endpoints onto h.
func NewRouter(h *Handler, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/trades", h.ListTrades).Methods(http.MethodGet)
	api.HandleFunc("/trades", h.CreateTrade).Methods(http.MethodPost)
	api.HandleFunc("/trades/{id}", h.GetTrade).Methods(http.MethodGet)
	api.HandleFunc("/trades/{id}", h.UpdateTrade).Methods(http.MethodPut)
	api.HandleFunc("/trades/{id}", h.DeleteTrade).Methods(http.MethodDelete)
	api.HandleFunc("/trades/{id}/exits", h.AddExit).Methods(http.MethodPost)
	api.HandleFunc("/trades/{id}/stops", h.AddStopModification).Methods(http.MethodPost)
	api.HandleFunc("/trades/{id}/price", h.UpdateCurrentPrice).Methods(http.MethodPut)
	api.HandleFunc("/tickers", h.ListTickers).Methods(http.MethodGet)
	api.HandleFunc("/statistics", h.Statistics).Methods(http.MethodGet)

	log := logger.Named("http")
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", w.Header().Get(requestIDHeader)))
		})
	}
}

func recoveryMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("Panic recovered", zap.Any("error", err), zap.String("path", r.URL.Path))
					writeJSON(log, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
