// Package api exposes the read-only HTTP interface over the house price dataset.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/cache"
	"github.com/gmorse81/uk-hpi-service/internal/config"
	"github.com/gmorse81/uk-hpi-service/internal/database"
	"github.com/gmorse81/uk-hpi-service/internal/hpi"
	"github.com/gmorse81/uk-hpi-service/internal/telemetry"
)

// Server wires HTTP handlers to the dataset store and the response cache.
type Server struct {
	router chi.Router
	db     database.Provider
	cache  cache.Cache
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(db database.Provider, respCache cache.Cache, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		db:     db,
		cache:  respCache,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))
	r.Use(telemetry.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", telemetry.Handler())

	r.Get("/regions", s.getRegions)
	r.Get("/data/{region}", s.getRegionData)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database connection unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type regionsResponse struct {
	Regions []string `json:"regions"`
}

func (s *Server) getRegions(w http.ResponseWriter, r *http.Request) {
	if body, ok := s.cache.Get(r.Context(), cache.RegionsKey); ok {
		telemetry.ObserveCacheLookup("regions", true)
		s.writeCached(w, body)
		return
	}
	telemetry.ObserveCacheLookup("regions", false)

	regions, err := s.db.DistinctRegions(r.Context())
	if err != nil {
		s.serveDBError(w, r, "regions", err)
		return
	}
	if regions == nil {
		regions = []string{}
	}

	body, err := json.Marshal(regionsResponse{Regions: regions})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.cache.Set(r.Context(), cache.RegionsKey, body)
	s.writeCached(w, body)
}

type dataPoint struct {
	Date               string           `json:"date"`
	AveragePrice       decimal.Decimal  `json:"average_price"`
	Index              decimal.Decimal  `json:"index"`
	Salary             *decimal.Decimal `json:"average_annual_salary,omitempty"`
	AffordabilityRatio *decimal.Decimal `json:"affordability_ratio,omitempty"`
}

type regionDataResponse struct {
	Region string      `json:"region"`
	Data   []dataPoint `json:"data"`
}

func (s *Server) getRegionData(w http.ResponseWriter, r *http.Request) {
	region := chi.URLParam(r, "region")

	key := cache.DataKey(region)
	if body, ok := s.cache.Get(r.Context(), key); ok {
		telemetry.ObserveCacheLookup("data", true)
		s.writeCached(w, body)
		return
	}
	telemetry.ObserveCacheLookup("data", false)

	records, err := s.db.SeriesByRegion(r.Context(), region)
	if err != nil {
		s.serveDBError(w, r, "data", err)
		return
	}

	// Unknown region: empty data list, not an error.
	resp := regionDataResponse{Region: region, Data: make([]dataPoint, 0, len(records))}
	for _, rec := range records {
		resp.Data = append(resp.Data, toDataPoint(rec))
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.cache.Set(r.Context(), key, body)
	s.writeCached(w, body)
}

func toDataPoint(rec hpi.PriceRecord) dataPoint {
	point := dataPoint{
		Date:         rec.Date.Format("2006-01-02"),
		AveragePrice: rec.AveragePrice,
		Index:        rec.Index,
	}
	if rec.Salary.Valid {
		salary := rec.Salary.Decimal
		point.Salary = &salary
	}
	if ratio, ok := rec.AffordabilityRatio(); ok {
		point.AffordabilityRatio = &ratio
	}
	return point
}

func (s *Server) serveDBError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	if errors.Is(err, database.ErrNotConfigured) {
		s.writeError(w, http.StatusServiceUnavailable, "database connection unavailable")
		return
	}
	s.logger.Error("Query failed",
		zap.String("endpoint", endpoint),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	s.writeError(w, http.StatusServiceUnavailable, "unable to fetch data at this time")
}

func (s *Server) writeCached(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("Write response failed", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("Request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
