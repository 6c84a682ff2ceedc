// Package gateway is the HTTP surface of the forecast service: the forecast
// and price routes, CORS, the JSON error envelope and the websocket stream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"crypto-forecast/internal/engine"
	"crypto-forecast/internal/logger"
	"crypto-forecast/internal/metrics"
	"crypto-forecast/internal/model"
)

// genericError is the only failure message clients ever see.
const genericError = "failed to fetch data"

const maxBodyBytes = 4 << 10

// Forecaster is the engine surface the gateway needs.
type Forecaster interface {
	Forecast(ctx context.Context, symbol string, v engine.Variant) (*model.ForecastBundle, error)
	Price(ctx context.Context, symbol string) (string, float64, error)
}

// Server wires routes to the engine.
type Server struct {
	engine  Forecaster
	hub     *Hub
	metrics *metrics.Metrics
	health  *metrics.HealthStatus
	log     *slog.Logger
}

// NewServer creates a Server. hub, m and health may be nil; their routes are
// then not mounted.
func NewServer(f Forecaster, hub *Hub, m *metrics.Metrics, health *metrics.HealthStatus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:  f,
		hub:     hub,
		metrics: m,
		health:  health,
		log:     log.With("component", "gateway"),
	}
}

// Routes returns the mux with every route registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/crypto-data", s.instrument("/crypto-data", s.handleForecast(engine.Standard)))
	mux.Handle("/enhanced-crypto-data", s.instrument("/enhanced-crypto-data", s.handleForecast(engine.Enhanced)))
	mux.Handle("/api/forecast", s.instrument("/api/forecast", s.handleForecast(engine.Enhanced)))
	mux.Handle("/api/price", s.instrument("/api/price", http.HandlerFunc(s.handlePrice)))

	if s.hub != nil {
		mux.HandleFunc("/ws/forecast", s.hub.ServeWS)
	}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	if s.health != nil {
		mux.Handle("/healthz", s.health)
	}
	return mux
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

// handleForecast serves both POST {"symbol": "..."} and GET ?symbol=.
func (s *Server) handleForecast(v engine.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
			return
		}

		symbol, err := requestSymbol(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		bundle, err := s.engine.Forecast(r.Context(), symbol, v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bundle)
	}
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	sym, price, err := s.engine.Price(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PriceResponse{Symbol: sym, CurrentPrice: price})
}

// requestSymbol reads the symbol from the query string, falling back to the
// JSON body of a POST. An empty symbol is left for the engine to default.
func requestSymbol(w http.ResponseWriter, r *http.Request) (string, error) {
	if sym := r.URL.Query().Get("symbol"); sym != "" {
		return sym, nil
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return "", nil
	}

	var req forecastRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", model.Invalid("request body: %v", err)
	}
	return req.Symbol, nil
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrDataUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the cause and answers with the generic envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	s.log.Warn("request failed",
		append(logger.LogWithTrace(r.Context()), "path", r.URL.Path, "status", status, "kind", engine.Kind(err), "error", err)...)
	writeJSON(w, status, ErrorResponse{Error: genericError})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument attaches a request id to the context and response and records
// request metrics under route.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logger.NewTraceID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logger.WithTraceID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			s.metrics.RequestDur.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
		s.log.Debug("request served",
			append(logger.LogWithTrace(ctx), "route", route, "method", r.Method, "status", rec.status, "elapsed", time.Since(start))...)
	})
}
