package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"

	"crypto-forecast/internal/engine"
	"crypto-forecast/internal/logger"
	"crypto-forecast/internal/metrics"
	"crypto-forecast/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// DefaultStreamSchedule refreshes subscribed symbols every 30 seconds.
const DefaultStreamSchedule = "@every 30s"

// Hub manages websocket stream clients. On every cron tick it runs one
// Enhanced forecast per subscribed symbol and fans the result out to the
// clients watching that symbol.
type Hub struct {
	engine   Forecaster
	metrics  *metrics.Metrics
	log      *slog.Logger
	schedule string
	timeout  time.Duration

	cron *cron.Cron

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a Hub. schedule is a robfig/cron spec such as
// "@every 30s"; timeout bounds one refresh of one symbol.
func NewHub(f Forecaster, schedule string, timeout time.Duration, m *metrics.Metrics, log *slog.Logger) *Hub {
	if schedule == "" {
		schedule = DefaultStreamSchedule
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	log = log.With("component", "stream")
	return &Hub{
		engine:   f,
		metrics:  m,
		log:      log,
		schedule: schedule,
		timeout:  timeout,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		clients:  make(map[*Client]struct{}),
	}
}

// Start schedules the refresh job.
func (h *Hub) Start() error {
	if _, err := h.cron.AddFunc(h.schedule, h.Refresh); err != nil {
		return err
	}
	h.cron.Start()
	h.log.Info("stream refresh scheduled", "schedule", h.schedule)
	return nil
}

// Stop halts the scheduler; the returned context is done once a running
// refresh has finished.
func (h *Hub) Stop() context.Context {
	return h.cron.Stop()
}

// ServeWS upgrades the connection and registers a client for ?symbol=.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sym, err := model.NormalizeSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: genericError})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &Client{
		conn:   conn,
		send:   make(chan []byte, 16),
		hub:    h,
		symbol: sym,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	h.log.Info("ws client connected", "symbol", sym, "clients", count)

	go c.writePump()
	go c.readPump()
	go h.pushTo(c, sym)
}

// RemoveClient unregisters c and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	h.log.Info("ws client disconnected", "clients", count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Symbols returns the distinct subscribed symbols, sorted.
func (h *Hub) Symbols() []string {
	h.mu.RLock()
	seen := make(map[string]struct{})
	for c := range h.clients {
		seen[c.Symbol()] = struct{}{}
	}
	h.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Refresh forecasts every subscribed symbol once and broadcasts the result.
func (h *Hub) Refresh() {
	for _, sym := range h.Symbols() {
		msg := h.build(sym)
		h.broadcast(sym, msg)
	}
}

// pushTo sends a fresh forecast for sym to a single client.
func (h *Hub) pushTo(c *Client, sym string) {
	h.sendTo(c, h.build(sym))
}

func (h *Hub) build(sym string) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	ctx = logger.WithTraceID(ctx, logger.NewTraceID())

	msg := StreamMessage{Symbol: sym, TS: time.Now().UTC()}
	bundle, err := h.engine.Forecast(ctx, sym, engine.Enhanced)
	if err != nil {
		if h.metrics != nil {
			h.metrics.StreamFailures.Inc()
		}
		h.log.Warn("stream refresh failed",
			append(logger.LogWithTrace(ctx), "symbol", sym, "kind", engine.Kind(err), "error", err)...)
		msg.Type = "error"
		msg.Error = genericError
	} else {
		msg.Type = "forecast"
		msg.Data = bundle.JSON()
	}
	out, _ := json.Marshal(msg)
	return out
}

func (h *Hub) broadcast(sym string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.Symbol() != sym {
			continue
		}
		h.enqueue(c, msg)
	}
}

func (h *Hub) sendTo(c *Client, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.enqueue(c, msg)
	}
}

// enqueue must be called with h.mu held; a full queue drops the frame.
func (h *Hub) enqueue(c *Client, msg []byte) {
	select {
	case c.send <- msg:
		if h.metrics != nil {
			h.metrics.StreamPushes.Inc()
		}
	default:
		h.log.Warn("ws send queue full, frame dropped", "symbol", c.Symbol())
	}
}
