package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var harnessStart = time.Now()

type statsPayload struct {
	Event        string  `json:"event"`
	Attempts     int64   `json:"attempts"`
	Solved       int64   `json:"solved"`
	States       int64   `json:"states"`
	Evaluations  int64   `json:"evaluations"`
	SolvesPerSec float64 `json:"solves_per_sec"`
	UpdatedAtMS  int64   `json:"updated_at_ms"`
}

func snapshotStats(event string) statsPayload {
	uptime := time.Since(harnessStart).Seconds()
	attempts := totalSolves.Load()
	perSec := 0.0
	if uptime >= 1 {
		perSec = float64(attempts) / uptime
	}
	return statsPayload{
		Event:        event,
		Attempts:     attempts,
		Solved:       totalSolved.Load(),
		States:       totalStates.Load(),
		Evaluations:  totalEvaluations.Load(),
		SolvesPerSec: perSec,
		UpdatedAtMS:  time.Now().UnixMilli(),
	}
}

type StatsClient struct {
	hub  *StatsHub
	conn *websocket.Conn
	send chan []byte
}

type StatsHub struct {
	mu        sync.Mutex
	clients   map[*StatsClient]struct{}
	broadcast chan statsPayload
}

func NewStatsHub() *StatsHub {
	return &StatsHub{
		clients:   make(map[*StatsClient]struct{}),
		broadcast: make(chan statsPayload, 64),
	}
}

func (h *StatsHub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				client.sendJSON(payload)
			}
			h.mu.Unlock()
		}
	}
}

// Publish drops the payload when the broadcast buffer is full; stats
// are periodic, a missed frame is fine.
func (h *StatsHub) Publish(payload statsPayload) {
	select {
	case h.broadcast <- payload:
	default:
	}
}

func (h *StatsHub) Register(c *StatsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *StatsHub) Unregister(c *StatsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (c *StatsClient) sendJSON(payload statsPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func serveStatsWS(hub *StatsHub, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &StatsClient{hub: hub, conn: conn, send: make(chan []byte, 16)}
	hub.Register(client)

	client.sendJSON(snapshotStats("snapshot"))

	go func() {
		defer conn.Close()
		for data := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Unregister(client)
			return
		}
	}
}

// serveStats runs the live-stats HTTP server until the context ends.
func serveStats(ctx context.Context, logger zerolog.Logger, hub *StatsHub, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/stats", func(w http.ResponseWriter, r *http.Request) {
		serveStatsWS(hub, w, r)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("stats websocket listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("stats server exited")
	}
}
