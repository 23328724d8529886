package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/voucherscan/internal/pipeline"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// LiveScanEvent is the message pushed to live feed subscribers whenever a
// scan completes.
type LiveScanEvent struct {
	Type   string           `json:"type"`
	Result *pipeline.Result `json:"result"`
}

// liveHub fans completed scan results out to websocket subscribers.
type liveHub struct {
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	events     chan *pipeline.Result
	done       chan struct{}
	log        *slog.Logger
}

func newLiveHub(log *slog.Logger) *liveHub {
	return &liveHub{
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		events:     make(chan *pipeline.Result, 16),
		done:       make(chan struct{}),
		log:        log,
	}
}

// run owns the subscriber set. All registration and fan-out goes through
// the hub's channels, so no locking is needed.
func (h *liveHub) run() {
	conns := make(map[*websocket.Conn]struct{})
	for {
		select {
		case conn := <-h.register:
			conns[conn] = struct{}{}
			websocketConnections.Inc()
		case conn := <-h.unregister:
			if _, ok := conns[conn]; ok {
				delete(conns, conn)
				websocketConnections.Dec()
				_ = conn.Close()
			}
		case result := <-h.events:
			if len(conns) == 0 {
				continue
			}
			data, err := json.Marshal(LiveScanEvent{Type: "scan", Result: result})
			if err != nil {
				h.log.Error("failed to marshal live scan event", "error", err)
				continue
			}
			for conn := range conns {
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					delete(conns, conn)
					websocketConnections.Dec()
					_ = conn.Close()
					continue
				}
				websocketMessagesTotal.WithLabelValues("scan").Inc()
			}
		case <-h.done:
			for conn := range conns {
				_ = conn.Close()
			}
			return
		}
	}
}

// broadcast queues a result for delivery to subscribers. Events are dropped
// when the hub is stopped or the buffer is full.
func (h *liveHub) broadcast(result *pipeline.Result) {
	select {
	case h.events <- result:
	case <-h.done:
	default:
	}
}

func (h *liveHub) stop() {
	close(h.done)
}

// liveHandler upgrades the connection and subscribes it to the live feed.
func (s *Server) liveHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade connection to websocket", "error", err)
		return
	}

	s.log.Info("live feed subscriber connected", "remote_addr", r.RemoteAddr)
	select {
	case s.hub.register <- conn:
	case <-s.hub.done:
		_ = conn.Close()
		return
	}

	// Send ping messages to keep the connection alive.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-s.hub.done:
				return
			}
		}
	}()

	// Clients may push binary image frames; each frame is scanned and the
	// result fanned out to all subscribers. All writes go through the hub.
	// The read loop keeps the handler (and its context) alive.
	defer func() {
		select {
		case s.hub.unregister <- conn:
		case <-s.hub.done:
		}
	}()
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug("websocket read error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if messageType == websocket.BinaryMessage {
			s.scanLiveFrame(r.Context(), data)
		}
	}
}

// scanLiveFrame decodes and scans one pushed camera frame. Frames that fail
// to decode or scan are dropped with a warning; the feed keeps running.
func (s *Server) scanLiveFrame(ctx context.Context, data []byte) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.log.Warn("live frame is not a decodable image", "error", err)
		return
	}

	timer := time.Now()
	result, err := s.pipeline.ProcessImage(ctx, liveFrameKey(), img)
	if err != nil {
		scansTotal.WithLabelValues("live", "error").Inc()
		s.log.Warn("live frame scan failed", "error", err)
		return
	}
	s.recordScan("live", timer, result)
	s.hub.broadcast(result)
}

// liveFrameKey names a pushed frame by arrival time; frames have no path
// or URL identity of their own.
func liveFrameKey() string {
	return "live/" + time.Now().UTC().Format("20060102T150405.000000000Z")
}
