package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/hub"
)

// Deadlines for tracking connections. Pings flow every pingPeriod; a
// client that answers no pong within pongWait is dropped by the read
// loop's deadline.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// wsSubscriber adapts one WebSocket connection to the hub's
// subscriber contract. All writes go through one mutex; gorilla
// connections do not allow concurrent writers.
type wsSubscriber struct {
	id   string
	conn *websocket.Conn

	mu sync.Mutex
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{id: uuid.NewString(), conn: conn}
}

// ID implements hub.Subscriber.
func (ws *wsSubscriber) ID() string { return ws.id }

// Send marshals the envelope and writes it as one text message.
func (ws *wsSubscriber) Send(env hub.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.WrapInvalid(err, "Gateway", "Send", "marshal envelope")
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *wsSubscriber) ping() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteMessage(websocket.PingMessage, nil)
}

// handleTrack upgrades the request and attaches the connection to the
// stack's tracking feed. Envelopes flow one way, from the hub's poll
// loop to the client; the read loop only surfaces the close handshake
// and keeps pong handling alive.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	stackName := mux.Vars(r)["stackName"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		s.logger.Warn("websocket upgrade failed", "stack", stackName, "error", err)
		return
	}

	sub := newWSSubscriber(conn)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.hub.Subscribe(stackName, sub)
	s.metrics.recordTrackingClient(1)
	s.logger.Info("tracking client connected", "stack", stackName, "subscriber", sub.id)

	done := make(chan struct{})
	go s.pingLoop(sub, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	s.hub.Unsubscribe(stackName, sub.id)
	_ = conn.Close()
	s.metrics.recordTrackingClient(-1)
	s.logger.Info("tracking client disconnected", "stack", stackName, "subscriber", sub.id)
}

// pingLoop keeps the client's pong clock ticking until the read loop
// ends or a ping write fails.
func (s *Server) pingLoop(sub *wsSubscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sub.ping(); err != nil {
				return
			}
		}
	}
}
