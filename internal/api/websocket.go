package api

import (
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thereceipt/label-engine/internal/jobs"
)

// WebSocket message types
const (
	EventJob   = "job"
	EventHello = "hello"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// WSMessage is a message sent to websocket clients.
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// handleWebSocket streams job events to the client until it disconnects.
// Each connection gets its own queue subscription.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	logger.Debugf("websocket client connected from %s", c.ClientIP())

	events, unsubscribe := s.jobs.Subscribe()
	closed := make(chan struct{})
	go readPump(conn, closed)
	writePump(conn, events, closed, s.jobs.List())

	unsubscribe()
	conn.Close()
	logger.Debugf("websocket client disconnected")
}

// readPump discards client messages and reports when the connection closes.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("websocket read error: %v", err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, events <-chan jobs.Event, closed <-chan struct{}, current []*jobs.Job) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(msg WSMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debugf("websocket write error: %v", err)
			return false
		}
		return true
	}

	if !write(WSMessage{Event: EventHello, Data: map[string]any{"jobs": current}}) {
		return
	}
	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !write(WSMessage{Event: EventJob, Data: ev}) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
