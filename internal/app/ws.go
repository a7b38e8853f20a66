package app

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"roadsense/go-hub-server/internal/model"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsListener adapts one WebSocket connection to the hub's Listener
// interface. The write mutex keeps concurrent deliveries off the wire
// at the same time; the hub already orders per-user deliveries.
type wsListener struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (l *wsListener) Deliver(record model.ProcessedRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return l.conn.WriteJSON(record)
}

// handleWebSocket upgrades the connection and subscribes it to live
// records for the user in the path. Any read error, including abnormal
// termination, tears the subscription down.
func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("userID"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	listener := &wsListener{conn: conn}

	a.hub.Subscribe(userID, listener)
	a.logger.Info("listener connected", "user_id", userID, "conn", connID)

	defer func() {
		a.hub.Unsubscribe(userID, listener)
		_ = conn.Close()
		a.logger.Info("listener disconnected", "user_id", userID, "conn", connID)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Debug("websocket read error", "conn", connID, "error", err)
			}
			return
		}
	}
}
