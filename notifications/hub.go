package notifications

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StatusEvent is the payload pushed to channel subscribers on every status
// transition.
type StatusEvent struct {
	ChannelID string    `json:"channel_id"`
	Status    string    `json:"status"`
	TxHash    *string   `json:"tx_hash,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const writeTimeout = 10 * time.Second

// Hub tracks websocket subscribers per channel id. A subscriber that cannot
// be written to is dropped; clients are expected to reconnect and fall back
// to polling the status endpoint.
type Hub struct {
	upgrader websocket.Upgrader

	mtx         sync.Mutex
	subscribers map[string]map[*websocket.Conn]struct{}
}

// NewHub builds an empty hub. checkOrigin decides which websocket origins are
// accepted; nil allows all.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		subscribers: map[string]map[*websocket.Conn]struct{}{},
	}
}

// Subscribe upgrades the request to a websocket and registers it under the
// channel id. The connection is held open until the peer closes it.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, channelID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.mtx.Lock()
	if h.subscribers[channelID] == nil {
		h.subscribers[channelID] = map[*websocket.Conn]struct{}{}
	}
	h.subscribers[channelID][conn] = struct{}{}
	h.mtx.Unlock()

	log.Debugf("Websocket subscriber added for channel %s", channelID)

	// Drain the connection so close frames are processed; subscribers only
	// receive.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(channelID, conn)
				return
			}
		}
	}()
	return nil
}

func (h *Hub) remove(channelID string, conn *websocket.Conn) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if conns, ok := h.subscribers[channelID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subscribers, channelID)
		}
	}
	conn.Close()
}

// Broadcast delivers an event to every subscriber of a channel.
func (h *Hub) Broadcast(channelID string, event *StatusEvent) {
	h.mtx.Lock()
	conns := make([]*websocket.Conn, 0, len(h.subscribers[channelID]))
	for conn := range h.subscribers[channelID] {
		conns = append(conns, conn)
	}
	h.mtx.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := conn.WriteJSON(event)
		if err != nil {
			log.Debugf("Dropping websocket subscriber of channel %s: %s", channelID, err)
			h.remove(channelID, conn)
		}
	}
}

// Close shuts every subscriber connection down.
func (h *Hub) Close() {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	for channelID, conns := range h.subscribers {
		for conn := range conns {
			conn.Close()
		}
		delete(h.subscribers, channelID)
	}
}
