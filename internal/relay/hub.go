package relay

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connection is one websocket session attached to the hub. Outbound frames
// go through a buffered channel drained by a single writer goroutine; a full
// buffer drops the frame rather than stalling the hub.
type connection struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan []byte
}

// Hub fans highlight events out to every connected session except the
// sender. It performs no validation, storage or ordering. With a Bridge
// attached, events also cross to other relay instances over Redis pub/sub.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]*connection
	bridge *Bridge // may be nil
}

func NewHub(bridge *Bridge) *Hub {
	return &Hub{
		conns:  make(map[string]*connection),
		bridge: bridge,
	}
}

// HandleWS upgrades the request and runs the connection until it closes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay: upgrade failed: %v", err)
		return
	}

	conn := &connection{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 32),
	}
	h.register(conn)
	defer h.unregister(conn)

	go conn.writeLoop()
	h.readLoop(conn)
}

func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()
	log.Printf("relay: connection %s opened", conn.id)
}

func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	if _, ok := h.conns[conn.id]; ok {
		delete(h.conns, conn.id)
		close(conn.send)
	}
	h.mu.Unlock()
	_ = conn.ws.Close()
	log.Printf("relay: connection %s closed", conn.id)
}

func (h *Hub) readLoop(conn *connection) {
	for {
		_, payload, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		ev, err := parseEvent(payload)
		if err != nil {
			log.Printf("relay: dropping unparseable frame from %s: %v", conn.id, err)
			continue
		}
		switch ev.Type {
		case EventAuth:
			conn.userID = ev.UserID
			log.Printf("relay: connection %s authenticated as %s", conn.id, ev.UserID)
		case EventHighlight:
			h.fanOut(payload, conn.id)
			if h.bridge != nil {
				h.bridge.Publish(payload)
			}
		default:
			// Unknown event types are forwarded nowhere and dropped.
		}
	}
}

// fanOut forwards the raw payload to every connection except the sender.
func (h *Hub) fanOut(payload []byte, senderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.conns {
		if id == senderID {
			continue
		}
		select {
		case conn.send <- payload:
		default:
			log.Printf("relay: connection %s backlogged, dropping frame", id)
		}
	}
}

// deliverRemote injects a payload that arrived from another relay instance
// via the bridge.
func (h *Hub) deliverRemote(payload []byte) {
	h.fanOut(payload, "")
}

func (c *connection) writeLoop() {
	for payload := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
