// Package stream pushes step-response samples to browsers over websocket
// as they are captured
package stream

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"steplab/control"
	"steplab/protocol"
)

// Message is one JSON frame sent to clients. Samples relayed from a board
// carry Axis 0; the run's axis arrives with its "end" message.
type Message struct {
	Type      string  `json:"type"` // "sample" or "end"
	Axis      int     `json:"axis"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Position  float64 `json:"position"`
}

// Hub fans messages out to every connected websocket client
type Hub struct {
	nextID   int64 // atomic; first for 64-bit alignment
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[int64]*client
}

// NewHub creates a hub with no clients
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[int64]*client),
	}
}

// ServeHTTP upgrades the request and streams to it until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: upgrade error: %v", err)
		return
	}
	c := &client{
		id:     atomic.AddInt64(&h.nextID, 1),
		conn:   conn,
		sendCh: make(chan Message, 256),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.Printf("stream: client %d connected", c.id)

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	log.Printf("stream: client %d disconnected", c.id)
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. Slow clients drop messages.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.send(msg)
	}
}

// Sample broadcasts one drained sample
func (h *Hub) Sample(axis int, s control.Sample) error {
	h.Broadcast(Message{Type: "sample", Axis: axis, ElapsedMS: float64(s.ElapsedMS), Position: s.Position})
	return nil
}

// EndOfRun broadcasts the end of an axis run
func (h *Hub) EndOfRun(axis int) error {
	h.Broadcast(Message{Type: "end", Axis: axis})
	return nil
}

// Relay broadcasts one raw line read from a board as it arrives. The board
// names the axis only in the end marker that closes a run, so samples go
// out with Axis 0. Other lines are ignored.
func (h *Hub) Relay(line string) {
	if axis, ok := protocol.ParseEndMarker(line); ok {
		h.EndOfRun(axis)
		return
	}
	p, err := protocol.ParseSample(line)
	if err != nil {
		return
	}
	h.Broadcast(Message{Type: "sample", ElapsedMS: p.TimeMS, Position: p.Position})
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.close()
	}
}

type client struct {
	id     int64
	conn   *websocket.Conn
	sendCh chan Message
	done   chan struct{}
	once   sync.Once
}

func (c *client) send(msg Message) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		log.Printf("stream: dropping message to client %d (channel full)", c.id)
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards client input and notices disconnects
func (c *client) readPump() {
	defer c.close()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("stream: read error: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
