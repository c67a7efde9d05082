package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"jobmarket/pkg/logger"
)

const TypeFeed = "feed"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Envelope is the frame pushed to every connected UI client.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Client is one open UI connection.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{ID: id, Conn: conn, Send: make(chan []byte, sendBuffer)}
}

// registration carries a client and the frame it must see before any
// broadcast.
type registration struct {
	client   *Client
	greeting func() ([]byte, error)
}

// Hub fans feed updates out to every open connection. Slow clients whose
// buffer is full are dropped rather than blocking the poller.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan registration
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan registration),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop until ctx is done, then closes every client.
func (h *Hub) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case reg := <-h.register:
				client := reg.client
				if reg.greeting != nil {
					if message, err := reg.greeting(); err != nil {
						logger.Error("Encoding greeting for %s failed: %v", client.ID, err)
					} else {
						client.Send <- message
					}
				}
				h.mutex.Lock()
				h.clients[client] = struct{}{}
				h.mutex.Unlock()
				logger.Debug("Feed client connected: %s", client.ID)

			case client := <-h.unregister:
				h.remove(client)
				logger.Debug("Feed client disconnected: %s", client.ID)

			case message := <-h.broadcast:
				h.mutex.RLock()
				var slow []*Client
				for client := range h.clients {
					select {
					case client.Send <- message:
					default:
						slow = append(slow, client)
					}
				}
				h.mutex.RUnlock()
				for _, client := range slow {
					logger.Warn("Dropping slow feed client %s", client.ID)
					h.remove(client)
				}

			case <-ctx.Done():
				close(h.done)
				h.mutex.Lock()
				for client := range h.clients {
					delete(h.clients, client)
					close(client.Send)
				}
				h.mutex.Unlock()
				return
			}
		}
	}()
}

// Attach registers a client. greeting, when set, is called by the hub loop
// and its frame queued ahead of every broadcast the client receives. Attach
// returns false once the hub has stopped.
func (h *Hub) Attach(client *Client, greeting func() ([]byte, error)) bool {
	select {
	case h.register <- registration{client: client, greeting: greeting}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// Clients reports how many connections are open.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Broadcast queues an envelope for every client. It never blocks; when the
// queue is full the update is skipped since a newer one will follow.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	message, err := Encode(messageType, data)
	if err != nil {
		logger.Error("Encoding %s frame failed: %v", messageType, err)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		logger.Warn("Feed broadcast queue full, skipping %s frame", messageType)
	}
}

func Encode(messageType string, data interface{}) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadPump keeps the read deadline fresh and discards whatever the UI
// sends. It returns when the connection drops.
func (c *Client) ReadPump(h *Hub) {
	defer func() {
		h.Detach(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Feed client %s: %v", c.ID, err)
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("Writing to feed client %s failed: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
