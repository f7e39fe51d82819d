package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// Update is one priced contract pushed to subscribers. Contract is a free-
// form key like "AAPL-2026-09-18-C-190" chosen by the publisher; clients
// subscribe by that key.
type Update struct {
	Contract string      `json:"contract"`
	Payload  interface{} `json:"payload"`
}

// Message is the envelope for all hub-to-client traffic.
type Message struct {
	Type     string      `json:"type"`
	Contract string      `json:"contract,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	ID       string      `json:"id,omitempty"`
}

// SubscriptionMessage is a client subscribe/unsubscribe request.
type SubscriptionMessage struct {
	Type      string   `json:"type"`
	Contracts []string `json:"contracts"`
	ID        string   `json:"id,omitempty"`
}

// Hub fans priced-contract updates out to websocket subscribers.
type Hub struct {
	clients       map[*Client]bool
	updates       chan Update
	register      chan *Client
	unregister    chan *Client
	subscriptions map[string]map[*Client]bool // contract -> clients
	log           *logger.Logger
	mu            sync.RWMutex
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	id            string
	subscriptions map[string]bool
	mu            sync.Mutex
}

var clientSeq atomic.Uint64

// NewHub creates a websocket hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		updates:       make(chan Update, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(map[string]map[*Client]bool),
		log:           logger.GetLogger("stream.hub"),
	}
}

// Run drives registration and fan-out until the context is canceled
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting stream hub")

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Stream hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Infof("Client %s connected", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
			}
			h.mu.Unlock()
			if ok {
				close(client.send)
				h.removeSubscriptions(client)
				h.log.Infof("Client %s disconnected", client.id)
			}

		case update := <-h.updates:
			h.dispatch(update)
		}
	}
}

// Publish queues one priced-contract update for fan-out. Non-blocking: when
// the hub is saturated the update is dropped, pricing never stalls on slow
// consumers.
func (h *Hub) Publish(update Update) {
	select {
	case h.updates <- update:
	default:
		h.log.Warnf("Update queue full, dropping update for %s", update.Contract)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) dispatch(update Update) {
	payload, err := json.Marshal(Message{
		Type:     "pricing_update",
		Contract: update.Contract,
		Data:     update.Payload,
	})
	if err != nil {
		h.log.Errorf("Failed to marshal update for %s: %v", update.Contract, err)
		return
	}

	h.mu.RLock()
	subscribers := h.subscriptions[update.Contract]
	targets := make([]*Client, 0, len(subscribers))
	for client := range subscribers {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- payload:
		default:
			// Slow client; its pump will close the connection
		}
	}
}

func (h *Hub) removeSubscriptions(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for contract, subscribers := range h.subscriptions {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.subscriptions, contract)
		}
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            fmt.Sprintf("client-%d", clientSeq.Add(1)),
		subscriptions: make(map[string]bool),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Errorf("WebSocket error: %v", err)
			}
			break
		}
		c.handleMessage(data)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg SubscriptionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendMessage(Message{Type: "error", Error: "Invalid message format"})
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg)
	case "unsubscribe":
		c.unsubscribe(msg)
	case "ping":
		c.sendMessage(Message{Type: "pong", ID: msg.ID})
	default:
		c.sendMessage(Message{Type: "error", Error: "Unknown message type", ID: msg.ID})
	}
}

func (c *Client) subscribe(msg SubscriptionMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, contract := range msg.Contracts {
		c.subscriptions[contract] = true

		c.hub.mu.Lock()
		if c.hub.subscriptions[contract] == nil {
			c.hub.subscriptions[contract] = make(map[*Client]bool)
		}
		c.hub.subscriptions[contract][c] = true
		c.hub.mu.Unlock()
	}

	c.sendMessage(Message{Type: "subscribed", Data: msg.Contracts, ID: msg.ID})
}

func (c *Client) unsubscribe(msg SubscriptionMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, contract := range msg.Contracts {
		delete(c.subscriptions, contract)

		c.hub.mu.Lock()
		if subscribers := c.hub.subscriptions[contract]; subscribers != nil {
			delete(subscribers, c)
			if len(subscribers) == 0 {
				delete(c.hub.subscriptions, contract)
			}
		}
		c.hub.mu.Unlock()
	}

	c.sendMessage(Message{Type: "unsubscribed", Data: msg.Contracts, ID: msg.ID})
}

func (c *Client) sendMessage(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Errorf("Failed to marshal message: %v", err)
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
