package sim

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub maintains the set of live notification subscribers and routes
// envelopes to them. Broadcast envelopes go to every client; targeted
// envelopes only to connections authenticated as the target voter.
type Hub struct {
	log        logger.Logger
	clients    map[*client]bool
	send       chan targetedEnvelope
	register   chan *client
	unregister chan *client
	mutex      sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

// targetedEnvelope pairs an envelope with an optional recipient. An empty
// voterID means broadcast.
type targetedEnvelope struct {
	voterID  string
	envelope models.Envelope
}

// client is a middleman between a websocket connection and the hub
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	voterID string
	out     chan models.Envelope
}

// NewHub creates a notification hub
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		send:       make(chan targetedEnvelope),
		register:   make(chan *client),
		unregister: make(chan *client),
		stop:       make(chan struct{}),
	}
}

// Start begins the hub's main loop in a goroutine
func (h *Hub) Start() {
	go h.run()
}

// Stop shuts the hub down, disconnecting all clients
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("live client connected", "voterId", c.voterID, "total_clients", total)

		case c := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.out)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("live client disconnected", "total_clients", total)

		case msg := <-h.send:
			h.mutex.RLock()
			for c := range h.clients {
				if msg.voterID != "" && c.voterID != msg.voterID {
					continue
				}
				select {
				case c.out <- msg.envelope:
				default:
					// Client can't keep up, drop it
					go func(c *client) {
						select {
						case h.unregister <- c:
						case <-h.stop:
						}
					}(c)
				}
			}
			h.mutex.RUnlock()

		case <-h.stop:
			h.mutex.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.out)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Broadcast sends an event to every connected client
func (h *Hub) Broadcast(event models.NotificationEvent) {
	h.dispatch("", models.Envelope{Category: models.CategoryBroadcast, Event: event})
}

// SendTo sends an event to the given voter's connections only
func (h *Hub) SendTo(voterID string, event models.NotificationEvent) {
	h.dispatch(voterID, models.Envelope{Category: models.CategoryTargeted, Event: event})
}

func (h *Hub) dispatch(voterID string, envelope models.Envelope) {
	select {
	case h.send <- targetedEnvelope{voterID: voterID, envelope: envelope}:
	case <-h.stop:
	}
}

// ServeWs upgrades the request to a websocket subscription. The voter
// identity comes from the authenticated request context.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	voterID := voterFrom(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		voterID: voterID,
		out:     make(chan models.Envelope, 16),
	}
	select {
	case h.register <- c:
	case <-h.stop:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// writePump forwards envelopes to the connection until the hub closes it
func (c *client) writePump() {
	defer c.conn.Close()
	for envelope := range c.out {
		if err := c.conn.WriteJSON(envelope); err != nil {
			return
		}
	}
}

// readPump drains the connection so pings are answered, unregistering on
// error
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
