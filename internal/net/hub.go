package net

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"LiveCanvas/internal/session"
	"LiveCanvas/internal/state"
)

// Hub is the shared store and broadcast medium. It holds the document as a
// map of shapes with last-write-wins whole-shape replace semantics, relays
// every accepted write to all other clients, and replays the full document
// to joiners. It makes no attempt to interpret lock fields; clients do.
type Hub struct {
	mu      sync.RWMutex
	shapes  map[string]state.Shape
	clients map[*hubClient]bool

	upgrader websocket.Upgrader
}

type hubClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	user    session.User
}

func (c *hubClient) send(msg Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[HUB] Error sending to %s: %v", c.conn.RemoteAddr(), err)
	}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		shapes:  make(map[string]state.Shape),
		clients: make(map[*hubClient]bool),
		upgrader: websocket.Upgrader{
			// The hub serves trusted LAN peers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router returns the hub's HTTP surface: the websocket endpoint plus a
// health check.
func (h *Hub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))
	r.Get("/ws", h.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HUB] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The first message must announce who is joining.
	var join Message
	if err := conn.ReadJSON(&join); err != nil || join.Type != MsgJoin || join.User == nil {
		log.Printf("[HUB] Client %s did not join properly", conn.RemoteAddr())
		return
	}
	client := &hubClient{conn: conn, user: *join.User}
	client.user.Online = true

	h.register(client)
	defer h.unregister(client)

	client.send(Message{Type: MsgInit, Shapes: h.Shapes(), Users: h.Users()})
	h.broadcast(Message{Type: MsgPresence, User: &client.user, Online: true}, client)
	log.Printf("[HUB] %s (%s) joined", client.user.DisplayName, client.user.UserID)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("[HUB] %s disconnected: %v", client.user.UserID, err)
			return
		}
		h.apply(client, msg)
	}
}

func (h *Hub) apply(from *hubClient, msg Message) {
	switch msg.Type {
	case MsgShape:
		if msg.Shape == nil {
			return
		}
		h.mu.Lock()
		h.shapes[msg.Shape.ID] = *msg.Shape
		h.relayLocked(msg, from)
		h.mu.Unlock()
	case MsgDelete:
		h.mu.Lock()
		if _, existed := h.shapes[msg.ShapeID]; existed {
			delete(h.shapes, msg.ShapeID)
			h.relayLocked(msg, from)
		}
		h.mu.Unlock()
	case MsgCursor:
		// Relay only; cursors are never stored and carry no ordering.
		h.broadcast(msg, from)
	default:
		log.Printf("[HUB] Ignoring %q from %s", msg.Type, from.user.UserID)
	}
}

// relayLocked sends to every client but the sender. Document writes relay
// under h.mu so peers observe each shape's updates in the order the store
// applied them.
func (h *Hub) relayLocked(msg Message, exclude *hubClient) {
	for c := range h.clients {
		if c != exclude {
			c.send(msg)
		}
	}
}

func (h *Hub) register(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.user.Online = false
	h.broadcast(Message{Type: MsgPresence, User: &c.user, Online: false}, c)
}

func (h *Hub) broadcast(msg Message, exclude *hubClient) {
	h.mu.RLock()
	targets := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(msg)
	}
}

// Shapes returns a snapshot of the document ordered by ZIndex.
func (h *Hub) Shapes() []state.Shape {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]state.Shape, 0, len(h.shapes))
	for _, s := range h.shapes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// Users returns everyone currently connected.
func (h *Hub) Users() []session.User {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]session.User, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c.user)
	}
	return out
}

// SaveTo persists the document as JSON.
func (h *Hub) SaveTo(path string) error {
	data, err := json.MarshalIndent(h.Shapes(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Printf("[HUB] Saved %d shapes to %s", len(h.Shapes()), path)
	return nil
}

// LoadFrom replaces the document with a previously saved JSON file.
func (h *Hub) LoadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var shapes []state.Shape
	if err := json.Unmarshal(data, &shapes); err != nil {
		return err
	}
	h.mu.Lock()
	h.shapes = make(map[string]state.Shape, len(shapes))
	for _, s := range shapes {
		// Stored claims are meaningless after a restart.
		s.LockedBy = ""
		s.LockedAt = time.Time{}
		h.shapes[s.ID] = s
	}
	h.mu.Unlock()
	log.Printf("[HUB] Loaded %d shapes from %s", len(shapes), path)
	return nil
}
