package net

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"LiveCanvas/internal/cursor"
	"LiveCanvas/internal/session"
	"LiveCanvas/internal/state"
)

// ErrNotConnected reports a write attempted after the connection dropped.
// It is recoverable: local optimistic state stays in place, flagged
// unconfirmed, until the next successful reconciliation.
var ErrNotConnected = errors.New("gateway: not connected")

// Gateway is the client side of the persistence/broadcast medium: writes go
// out fire-and-forget, and the hub's change notifications arrive on the
// callbacks. All callbacks run on the gateway's read goroutine.
type Gateway struct {
	conn *websocket.Conn

	writeMu sync.Mutex // gorilla allows one concurrent writer
	mu      sync.Mutex
	closed  bool

	OnShape      func(state.Shape)
	OnDelete     func(id string)
	OnCursor     func(cursor.Cursor)
	OnPresence   func(user session.User, online bool)
	OnInit       func(shapes []state.Shape, users []session.User)
	OnDisconnect func(err error)
}

// Dial connects to a hub, announces the user, and starts the read loop.
func Dial(addr string, user session.User) (*Gateway, error) {
	url := fmt.Sprintf("ws://%s/ws", addr)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial %s: %w", url, err)
	}
	g := &Gateway{conn: conn}
	if err := g.write(Message{Type: MsgJoin, User: &user}); err != nil {
		conn.Close()
		return nil, err
	}
	log.Printf("[NET] Connected to hub at %s as %s", addr, user.UserID)
	return g, nil
}

// Run consumes hub notifications until the connection drops. Call it on its
// own goroutine.
func (g *Gateway) Run() {
	for {
		var msg Message
		if err := g.conn.ReadJSON(&msg); err != nil {
			g.mu.Lock()
			closed := g.closed
			g.closed = true
			g.mu.Unlock()
			if !closed {
				log.Printf("[NET] Hub connection lost: %v", err)
				if g.OnDisconnect != nil {
					g.OnDisconnect(err)
				}
			}
			return
		}
		g.dispatch(msg)
	}
}

func (g *Gateway) dispatch(msg Message) {
	switch msg.Type {
	case MsgInit:
		if g.OnInit != nil {
			g.OnInit(msg.Shapes, msg.Users)
		}
	case MsgShape:
		if msg.Shape != nil && g.OnShape != nil {
			g.OnShape(*msg.Shape)
		}
	case MsgDelete:
		if g.OnDelete != nil {
			g.OnDelete(msg.ShapeID)
		}
	case MsgCursor:
		if msg.Cursor != nil && g.OnCursor != nil {
			g.OnCursor(*msg.Cursor)
		}
	case MsgPresence:
		if msg.User != nil && g.OnPresence != nil {
			g.OnPresence(*msg.User, msg.Online)
		}
	default:
		log.Printf("[NET] Ignoring unknown message type %q", msg.Type)
	}
}

// PutShape sends a whole-shape replace to the store.
func (g *Gateway) PutShape(s state.Shape) error {
	return g.write(Message{Type: MsgShape, Shape: &s})
}

// DeleteShape removes a shape from the store.
func (g *Gateway) DeleteShape(id string) error {
	return g.write(Message{Type: MsgDelete, ShapeID: id})
}

// PublishCursor relays the local cursor to peers.
func (g *Gateway) PublishCursor(c cursor.Cursor) error {
	return g.write(Message{Type: MsgCursor, Cursor: &c})
}

// Close shuts the connection down.
func (g *Gateway) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return g.conn.Close()
}

func (g *Gateway) write(msg Message) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrNotConnected
	}
	g.mu.Unlock()

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if err := g.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("gateway: write %s: %w", msg.Type, err)
	}
	return nil
}
