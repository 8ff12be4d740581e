package net

import (
	"LiveCanvas/internal/cursor"
	"LiveCanvas/internal/session"
	"LiveCanvas/internal/state"
)

// Message is the wire envelope between clients and the hub. Type selects
// which optional fields are populated.
type Message struct {
	Type string `json:"type"`

	// "join": sent once by a client after connecting.
	User *session.User `json:"user,omitempty"`

	// "init": full document replay sent to a joiner.
	Shapes []state.Shape  `json:"shapes,omitempty"`
	Users  []session.User `json:"users,omitempty"`

	// "shape": full-document replace of one shape (last write wins).
	Shape *state.Shape `json:"shape,omitempty"`

	// "delete": removal by id.
	ShapeID string `json:"shapeId,omitempty"`

	// "cursor": ephemeral pointer broadcast, relayed, never stored.
	Cursor *cursor.Cursor `json:"cursor,omitempty"`

	// "presence": a user came or went.
	Online bool `json:"online,omitempty"`
}

const (
	MsgJoin     = "join"
	MsgInit     = "init"
	MsgShape    = "shape"
	MsgDelete   = "delete"
	MsgCursor   = "cursor"
	MsgPresence = "presence"
)
