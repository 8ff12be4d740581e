// Package session supplies the local user's identity for the lifetime of a
// client session. Authentication itself is external; this package only
// shapes what it hands over.
package session

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// User identifies a participant. UserID is stable for the session; Color is
// derived deterministically from it so every client renders the same user
// in the same color.
type User struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Online      bool   `json:"online"`
}

// palette holds the cursor/lock-indicator colors, picked for contrast on a
// white canvas.
var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#42d4f4", "#f032e6", "#9a6324",
	"#800000", "#469990", "#808000", "#000075",
}

// NewUser creates a session-scoped identity with a fresh stable id.
func NewUser(displayName string) User {
	id := "user-" + uuid.NewString()[:8]
	return User{
		UserID:      id,
		DisplayName: displayName,
		Color:       ColorFor(id),
		Online:      true,
	}
}

// ColorFor maps a user id onto the palette deterministically.
func ColorFor(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return palette[h.Sum32()%uint32(len(palette))]
}
