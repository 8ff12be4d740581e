package state

import (
	"fmt"

	"github.com/google/uuid"
)

// Shape ids and names are collision-resistant rather than counter-based so
// independently running clients can create shapes concurrently without a
// central sequence.

// NewShapeID returns a globally unique shape id.
func NewShapeID() string {
	return "shape-" + uuid.NewString()
}

// NewShapeName returns a human-readable name like "rectangle-1f3a9c2b",
// resolvable by external commands.
func NewShapeName(t ShapeType) string {
	return fmt.Sprintf("%s-%s", t, uuid.NewString()[:8])
}
