// Package command defines the mutation commands consumed from the external
// natural-language translator. A command is validated as a whole before any
// cache mutation; malformed input never produces a partial apply.
package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"LiveCanvas/internal/state"
)

// Action discriminates the command union.
type Action string

const (
	ActionCreateShape Action = "createShape"
	ActionUpdateShape Action = "updateShape"
	ActionDeleteShape Action = "deleteShape"
)

// Selector targets shapes by type when no explicit name is given.
type Selector struct {
	Type state.ShapeType `json:"type"`
}

// Command is the wire form emitted by the translator. Target resolution for
// update/delete runs in priority order: ShapeName, then Selector, then
// UseSelected.
type Command struct {
	Action      Action                 `json:"action"`
	Shape       *state.Shape           `json:"shape,omitempty"`
	ShapeName   string                 `json:"shapeName,omitempty"`
	Selector    *Selector              `json:"selector,omitempty"`
	UseSelected bool                   `json:"useSelected,omitempty"`
	Updates     map[string]interface{} `json:"updates,omitempty"`
}

var (
	ErrUnknownAction = errors.New("unknown command action")
	ErrMissingShape  = errors.New("createShape requires a shape")
	ErrMissingTarget = errors.New("command has no target")
	ErrNoUpdates     = errors.New("updateShape requires updates")
)

// Parse decodes and validates a command. The error covers both malformed
// JSON and schema violations.
func Parse(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("malformed command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Validate checks the command's schema without touching any state.
func (c Command) Validate() error {
	switch c.Action {
	case ActionCreateShape:
		if c.Shape == nil {
			return ErrMissingShape
		}
		if !c.Shape.Type.Valid() {
			return fmt.Errorf("unknown shape type %q", c.Shape.Type)
		}
		if c.Shape.Opacity < 0 || c.Shape.Opacity > 1 {
			return fmt.Errorf("shape opacity %v outside [0,1]", c.Shape.Opacity)
		}
		return nil
	case ActionUpdateShape:
		if len(c.Updates) == 0 {
			return ErrNoUpdates
		}
		return c.validateTarget()
	case ActionDeleteShape:
		return c.validateTarget()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
}

func (c Command) validateTarget() error {
	if c.ShapeName != "" {
		return nil
	}
	if c.Selector != nil {
		if !c.Selector.Type.Valid() {
			return fmt.Errorf("unknown selector type %q", c.Selector.Type)
		}
		return nil
	}
	if c.UseSelected {
		return nil
	}
	return ErrMissingTarget
}

// ResolveTargets finds the shapes an update/delete operates on. Resolution
// order: explicit name, then selector by type, then the local selection.
// An empty result means the command is dropped by the caller.
func (c Command) ResolveTargets(cache *state.ShapeCache, selectedIDs []string) []state.Shape {
	if c.ShapeName != "" {
		if s, ok := cache.GetByName(c.ShapeName); ok {
			return []state.Shape{s}
		}
		return nil
	}
	if c.Selector != nil {
		var out []state.Shape
		for _, s := range cache.All() {
			if s.Type == c.Selector.Type {
				out = append(out, s)
			}
		}
		return out
	}
	if c.UseSelected {
		var out []state.Shape
		for _, id := range selectedIDs {
			if s, ok := cache.Get(id); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ApplyUpdates returns a copy of s with the updates applied, or an error if
// any key or value is invalid. Nothing is applied on error: the whole
// update stands or falls together.
func ApplyUpdates(s state.Shape, updates map[string]interface{}) (state.Shape, error) {
	for key, raw := range updates {
		switch key {
		case "x", "y", "width", "height", "radius", "x2", "y2",
			"strokeWidth", "opacity", "rotation", "fontSize", "zIndex":
			v, ok := toFloat(raw)
			if !ok {
				return state.Shape{}, fmt.Errorf("update %q: want a number, got %T", key, raw)
			}
			if key == "opacity" && (v < 0 || v > 1) {
				return state.Shape{}, fmt.Errorf("update opacity: %v outside [0,1]", v)
			}
			switch key {
			case "x":
				s.X = v
			case "y":
				s.Y = v
			case "width":
				s.Width = v
			case "height":
				s.Height = v
			case "radius":
				s.Radius = v
			case "x2":
				s.X2 = v
			case "y2":
				s.Y2 = v
			case "strokeWidth":
				s.StrokeWidth = v
			case "opacity":
				s.Opacity = v
			case "rotation":
				s.Rotation = v
			case "fontSize":
				s.FontSize = v
			case "zIndex":
				s.ZIndex = int(v)
			}
		case "fill", "stroke", "text", "name":
			v, ok := raw.(string)
			if !ok {
				return state.Shape{}, fmt.Errorf("update %q: want a string, got %T", key, raw)
			}
			switch key {
			case "fill":
				s.Fill = v
			case "stroke":
				s.Stroke = v
			case "text":
				s.Text = v
			case "name":
				s.Name = v
			}
		default:
			return state.Shape{}, fmt.Errorf("update %q: unknown field", key)
		}
	}
	return s.Normalized(), nil
}

func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
