package canvas

import (
	"encoding/json"
	"errors"
)

var ErrInvalidSnapshot = errors.New("invalid canvas snapshot")

type Point struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Pressure *float64 `json:"pressure,omitempty"`
}

// Stroke is one drawing primitive. Points grow by delta while the stroke is
// being drawn.
type Stroke struct {
	ID      string   `json:"id"                validate:"required,max=128"`
	Tool    string   `json:"tool"              validate:"max=32"`
	Points  []Point  `json:"points"`
	Color   string   `json:"color,omitempty"   validate:"max=64"`
	Size    float64  `json:"size,omitempty"`
	Fill    string   `json:"fill,omitempty"    validate:"max=64"`
	Opacity *float64 `json:"opacity,omitempty"`
	Text    string   `json:"text,omitempty"`
	UserID  string   `json:"userId,omitempty"`
}

// Clone returns a copy that shares no slices with s.
func (s Stroke) Clone() Stroke {
	out := s
	out.Points = append([]Point(nil), s.Points...)
	return out
}

// Snapshot is the durable canvas state kept on the room aggregate. Entries
// are opaque to the server.
type Snapshot struct {
	Strokes []json.RawMessage `json:"strokes"`
	Objects []json.RawMessage `json:"objects"`
}

func Empty() Snapshot {
	return Snapshot{Strokes: []json.RawMessage{}, Objects: []json.RawMessage{}}
}

// Parse decodes a stored snapshot; an empty document is the empty canvas.
func Parse(raw []byte) (Snapshot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Empty(), nil
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, errors.Join(ErrInvalidSnapshot, err)
	}
	s.normalize()
	return s, nil
}

func (s *Snapshot) normalize() {
	if s.Strokes == nil {
		s.Strokes = []json.RawMessage{}
	}
	if s.Objects == nil {
		s.Objects = []json.RawMessage{}
	}
}

func (s Snapshot) Marshal() ([]byte, error) {
	s.normalize()
	return json.Marshal(s)
}
