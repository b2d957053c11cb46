// Package tracking defines the hand-tracking frame types and the sources
// that deliver them. A source invokes the bridge's handler synchronously,
// once per frame, so the whole pipeline runs on the source's goroutine and
// frames are never reordered or buffered.
package tracking

import (
	"context"

	"github.com/canflyzhou/Stewart-Platform/internal/kinematics"
	"gonum.org/v1/gonum/spatial/r3"
)

// Hand is one tracked hand in a frame: palm position in tracking space
// (millimetres, y-up) and palm orientation in radians.
type Hand struct {
	PalmX float64 `json:"palm_x"`
	PalmY float64 `json:"palm_y"`
	PalmZ float64 `json:"palm_z"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
	Valid bool    `json:"valid"`
}

// Pose converts the hand into a solver pose.
func (h Hand) Pose() kinematics.Pose {
	return kinematics.Pose{
		Position: r3.Vec{X: h.PalmX, Y: h.PalmY, Z: h.PalmZ},
		Pitch:    h.Pitch,
		Yaw:      h.Yaw,
		Roll:     h.Roll,
	}
}

// Frame is one tracking frame: zero or more hands as reported by the sensor.
type Frame struct {
	Hands []Hand `json:"hands"`
}

// Rightmost returns the hand with the greatest palm X coordinate and whether
// that hand is valid. The rightmost hand is selected before validity is
// checked, so an invalid rightmost hand hides a valid hand further left.
// This matches the selection the tracking SDK performs.
func (f Frame) Rightmost() (Hand, bool) {
	if len(f.Hands) == 0 {
		return Hand{}, false
	}
	best := f.Hands[0]
	for _, h := range f.Hands[1:] {
		if h.PalmX > best.PalmX {
			best = h
		}
	}
	return best, best.Valid
}

// A Handler consumes one tracking frame. Returning a non-nil error stops the
// source and ends the session.
type Handler func(Frame) error

// Source delivers tracking frames to a handler until the context is
// cancelled or the handler fails.
type Source interface {
	Run(ctx context.Context, h Handler) error
}
