// Package kinematics converts tracked hand poses into actuator extension
// lengths for a six-actuator Stewart-style motion platform.
package kinematics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"
)

// NumActuators is the number of linear actuators on the platform.
const NumActuators = 6

// Geometry describes the physically calibrated platform layout. It is
// immutable once constructed; the solver never mutates it, so one value can
// serve the whole process.
//
// Base and Effector are index-aligned: actuator i runs from Base[i] on the
// stationary frame to Effector[i] on the moving plate. Effector points are
// expressed in the plate's local frame; Base points in platform world space.
// All distances are millimetres.
type Geometry struct {
	Base           [NumActuators]r3.Vec `json:"base"`
	Effector       [NumActuators]r3.Vec `json:"effector"`
	HomeHeight     float64              `json:"home_height"`
	MinActuatorLen float64              `json:"min_actuator_len"`
}

// DefaultGeometry returns the layout of the reference platform.
func DefaultGeometry() Geometry {
	return Geometry{
		Base: [NumActuators]r3.Vec{
			{X: -246.34, Y: 86.42},
			{X: -198.16, Y: 170.38},
			{X: 198.16, Y: 170.38},
			{X: 246.34, Y: 86.42},
			{X: 48.48, Y: -256.80},
			{X: -48.48, Y: -256.80},
		},
		Effector: [NumActuators]r3.Vec{
			{X: -225.60, Y: -73.26},
			{X: -49.35, Y: 232.01},
			{X: 49.35, Y: 232.01},
			{X: 225.60, Y: -73.26},
			{X: 176.25, Y: -158.75},
			{X: -176.25, Y: -158.75},
		},
		HomeHeight:     319.0,
		MinActuatorLen: 335.0,
	}
}

// Validate checks that the geometry describes a usable platform.
func (g Geometry) Validate() error {
	if g.MinActuatorLen <= 0 {
		return fmt.Errorf("min_actuator_len must be positive, got %f", g.MinActuatorLen)
	}
	if g.HomeHeight < 0 {
		return fmt.Errorf("home_height must be non-negative, got %f", g.HomeHeight)
	}
	for i := 0; i < NumActuators; i++ {
		if g.Base[i] == (r3.Vec{}) {
			return fmt.Errorf("base point %d is unset", i)
		}
		if g.Effector[i] == (r3.Vec{}) {
			return fmt.Errorf("effector point %d is unset", i)
		}
	}
	return nil
}

// LoadGeometry loads a Geometry from a JSON file. Fields omitted from the
// file retain the default platform values, so partial overrides are safe.
func LoadGeometry(path string) (Geometry, error) {
	g := DefaultGeometry()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return g, fmt.Errorf("geometry file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return g, fmt.Errorf("failed to stat geometry file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return g, fmt.Errorf("geometry file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return g, fmt.Errorf("failed to read geometry file: %w", err)
	}

	if err := json.Unmarshal(data, &g); err != nil {
		return g, fmt.Errorf("failed to parse geometry JSON: %w", err)
	}

	if err := g.Validate(); err != nil {
		return g, fmt.Errorf("invalid geometry: %w", err)
	}

	return g, nil
}
