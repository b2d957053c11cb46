package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is one frame of tracked hand state: the palm position in tracking
// space (millimetres) and the palm orientation as intrinsic Euler angles in
// radians.
type Pose struct {
	Position r3.Vec  `json:"position"`
	Pitch    float64 `json:"pitch"`
	Yaw      float64 `json:"yaw"`
	Roll     float64 `json:"roll"`
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose{x=%+07.2f y=%+07.2f z=%+07.2f p=%+.3f y=%+.3f r=%+.3f}",
		p.Position.X, p.Position.Y, p.Position.Z, p.Pitch, p.Yaw, p.Roll)
}

// Transform is a 4x4 affine transform in row-major order.
type Transform [4][4]float64

// RotationTransform builds the affine rotation for the given intrinsic Euler
// angles. The last row and column stay (0,0,0,1) so the matrix composes with
// homogeneous points.
func RotationTransform(pitch, yaw, roll float64) Transform {
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cr, sr := math.Cos(roll), math.Sin(roll)

	return Transform{
		{cy * cp, cp * sy, -sp, 0},
		{cy*sp*sr - sy*cr, cy*cr + sr*sy*sp, cp * sr, 0},
		{cy*sp*cr + sy*sr, -cy*sr + cr*sy*sp, cp * cr, 0},
		{0, 0, 0, 1},
	}
}

// Apply multiplies the transform with the homogeneous column vector (v, 1)
// and returns the euclidean part of the result.
func (t Transform) Apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0][0]*v.X + t[0][1]*v.Y + t[0][2]*v.Z + t[0][3],
		Y: t[1][0]*v.X + t[1][1]*v.Y + t[1][2]*v.Z + t[1][3],
		Z: t[2][0]*v.X + t[2][1]*v.Y + t[2][2]*v.Z + t[2][3],
	}
}

// Solver computes actuator extension lengths for hand poses against a fixed
// platform geometry. It is stateless and safe for concurrent use.
type Solver struct {
	geom Geometry
}

// NewSolver validates the geometry and returns a solver bound to it.
func NewSolver(g Geometry) (*Solver, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Solver{geom: g}, nil
}

// Geometry returns the platform geometry the solver was built with.
func (s *Solver) Geometry() Geometry {
	return s.geom
}

// Lengths computes the six actuator extension lengths that reproduce the
// given hand pose on the platform.
//
// The tracking frame is y-up while the platform frame is z-up, so the palm
// position maps to the translation offset (x, -z, y+home). Each effector
// point is rotated, translated by that offset, and the extension is the
// distance to its base anchor beyond the retracted actuator length.
//
// Lengths are passed through uninterpreted: a pose outside the platform's
// physical envelope produces out-of-range values, not an error.
func (s *Solver) Lengths(p Pose) [NumActuators]float64 {
	rot := RotationTransform(p.Pitch, p.Yaw, p.Roll)
	offset := r3.Vec{
		X: p.Position.X,
		Y: -p.Position.Z,
		Z: p.Position.Y + s.geom.HomeHeight,
	}

	var lengths [NumActuators]float64
	for i := 0; i < NumActuators; i++ {
		world := r3.Add(rot.Apply(s.geom.Effector[i]), offset)
		lengths[i] = r3.Norm(r3.Sub(world, s.geom.Base[i])) - s.geom.MinActuatorLen
	}
	return lengths
}
