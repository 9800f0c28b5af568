// Package kinematics maps joint angles of the two-link planar arm to
// end-effector positions and back.
package kinematics

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/gwillem/armrecord/pkg/robot"
)

// Planar is a two-link planar arm. Angles are measured counter-clockwise,
// the second one relative to the first link.
type Planar struct {
	L1, L2 float64
}

// NewPlanar returns a Planar arm from a link length slice as stored in config.
func NewPlanar(links []float64) (Planar, error) {
	if len(links) != 2 {
		return Planar{}, errors.Errorf("kinematics: need 2 link lengths, got %d", len(links))
	}
	if links[0] <= 0 || links[1] <= 0 {
		return Planar{}, errors.Errorf("kinematics: link lengths must be positive, got %v", links)
	}
	return Planar{L1: links[0], L2: links[1]}, nil
}

// Forward returns the end-effector position for the given joint angles.
func (p Planar) Forward(angles robot.JointAngles) r2.Point {
	a1, a2 := angles[0], angles[1]
	return r2.Point{
		X: p.L1*math.Cos(a1) + p.L2*math.Cos(a1+a2),
		Y: p.L1*math.Sin(a1) + p.L2*math.Sin(a1+a2),
	}
}

// Elbow returns the position of the joint between the two links.
func (p Planar) Elbow(angles robot.JointAngles) r2.Point {
	return r2.Point{X: p.L1 * math.Cos(angles[0]), Y: p.L1 * math.Sin(angles[0])}
}

// Reach returns the inner and outer radius of the reachable annulus.
func (p Planar) Reach() (inner, outer float64) {
	return math.Abs(p.L1 - p.L2), p.L1 + p.L2
}

// Clamp projects pos onto the reachable workspace, keeping its direction.
func (p Planar) Clamp(pos r2.Point) r2.Point {
	inner, outer := p.Reach()
	const margin = 1e-6
	n := pos.Norm()
	switch {
	case n == 0:
		return r2.Point{X: inner + margin}
	case n > outer-margin:
		return pos.Mul((outer - margin) / n)
	case n < inner+margin:
		return pos.Mul((inner + margin) / n)
	}
	return pos
}

// Inverse returns the elbow-down joint angles that place the end effector at
// pos. Unreachable positions return an error.
func (p Planar) Inverse(pos r2.Point) (robot.JointAngles, error) {
	d2 := pos.X*pos.X + pos.Y*pos.Y
	c2 := (d2 - p.L1*p.L1 - p.L2*p.L2) / (2 * p.L1 * p.L2)
	if c2 < -1-1e-9 || c2 > 1+1e-9 {
		return nil, errors.Errorf("kinematics: position (%.4f, %.4f) out of reach", pos.X, pos.Y)
	}
	c2 = math.Max(-1, math.Min(1, c2))
	a2 := math.Acos(c2)
	a1 := math.Atan2(pos.Y, pos.X) - math.Atan2(p.L2*math.Sin(a2), p.L1+p.L2*math.Cos(a2))
	return robot.JointAngles{a1, a2}, nil
}
