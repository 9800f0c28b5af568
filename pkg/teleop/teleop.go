// Package teleop turns a hand-moved input arm into position-delta actions.
package teleop

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r2"

	"github.com/gwillem/armrecord/pkg/env"
	"github.com/gwillem/armrecord/pkg/kinematics"
	"github.com/gwillem/armrecord/pkg/robot"
	"github.com/gwillem/armrecord/pkg/trajectory"
)

// ActionSize is the dimension of a teleoperation action.
const ActionSize = 2

// Reader reads canonical joint angles from the input device.
type Reader interface {
	ReadAngles(ctx context.Context) (robot.JointAngles, error)
}

// State is a snapshot of the last computed action.
type State struct {
	Angles    robot.JointAngles
	Position  r2.Point
	Target    r2.Point
	HasTarget bool
	Action    []float32
	Timestamp time.Time
	Error     error
}

// Config holds configuration for the controller.
type Config struct {
	Reader     Reader
	Kinematics kinematics.Planar
	Target     *env.Target
	// Deadband zeroes actions shorter than this distance. Zero disables it.
	Deadband float64
}

// Controller computes actions as the difference between the input device's
// end-effector position and the shared target. It keeps no state between
// calls.
type Controller struct {
	reader   Reader
	kin      kinematics.Planar
	target   *env.Target
	deadband float64
	stateCh  chan State
}

// NewController creates a new teleoperation controller.
func NewController(cfg Config) *Controller {
	if cfg.Target == nil {
		cfg.Target = &env.Target{}
	}
	return &Controller{
		reader:   cfg.Reader,
		kin:      cfg.Kinematics,
		target:   cfg.Target,
		deadband: cfg.Deadband,
		stateCh:  make(chan State, 1),
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// ReadPosition samples the input device and returns its end-effector
// position along with the joint angles it was derived from.
func (c *Controller) ReadPosition(ctx context.Context) (r2.Point, robot.JointAngles, error) {
	angles, err := c.reader.ReadAngles(ctx)
	if err != nil {
		return r2.Point{}, nil, err
	}
	return c.kin.Forward(angles), angles, nil
}

// ComputeAction returns current position minus target, or a zero action if
// no target is set.
func (c *Controller) ComputeAction(ctx context.Context) (trajectory.Tensor, robot.JointAngles, error) {
	pos, angles, err := c.ReadPosition(ctx)
	if err != nil {
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return trajectory.Tensor{}, nil, err
	}

	target, ok := c.target.Load()
	diff := r2.Point{}
	if ok {
		diff = pos.Sub(target)
	}
	if c.deadband > 0 && math.Hypot(diff.X, diff.Y) < c.deadband {
		diff = r2.Point{}
	}
	action := trajectory.Vector(float32(diff.X), float32(diff.Y))

	c.sendState(State{
		Angles:    angles,
		Position:  pos,
		Target:    target,
		HasTarget: ok,
		Action:    action.Float,
		Timestamp: time.Now(),
	})
	return action, angles, nil
}

// InitialPosition returns the input device's position, used as reset pose.
func (c *Controller) InitialPosition(ctx context.Context) (r2.Point, error) {
	pos, _, err := c.ReadPosition(ctx)
	return pos, err
}

// Act ignores the time step; teleoperation only follows the input device.
func (c *Controller) Act(ctx context.Context, _ trajectory.TimeStep) (trajectory.Tensor, error) {
	action, _, err := c.ComputeAction(ctx)
	return action, err
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}
