package env

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gwillem/armrecord/pkg/robot"
	"github.com/gwillem/armrecord/pkg/trajectory"
)

// Observation names understood by Reach.
const (
	ObsPosition = "position"
	ObsTarget   = "target"
	ObsAngles   = "angles"
	ObsImage    = "image"
)

var errNotReset = errors.New("step before reset")

// Reach drives the arm's end effector toward target+action and reports the
// remaining distance as negative reward.
type Reach struct {
	opts   Options
	target *Target
	log    *zap.SugaredLogger

	obs    []string
	spec   trajectory.TimeStepSpec
	action trajectory.ArraySpec

	targetLimiter  *rate.Limiter
	commandLimiter *rate.Limiter

	angles  robot.JointAngles
	goal    r2.Point
	index   int
	reset   bool // ResetAsync done, Reset pending
	stepped bool // StepAsync done, Step pending
	started bool
}

// NewReach returns the reach-v0 environment.
func NewReach(opts Options) (*Reach, error) {
	if opts.Kinematics.L1 <= 0 || opts.Kinematics.L2 <= 0 {
		return nil, errors.Errorf("reach: invalid link lengths %v/%v", opts.Kinematics.L1, opts.Kinematics.L2)
	}
	if opts.Target == nil {
		opts.Target = &Target{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	var obs []string
	for _, name := range opts.Observations {
		if !slices.Contains(obs, name) {
			obs = append(obs, name)
		}
	}
	if len(obs) == 0 {
		obs = []string{ObsPosition, ObsTarget}
	}
	if len(opts.ImageShape) > 0 && !slices.Contains(obs, ObsImage) {
		obs = append(obs, ObsImage)
	}

	e := &Reach{
		opts:           opts,
		target:         opts.Target,
		log:            opts.Logger,
		obs:            obs,
		action:         trajectory.ArraySpec{Name: "action", DType: trajectory.Float32, Shape: []int{2}},
		targetLimiter:  newLimiter(opts.TargetUpdateDelta),
		commandLimiter: newLimiter(opts.CommandDelta),
	}
	for _, name := range obs {
		spec, err := e.observationSpec(name)
		if err != nil {
			return nil, err
		}
		e.spec.Observation = append(e.spec.Observation, spec)
	}
	return e, nil
}

func newLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

func (e *Reach) observationSpec(name string) (trajectory.ArraySpec, error) {
	switch name {
	case ObsPosition, ObsTarget, ObsAngles:
		return trajectory.ArraySpec{Name: name, DType: trajectory.Float32, Shape: []int{2}}, nil
	case ObsImage:
		shape := e.opts.ImageShape
		if len(shape) != 3 || shape[0] <= 0 || shape[1] <= 0 || (shape[2] != 1 && shape[2] != 3) {
			return trajectory.ArraySpec{}, errors.Errorf("reach: image shape must be [height width 1|3], got %v", shape)
		}
		return trajectory.ArraySpec{Name: name, DType: trajectory.Uint8, Shape: slices.Clone(shape)}, nil
	}
	return trajectory.ArraySpec{}, errors.Errorf("reach: unknown observation %q", name)
}

func (e *Reach) ActionSpec() trajectory.ArraySpec { return e.action }

func (e *Reach) TimeStepSpec() trajectory.TimeStepSpec { return e.spec }

// Target returns the shared target cell.
func (e *Reach) Target() *Target { return e.target }

// ResetAsync moves the arm to the reset pose and makes it the target.
func (e *Reach) ResetAsync(ctx context.Context, hw Hardware) error {
	pose := e.opts.Kinematics.Clamp(e.opts.ResetPosition)
	e.target.Store(pose)
	e.goal = pose
	e.log.Debugf("reset to (%.4f, %.4f)", pose.X, pose.Y)

	if err := e.command(ctx, hw, pose); err != nil {
		return err
	}
	e.reset = true
	e.stepped = false
	e.started = false
	e.index = 0
	return nil
}

// Reset returns the FIRST time step of a new episode.
func (e *Reach) Reset() (trajectory.TimeStep, error) {
	if !e.reset {
		return trajectory.TimeStep{}, &ContractError{Op: "reset", Err: errors.New("reset before async reset")}
	}
	e.reset = false
	e.started = true
	return e.timeStep(trajectory.First, 0), nil
}

// StepAsync moves the arm toward target+action. The target itself only
// advances once per TargetUpdateDelta.
func (e *Reach) StepAsync(ctx context.Context, hw Hardware, action trajectory.Tensor) error {
	if !e.started {
		return &ContractError{Op: "step", Err: errNotReset}
	}
	if err := e.action.Check(action); err != nil {
		return &ContractError{Op: "step", Err: err}
	}

	cur, ok := e.target.Load()
	if !ok {
		cur = e.goal
	}
	goal := e.opts.Kinematics.Clamp(cur.Add(r2.Point{X: float64(action.Float[0]), Y: float64(action.Float[1])}))
	e.goal = goal
	if e.targetLimiter.Allow() {
		e.target.Store(goal)
	}

	if err := e.command(ctx, hw, goal); err != nil {
		return err
	}
	e.stepped = true
	return nil
}

// Step returns the time step reached by the last StepAsync.
func (e *Reach) Step() (trajectory.TimeStep, error) {
	if !e.stepped {
		return trajectory.TimeStep{}, &ContractError{Op: "step", Err: errors.New("step before async step")}
	}
	e.stepped = false
	e.index++
	return e.timeStep(trajectory.Mid, e.index), nil
}

// Close clears the shared target.
func (e *Reach) Close() error {
	e.target.Clear()
	e.started = false
	return nil
}

func (e *Reach) command(ctx context.Context, hw Hardware, pos r2.Point) error {
	angles, err := e.opts.Kinematics.Inverse(pos)
	if err != nil {
		return &ContractError{Op: "command", Err: err}
	}
	if err := e.commandLimiter.Wait(ctx); err != nil {
		return err
	}
	if err := hw.WriteAngles(ctx, angles); err != nil {
		return err
	}
	read, err := hw.ReadAngles(ctx)
	if err != nil {
		return err
	}
	e.angles = read
	return nil
}

func (e *Reach) timeStep(kind trajectory.StepType, index int) trajectory.TimeStep {
	pos := e.opts.Kinematics.Forward(e.angles)
	target, _ := e.target.Load()

	obs := make(map[string]trajectory.Tensor, len(e.obs))
	for i, name := range e.obs {
		switch name {
		case ObsPosition:
			obs[name] = trajectory.Vector(float32(pos.X), float32(pos.Y))
		case ObsTarget:
			obs[name] = trajectory.Vector(float32(target.X), float32(target.Y))
		case ObsAngles:
			obs[name] = trajectory.Vector(float32(e.angles[0]), float32(e.angles[1]))
		case ObsImage:
			shape := e.spec.Observation[i].Shape
			obs[name] = trajectory.Image(shape[0], shape[1], shape[2],
				render(shape[0], shape[1], shape[2], e.opts.Kinematics, e.angles, target))
		}
	}

	return trajectory.TimeStep{
		StepType:    kind,
		Index:       index,
		Reward:      float32(-distance(pos, e.goal)),
		Discount:    1,
		Observation: obs,
	}
}

func distance(a, b r2.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
