package control

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/geo/r2"

	"github.com/gwillem/armrecord/pkg/env"
	"github.com/gwillem/armrecord/pkg/robot"
	"github.com/gwillem/armrecord/pkg/trajectory"
)

// journal records teardown order across fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

type fakeCloser struct {
	name string
	j    *journal
	err  error
}

func (c *fakeCloser) Close() error {
	c.j.add(c.name)
	return c.err
}

type fakeArm struct {
	angles robot.JointAngles
}

func (a *fakeArm) ReadAngles(context.Context) (robot.JointAngles, error) {
	return a.angles.Clone(), nil
}

func (a *fakeArm) WriteAngles(_ context.Context, angles robot.JointAngles) error {
	a.angles = angles.Clone()
	return nil
}

// fakeEnv emits time steps whose position observation is (index, 0).
type fakeEnv struct {
	j *journal

	resetErr    error
	stepErrAt   int // StepAsync call that fails, 1-based
	badObsAt    int // Step call that returns a mis-shaped observation
	closeErr    error
	stepAsyncs  int
	steps       int
	actions     []trajectory.Tensor
	closed      bool
	resetCalled bool
}

func (e *fakeEnv) ActionSpec() trajectory.ArraySpec {
	return trajectory.ArraySpec{Name: "action", DType: trajectory.Float32, Shape: []int{2}}
}

func (e *fakeEnv) TimeStepSpec() trajectory.TimeStepSpec {
	return trajectory.TimeStepSpec{Observation: []trajectory.ArraySpec{
		{Name: "position", DType: trajectory.Float32, Shape: []int{2}},
	}}
}

func (e *fakeEnv) ResetAsync(context.Context, env.Hardware) error {
	e.resetCalled = true
	return e.resetErr
}

func (e *fakeEnv) Reset() (trajectory.TimeStep, error) {
	return e.timeStep(trajectory.First, 0), nil
}

func (e *fakeEnv) StepAsync(_ context.Context, _ env.Hardware, action trajectory.Tensor) error {
	e.stepAsyncs++
	if e.stepAsyncs == e.stepErrAt {
		return &robot.WriteError{Op: "set positions", Err: errors.New("bus timeout")}
	}
	if err := e.ActionSpec().Check(action); err != nil {
		return &env.ContractError{Op: "step", Err: err}
	}
	e.actions = append(e.actions, action)
	return nil
}

func (e *fakeEnv) Step() (trajectory.TimeStep, error) {
	e.steps++
	ts := e.timeStep(trajectory.Mid, e.steps)
	if e.steps == e.badObsAt {
		ts.Observation["position"] = trajectory.Vector(1, 2, 3)
	}
	return ts, nil
}

func (e *fakeEnv) Close() error {
	e.closed = true
	if e.j != nil {
		e.j.add("env")
	}
	return e.closeErr
}

func (e *fakeEnv) timeStep(kind trajectory.StepType, index int) trajectory.TimeStep {
	return trajectory.TimeStep{
		StepType: kind,
		Index:    index,
		Reward:   -float32(index),
		Discount: 1,
		Observation: map[string]trajectory.Tensor{
			"position": trajectory.Vector(float32(index), 0),
		},
	}
}

// fakeController returns zero actions and can fail or cancel on a given Act.
type fakeController struct {
	acts     int
	failAt   int
	cancelAt int
	cancel   context.CancelFunc
	initErr  error
}

func (c *fakeController) InitialPosition(context.Context) (r2.Point, error) {
	return r2.Point{X: 0.1, Y: 0.1}, c.initErr
}

func (c *fakeController) Act(ctx context.Context, _ trajectory.TimeStep) (trajectory.Tensor, error) {
	c.acts++
	if c.acts == c.failAt {
		return trajectory.Tensor{}, &robot.ReadError{Motor: robot.Root, ID: 1, Err: errors.New("no response")}
	}
	if c.acts == c.cancelAt {
		c.cancel()
		return trajectory.Tensor{}, ctx.Err()
	}
	return trajectory.Vector(0, 0), nil
}

// failingRecorder fails appends of LAST records.
type failingRecorder struct {
	steps []trajectory.Step
}

func (r *failingRecorder) Path() string { return "memory" }

func (r *failingRecorder) Append(step trajectory.Step) error {
	if step.StepType == trajectory.Last {
		return &trajectory.IOError{Op: "append", Path: "memory", Err: errors.New("disk full")}
	}
	r.steps = append(r.steps, step)
	return nil
}

func (r *failingRecorder) Records() int   { return len(r.steps) }
func (r *failingRecorder) Writable() bool { return true }
func (r *failingRecorder) Close() error   { return nil }
