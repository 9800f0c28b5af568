package env

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armrecord/pkg/kinematics"
	"github.com/gwillem/armrecord/pkg/robot"
	"github.com/gwillem/armrecord/pkg/trajectory"
)

type fakeArm struct {
	angles   robot.JointAngles
	writes   int
	writeErr error
}

func (f *fakeArm) ReadAngles(context.Context) (robot.JointAngles, error) {
	return f.angles.Clone(), nil
}

func (f *fakeArm) WriteAngles(_ context.Context, angles robot.JointAngles) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.angles = angles.Clone()
	return nil
}

func testOptions() Options {
	return Options{
		ResetPosition: r2.Point{X: 0.15, Y: 0.05},
		Kinematics:    kinematics.Planar{L1: 0.12, L2: 0.1},
	}
}

func newTestReach(t *testing.T, opts Options) *Reach {
	t.Helper()
	e, err := NewReach(opts)
	require.NoError(t, err)
	return e
}

func TestLoad(t *testing.T) {
	e, err := Load("reach-v0", testOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{2}, e.ActionSpec().Shape)

	_, err = Load("nope-v0", testOptions())
	assert.Error(t, err)
	assert.Contains(t, Names(), "reach-v0")
}

func TestReach_Reset(t *testing.T) {
	ctx := context.Background()
	e := newTestReach(t, testOptions())
	arm := &fakeArm{}

	_, err := e.Reset()
	var ce *ContractError
	require.ErrorAs(t, err, &ce)

	require.NoError(t, e.ResetAsync(ctx, arm))
	ts, err := e.Reset()
	require.NoError(t, err)

	assert.Equal(t, trajectory.First, ts.StepType)
	assert.Equal(t, 0, ts.Index)
	assert.Equal(t, float32(1), ts.Discount)
	pos := ts.Observation[ObsPosition].Float
	assert.InDelta(t, 0.15, pos[0], 1e-6)
	assert.InDelta(t, 0.05, pos[1], 1e-6)
	assert.InDelta(t, 0, ts.Reward, 1e-6)

	target, ok := e.Target().Load()
	require.True(t, ok)
	assert.Equal(t, r2.Point{X: 0.15, Y: 0.05}, target)
}

func TestReach_StepBeforeReset(t *testing.T) {
	e := newTestReach(t, testOptions())
	err := e.StepAsync(context.Background(), &fakeArm{}, trajectory.Vector(0, 0))
	var ce *ContractError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "step", ce.Op)

	_, err = e.Step()
	require.ErrorAs(t, err, &ce)
}

func TestReach_Step(t *testing.T) {
	ctx := context.Background()
	e := newTestReach(t, testOptions())
	arm := &fakeArm{}
	require.NoError(t, e.ResetAsync(ctx, arm))
	_, err := e.Reset()
	require.NoError(t, err)

	require.NoError(t, e.StepAsync(ctx, arm, trajectory.Vector(0.01, -0.02)))
	ts, err := e.Step()
	require.NoError(t, err)

	assert.Equal(t, trajectory.Mid, ts.StepType)
	assert.Equal(t, 1, ts.Index)
	pos := ts.Observation[ObsPosition].Float
	assert.InDelta(t, 0.16, pos[0], 1e-6)
	assert.InDelta(t, 0.03, pos[1], 1e-6)
	tgt := ts.Observation[ObsTarget].Float
	assert.InDelta(t, 0.16, tgt[0], 1e-6)
	assert.InDelta(t, 0.03, tgt[1], 1e-6)
	assert.Equal(t, 2, arm.writes)

	require.NoError(t, e.StepAsync(ctx, arm, trajectory.Vector(0, 0)))
	ts, err = e.Step()
	require.NoError(t, err)
	assert.Equal(t, 2, ts.Index)
}

func TestReach_TargetUpdatePacing(t *testing.T) {
	ctx := context.Background()
	opts := testOptions()
	opts.TargetUpdateDelta = time.Hour
	e := newTestReach(t, opts)
	arm := &fakeArm{}
	require.NoError(t, e.ResetAsync(ctx, arm))
	_, err := e.Reset()
	require.NoError(t, err)

	require.NoError(t, e.StepAsync(ctx, arm, trajectory.Vector(0.01, 0)))
	first, _ := e.Target().Load()
	require.NoError(t, e.StepAsync(ctx, arm, trajectory.Vector(0.01, 0)))
	second, _ := e.Target().Load()

	assert.InDelta(t, 0.16, first.X, 1e-9)
	assert.Equal(t, first, second, "target must not move before the update delta elapses")
}

func TestReach_ActionShapeMismatch(t *testing.T) {
	ctx := context.Background()
	e := newTestReach(t, testOptions())
	arm := &fakeArm{}
	require.NoError(t, e.ResetAsync(ctx, arm))
	_, err := e.Reset()
	require.NoError(t, err)

	err = e.StepAsync(ctx, arm, trajectory.Vector(1, 2, 3))
	var ce *ContractError
	require.ErrorAs(t, err, &ce)
	assert.True(t, errors.Is(err, trajectory.ErrSpecMismatch))
}

func TestReach_WriteErrorPropagates(t *testing.T) {
	ctx := context.Background()
	e := newTestReach(t, testOptions())
	arm := &fakeArm{writeErr: &robot.WriteError{Op: "set positions", Err: errors.New("timeout")}}

	err := e.ResetAsync(ctx, arm)
	var we *robot.WriteError
	require.ErrorAs(t, err, &we)
}

func TestReach_Cancelled(t *testing.T) {
	opts := testOptions()
	opts.CommandDelta = time.Hour
	e := newTestReach(t, opts)
	arm := &fakeArm{}
	require.NoError(t, e.ResetAsync(context.Background(), arm))
	_, err := e.Reset()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = e.StepAsync(ctx, arm, trajectory.Vector(0, 0))
	assert.Error(t, err)
	assert.Equal(t, 1, arm.writes)
}

func TestReach_Observations(t *testing.T) {
	opts := testOptions()
	opts.Observations = []string{ObsAngles}
	opts.ImageShape = []int{16, 24, 3}
	e := newTestReach(t, opts)

	spec := e.TimeStepSpec()
	require.Len(t, spec.Observation, 2)
	assert.Equal(t, ObsAngles, spec.Observation[0].Name)
	assert.Equal(t, ObsImage, spec.Observation[1].Name)
	assert.Equal(t, trajectory.Uint8, spec.Observation[1].DType)

	ctx := context.Background()
	arm := &fakeArm{}
	require.NoError(t, e.ResetAsync(ctx, arm))
	ts, err := e.Reset()
	require.NoError(t, err)

	img := ts.Observation[ObsImage]
	require.NoError(t, spec.Observation[1].Check(img))
	lit := 0
	for _, b := range img.Bytes {
		if b > 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
	require.NoError(t, spec.Observation[0].Check(ts.Observation[ObsAngles]))
}

func TestReach_RepeatedObservation(t *testing.T) {
	opts := testOptions()
	opts.Observations = []string{ObsPosition, ObsPosition, ObsTarget, ObsPosition}
	e := newTestReach(t, opts)

	spec := e.TimeStepSpec()
	require.Len(t, spec.Observation, 2)
	assert.Equal(t, ObsPosition, spec.Observation[0].Name)
	assert.Equal(t, ObsTarget, spec.Observation[1].Name)

	ctx := context.Background()
	arm := &fakeArm{}
	require.NoError(t, e.ResetAsync(ctx, arm))
	first, err := e.Reset()
	require.NoError(t, err)
	require.NoError(t, e.StepAsync(ctx, arm, trajectory.Vector(0, 0)))
	next, err := e.Step()
	require.NoError(t, err)

	ts := trajectory.TransitionSpec(spec, e.ActionSpec())
	assert.NoError(t, ts.Check(trajectory.FromTransition(first, trajectory.Vector(0, 0), next)))
}

func TestReach_GrayscaleImage(t *testing.T) {
	opts := testOptions()
	opts.ImageShape = []int{8, 8, 1}
	e := newTestReach(t, opts)
	require.NoError(t, e.ResetAsync(context.Background(), &fakeArm{}))
	ts, err := e.Reset()
	require.NoError(t, err)
	assert.Len(t, ts.Observation[ObsImage].Bytes, 64)
}

func TestNewReach_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"unknown observation", func(o *Options) { o.Observations = []string{"velocity"} }},
		{"bad image shape", func(o *Options) { o.ImageShape = []int{8, 8} }},
		{"bad channels", func(o *Options) { o.ImageShape = []int{8, 8, 2} }},
		{"no links", func(o *Options) { o.Kinematics = kinematics.Planar{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(&opts)
			_, err := NewReach(opts)
			assert.Error(t, err)
		})
	}
}

func TestReach_CloseClearsTarget(t *testing.T) {
	e := newTestReach(t, testOptions())
	require.NoError(t, e.ResetAsync(context.Background(), &fakeArm{}))
	require.NoError(t, e.Close())
	_, ok := e.Target().Load()
	assert.False(t, ok)
}

func TestTarget(t *testing.T) {
	var tgt Target
	_, ok := tgt.Load()
	assert.False(t, ok)

	tgt.Store(r2.Point{X: 1, Y: 2})
	p, ok := tgt.Load()
	assert.True(t, ok)
	assert.Equal(t, r2.Point{X: 1, Y: 2}, p)

	tgt.Clear()
	_, ok = tgt.Load()
	assert.False(t, ok)
}
