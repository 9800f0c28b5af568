package control

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armrecord/pkg/env"
	"github.com/gwillem/armrecord/pkg/kinematics"
	"github.com/gwillem/armrecord/pkg/robot"
	"github.com/gwillem/armrecord/pkg/teleop"
	"github.com/gwillem/armrecord/pkg/trajectory"
)

var testArm = kinematics.Planar{L1: 0.12, L2: 0.1}

func TestRun_TeleopReach(t *testing.T) {
	dir := t.TempDir()
	input := &fakeArm{angles: robot.JointAngles{0.1, -0.2}}
	follower := &fakeArm{}
	target := &env.Target{}
	ctrl := teleop.NewController(teleop.Config{Reader: input, Kinematics: testArm, Target: target})

	l, err := New(Config{
		Connect: func(context.Context) (*Rig, error) {
			return &Rig{Arm: follower, Target: target, Controller: ctrl}, nil
		},
		NewEnv: func(reset r2.Point, tgt *env.Target) (env.Environment, error) {
			return env.Load("reach-v0", env.Options{
				Target:        tgt,
				ResetPosition: reset,
				Kinematics:    testArm,
				ImageShape:    []int{8, 8, 3},
			})
		},
		Dataset:        filepath.Join(dir, "oracle*.rec"),
		CompressImages: true,
		MaxCycles:      5,
	})
	require.NoError(t, err)
	require.NoError(t, l.Run(context.Background()))

	hdr, steps, err := trajectory.ReadShard(filepath.Join(dir, "oracle_0.rec"))
	require.NoError(t, err)
	assert.Equal(t, l.Session().String(), hdr.Session)
	assert.True(t, hdr.CompressImages)
	require.Len(t, steps, 6)
	assert.Equal(t, trajectory.Last, steps[5].StepType)

	want := testArm.Forward(input.angles)
	for i, s := range steps {
		assert.InDelta(t, 0, s.Action.Float[0], 1e-6, "record %d", i)
		assert.InDelta(t, 0, s.Action.Float[1], 1e-6, "record %d", i)
		assert.Len(t, s.Observation["image"].Bytes, 8*8*3)
		pos := s.Observation["position"].Float
		assert.InDelta(t, want.X, pos[0], 1e-5)
		assert.InDelta(t, want.Y, pos[1], 1e-5)
	}

	got := testArm.Forward(follower.angles)
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)

	_, ok := target.Load()
	assert.False(t, ok, "environment close clears the target")
}

func TestRun_TargetAbsentZeroActions(t *testing.T) {
	input := &fakeArm{angles: robot.JointAngles{0.4, 0.9}}
	ctrl := teleop.NewController(teleop.Config{Reader: input, Kinematics: testArm, Target: &env.Target{}})
	h := newHarness(t, &fakeEnv{}, ctrl, 5)

	_, err := h.run(t, context.Background())
	require.NoError(t, err)

	require.Len(t, h.env.actions, 5)
	for _, a := range h.env.actions {
		assert.Equal(t, []float32{0, 0}, a.Float)
	}
	for _, s := range h.records(t) {
		assert.Equal(t, []float32{0, 0}, s.Action.Float)
	}
}
