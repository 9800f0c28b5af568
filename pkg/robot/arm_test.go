package robot

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	positions map[int]int
	failID    int
	queries   []int
	written   map[int]int
	torque    bool
	closed    bool
}

func (f *fakeTransport) Position(_ context.Context, id int) (int, error) {
	f.queries = append(f.queries, id)
	if id == f.failID {
		return 0, errors.New("timeout")
	}
	return f.positions[id], nil
}

func (f *fakeTransport) SetPositions(_ context.Context, raw map[int]int) error {
	f.written = raw
	return nil
}

func (f *fakeTransport) SetTorque(_ context.Context, enable bool) error {
	f.torque = enable
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func testCalibration() Calibration {
	return Calibration{
		Root:        {ID: 49, DriveMode: 1, RangeMin: 0, RangeMax: 4095},
		EndEffector: {ID: 9, DriveMode: 0, RangeMin: 0, RangeMax: 4095},
	}
}

func TestArm_ReadAngles(t *testing.T) {
	tr := &fakeTransport{positions: map[int]int{49: CenterStep + 1024, 9: CenterStep - 512}}
	arm := NewArmWithTransport(tr, testCalibration())

	angles, err := arm.ReadAngles(context.Background())
	require.NoError(t, err)
	require.Len(t, angles, 2)

	assert.InDelta(t, -math.Pi/2, angles[0], 1e-9, "root is sign-flipped")
	assert.InDelta(t, -math.Pi/4, angles[1], 1e-9)
	assert.Equal(t, []int{49, 9}, tr.queries, "one query per motor in configured order")
}

func TestArm_ReadAnglesError(t *testing.T) {
	tr := &fakeTransport{positions: map[int]int{49: CenterStep}, failID: 9}
	arm := NewArmWithTransport(tr, testCalibration())

	_, err := arm.ReadAngles(context.Background())
	require.Error(t, err)

	var readErr *ReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, EndEffector, readErr.Motor)
	assert.Equal(t, 9, readErr.ID)
	assert.Equal(t, []int{49, 9}, tr.queries, "no retry")
}

func TestArm_WriteAngles(t *testing.T) {
	tr := &fakeTransport{}
	arm := NewArmWithTransport(tr, testCalibration())

	require.NoError(t, arm.WriteAngles(context.Background(), JointAngles{-math.Pi / 2, math.Pi / 4}))
	assert.Equal(t, map[int]int{49: CenterStep + 1024, 9: CenterStep + 512}, tr.written)

	err := arm.WriteAngles(context.Background(), JointAngles{0})
	var writeErr *WriteError
	assert.True(t, errors.As(err, &writeErr))
}

func TestArm_TorqueAndClose(t *testing.T) {
	tr := &fakeTransport{}
	arm := NewArmWithTransport(tr, testCalibration())

	require.NoError(t, arm.Enable(context.Background()))
	assert.True(t, tr.torque)
	require.NoError(t, arm.Disable(context.Background()))
	assert.False(t, tr.torque)
	require.NoError(t, arm.Close())
	assert.True(t, tr.closed)
}
