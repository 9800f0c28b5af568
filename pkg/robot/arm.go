package robot

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Arm represents a robot arm with one servo per motor.
type Arm struct {
	transport   Transport
	calibration Calibration
}

// NewArm opens the serial bus on port and creates an arm connection.
func NewArm(port string, baudRate int, cal Calibration) (*Arm, error) {
	if err := cal.Validate(); err != nil {
		return nil, errors.Wrap(err, "calibration")
	}
	transport, err := OpenBus(port, baudRate, 100*time.Millisecond, cal.MotorIDs())
	if err != nil {
		return nil, err
	}
	return &Arm{transport: transport, calibration: cal}, nil
}

// NewArmWithTransport creates an arm on an already open transport.
func NewArmWithTransport(t Transport, cal Calibration) *Arm {
	return &Arm{transport: t, calibration: cal}
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.transport.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	if err := a.transport.SetTorque(ctx, true); err != nil {
		return &WriteError{Op: "enable torque", Err: err}
	}
	return nil
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	if err := a.transport.SetTorque(ctx, false); err != nil {
		return &WriteError{Op: "disable torque", Err: err}
	}
	return nil
}

// ReadAngles queries every motor in AllMotors order and returns the joint
// angles in radians, sign-corrected into the right-handed frame.
func (a *Arm) ReadAngles(ctx context.Context) (JointAngles, error) {
	motors := AllMotors()
	angles := make(JointAngles, 0, len(motors))
	for _, name := range motors {
		cal, ok := a.calibration[name]
		if !ok {
			return nil, &ReadError{Motor: name, ID: -1, Err: errors.New("not calibrated")}
		}
		raw, err := a.transport.Position(ctx, cal.ID)
		if err != nil {
			return nil, &ReadError{Motor: name, ID: cal.ID, Err: err}
		}
		angles = append(angles, cal.Radians(raw))
	}
	return angles, nil
}

// WriteAngles commands all motors to the given joint angles in radians.
func (a *Arm) WriteAngles(ctx context.Context, angles JointAngles) error {
	motors := AllMotors()
	if len(angles) != len(motors) {
		return &WriteError{Op: "positions", Err: errors.Errorf("got %d angles for %d motors", len(angles), len(motors))}
	}

	raw := make(map[int]int, len(motors))
	for i, name := range motors {
		cal, ok := a.calibration[name]
		if !ok {
			return &WriteError{Op: "positions", Err: errors.Errorf("%s not calibrated", name)}
		}
		raw[cal.ID] = cal.RawFromRadians(angles[i])
	}

	if err := a.transport.SetPositions(ctx, raw); err != nil {
		return &WriteError{Op: "positions", Err: err}
	}
	return nil
}
