// Package robot provides the hardware side of the arm: servo transport,
// calibration and joint-angle feedback.
package robot

// MotorName identifies a motor in the arm.
type MotorName string

// Motor names for the two-joint planar arm.
const (
	Root        MotorName = "root"
	EndEffector MotorName = "end_effector"
)

// AllMotors returns all motor names in kinematic order (base first).
// JointAngles are always indexed in this order.
func AllMotors() []MotorName {
	return []MotorName{
		Root,
		EndEffector,
	}
}

// JointAngles holds one angle in radians per motor, ordered like AllMotors.
type JointAngles []float64

// Clone returns a copy that does not share storage with a.
func (a JointAngles) Clone() JointAngles {
	out := make(JointAngles, len(a))
	copy(out, a)
	return out
}
