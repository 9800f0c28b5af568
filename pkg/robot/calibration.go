package robot

import (
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
)

const (
	// StepsPerRevolution is the encoder resolution of an STS servo.
	StepsPerRevolution = 4096
	// CenterStep is the raw position treated as 0° before the homing offset.
	CenterStep = StepsPerRevolution / 2
)

// MotorCalibration holds calibration data for a single motor.
type MotorCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// Calibration holds calibration data for all motors, keyed by motor name.
type Calibration map[MotorName]MotorCalibration

// DefaultCalibration returns an uncalibrated two-joint arm on servo IDs 1 and 2.
// The root joint is mounted inverted, so its readings are sign-flipped into the
// right-handed frame.
func DefaultCalibration() Calibration {
	return Calibration{
		Root:        {ID: 1, DriveMode: 1, RangeMin: 0, RangeMax: StepsPerRevolution - 1},
		EndEffector: {ID: 2, DriveMode: 0, RangeMin: 0, RangeMax: StepsPerRevolution - 1},
	}
}

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read calibration file")
	}

	var raw map[string]MotorCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse calibration JSON")
	}

	cal := make(Calibration, len(raw))
	for name, mc := range raw {
		cal[MotorName(name)] = mc
	}

	return cal, nil
}

// Sign returns the factor that maps the servo's rotation direction onto the
// right-handed arm frame.
func (c MotorCalibration) Sign() float64 {
	if c.DriveMode != 0 {
		return -1
	}
	return 1
}

// Degrees converts a raw servo position to degrees relative to the homed zero.
// The drive mode sign is not applied.
func (c MotorCalibration) Degrees(raw int) float64 {
	return float64(raw-CenterStep-c.HomingOffset) * 360 / StepsPerRevolution
}

// Raw converts degrees relative to the homed zero back to a raw position,
// clamped to the recorded range of motion.
func (c MotorCalibration) Raw(deg float64) int {
	raw := int(math.Round(deg*StepsPerRevolution/360)) + CenterStep + c.HomingOffset
	if c.RangeMax > c.RangeMin {
		raw = max(c.RangeMin, min(c.RangeMax, raw))
	}
	return raw
}

// Radians converts a raw position to a signed joint angle in radians.
func (c MotorCalibration) Radians(raw int) float64 {
	return c.Sign() * c.Degrees(raw) * math.Pi / 180
}

// RawFromRadians is the inverse of Radians.
func (c MotorCalibration) RawFromRadians(rad float64) int {
	return c.Raw(c.Sign() * rad * 180 / math.Pi)
}

// Validate checks that the calibration covers every motor with a usable range.
func (c Calibration) Validate() error {
	seen := make(map[int]MotorName, len(c))
	for _, name := range AllMotors() {
		mc, ok := c[name]
		if !ok {
			return errors.Errorf("missing calibration for %s", name)
		}
		if mc.ID < 0 || mc.ID > 253 {
			return errors.Errorf("%s: invalid servo ID %d", name, mc.ID)
		}
		if other, dup := seen[mc.ID]; dup {
			return errors.Errorf("%s: servo ID %d already used by %s", name, mc.ID, other)
		}
		seen[mc.ID] = name
		if mc.RangeMin >= mc.RangeMax {
			return errors.Errorf("%s: range min (%d) must be less than max (%d)", name, mc.RangeMin, mc.RangeMax)
		}
	}
	return nil
}

// MotorIDs returns the servo IDs for all motors in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// AllMotors keeps the ordering stable
	for _, name := range AllMotors() {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// ByID returns motor name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (MotorName, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}
