package main

import (
	"testing"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/armrecord/pkg/robot"
)

func TestBuildCalibration(t *testing.T) {
	motors := robot.AllMotors()
	servos := sortServos([]feetech.FoundServo{{ID: 9}, {ID: 4}})
	home := map[robot.MotorName]int{robot.Root: 2100, robot.EndEffector: 2000}
	minPos := map[robot.MotorName]int{robot.Root: 1000, robot.EndEffector: 900}
	maxPos := map[robot.MotorName]int{robot.Root: 3000, robot.EndEffector: 3100}

	cal := buildCalibration(motors, servos, home, minPos, maxPos)
	if err := cal.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	root := cal[robot.Root]
	if root.ID != 4 || root.HomingOffset != 52 || root.DriveMode != 1 {
		t.Errorf("root = %+v", root)
	}
	ee := cal[robot.EndEffector]
	if ee.ID != 9 || ee.HomingOffset != -48 || ee.RangeMax != 3100 {
		t.Errorf("end effector = %+v", ee)
	}
	// The recorded home pose reads back as zero degrees.
	if got := root.Degrees(2100); got != 0 {
		t.Errorf("root.Degrees(home) = %v, want 0", got)
	}
}

func TestIsPlanarArm(t *testing.T) {
	if !isPlanarArm([]feetech.FoundServo{{ID: 1}, {ID: 2}}) {
		t.Error("two servos should be a planar arm")
	}
	if isPlanarArm([]feetech.FoundServo{{ID: 1}, {ID: 2}, {ID: 3}}) {
		t.Error("three servos should not be a planar arm")
	}
}
