package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gwillem/armrecord/pkg/env"
	"github.com/gwillem/armrecord/pkg/kinematics"
	"github.com/gwillem/armrecord/pkg/robot"
)

// loadConfig reads the config file, falling back to defaults when it does
// not exist yet.
func loadConfig(path string, log *zap.SugaredLogger) (*robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(path)
	if err != nil {
		if !robot.ConfigExistsAt(path) {
			log.Warnf("no configuration at %s, using defaults (run 'armrecord setup' to calibrate)", path)
			cfg = &robot.Config{}
		} else {
			return nil, err
		}
	}
	cfg.Record = cfg.Record.WithDefaults()
	return cfg, nil
}

func calibrationFor(arm robot.ArmConfig, name string, log *zap.SugaredLogger) robot.Calibration {
	if arm.IsCalibrated() {
		return arm.Calibration
	}
	log.Warnf("%s arm not calibrated, using default calibration", name)
	return robot.DefaultCalibration()
}

// armCloser releases an arm, disabling torque first if it was enabled.
type armCloser struct {
	arm     *robot.Arm
	disable bool
}

func (c armCloser) Close() error {
	var err error
	if c.disable {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = c.arm.Disable(ctx)
		cancel()
	}
	return multierr.Append(err, c.arm.Close())
}

// openFollower connects the driven arm and enables torque.
func openFollower(ctx context.Context, arm robot.ArmConfig, log *zap.SugaredLogger) (*robot.Arm, armCloser, error) {
	if arm.Port == "" {
		return nil, armCloser{}, fmt.Errorf("follower port not configured (use --port or 'armrecord setup')")
	}
	a, err := robot.NewArm(arm.Port, arm.BaudRate, calibrationFor(arm, "follower", log))
	if err != nil {
		return nil, armCloser{}, err
	}
	if err := a.Enable(ctx); err != nil {
		return nil, armCloser{}, multierr.Append(err, a.Close())
	}
	log.Infof("follower arm on %s: torque enabled", arm.Port)
	return a, armCloser{arm: a, disable: true}, nil
}

// openController connects the hand-moved input arm in passive mode.
func openController(ctx context.Context, arm robot.ArmConfig, log *zap.SugaredLogger) (*robot.Arm, armCloser, error) {
	if arm.Port == "" {
		return nil, armCloser{}, fmt.Errorf("controller port not configured (use --controller-port or 'armrecord setup')")
	}
	a, err := robot.NewArm(arm.Port, arm.BaudRate, calibrationFor(arm, "controller", log))
	if err != nil {
		return nil, armCloser{}, err
	}
	if err := a.Disable(ctx); err != nil {
		log.Warnf("failed to disable controller arm: %v", err)
	} else {
		log.Infof("controller arm on %s: torque disabled (passive mode)", arm.Port)
	}
	return a, armCloser{arm: a}, nil
}

// envFactory builds the configured environment for a session.
func envFactory(rc robot.RecordConfig, kin kinematics.Planar, log *zap.SugaredLogger) func(r2.Point, *env.Target) (env.Environment, error) {
	return func(reset r2.Point, target *env.Target) (env.Environment, error) {
		return env.Load(rc.Env, env.Options{
			Target:            target,
			ResetPosition:     reset,
			Kinematics:        kin,
			TargetUpdateDelta: rc.TargetUpdateDelta(),
			CommandDelta:      rc.CommandDelta(),
			Observations:      rc.Observations,
			ImageShape:        rc.ImageShape,
			Logger:            log.Named("env"),
		})
	}
}

// parseImageShape parses "HxWxC".
func parseImageShape(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "x")
	if len(parts) != 3 {
		return nil, fmt.Errorf("image shape %q: want HxWxC", s)
	}
	shape := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("image shape %q: bad dimension %q", s, p)
		}
		shape[i] = n
	}
	return shape, nil
}

// parsePoint parses "x,y" in meters.
func parsePoint(s string) (r2.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return r2.Point{}, fmt.Errorf("point %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return r2.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return r2.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	return r2.Point{X: x, Y: y}, nil
}
