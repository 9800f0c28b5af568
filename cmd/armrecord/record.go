package main

import (
	"context"

	"go.uber.org/multierr"

	"github.com/gwillem/armrecord/pkg/control"
	"github.com/gwillem/armrecord/pkg/env"
	"github.com/gwillem/armrecord/pkg/kinematics"
	"github.com/gwillem/armrecord/pkg/teleop"
)

type RecordCommand struct {
	SessionFlags

	ControllerPort    string   `long:"controller-port" env:"ARMRECORD_CONTROLLER_PORT" description:"Controller (input) arm serial port (overrides config)"`
	Dataset           string   `long:"dataset" env:"ARMRECORD_DATASET" description:"Shard path pattern, e.g. data/oracle*.rec"`
	TargetUpdateDelta float64  `long:"target-update-delta" description:"Seconds between target updates"`
	CommandDelta      float64  `long:"command-delta" description:"Seconds between servo commands"`
	Observations      []string `long:"observation" description:"Observation to record (repeatable: position, target, angles, image)"`
	Deadband          float64  `long:"deadband" description:"Zero actions shorter than this many meters"`
	NoCompress        bool     `long:"no-image-compression" description:"Store image observations uncompressed"`
}

func (c *RecordCommand) Execute(args []string) error {
	log, logCh := c.sessionLogger()
	defer log.Sync()

	cfg, err := loadConfig(opts.Config, log)
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Follower.Port = c.Port
	}
	if c.ControllerPort != "" {
		cfg.Controller.Port = c.ControllerPort
	}
	rc := cfg.Record
	if c.Env != "" {
		rc.Env = c.Env
	}
	if c.Dataset != "" {
		rc.Dataset = c.Dataset
	}
	if c.TargetUpdateDelta > 0 {
		rc.TargetUpdateDeltaTime = c.TargetUpdateDelta
	}
	if c.CommandDelta > 0 {
		rc.CommandDeltaTime = c.CommandDelta
	}
	if len(c.Observations) > 0 {
		rc.Observations = c.Observations
	}
	if c.ImageShape != "" {
		if rc.ImageShape, err = parseImageShape(c.ImageShape); err != nil {
			return err
		}
	}

	kin, err := kinematics.NewPlanar(rc.LinkLengths)
	if err != nil {
		return err
	}

	connect := func(ctx context.Context) (*control.Rig, error) {
		input, inputCloser, err := openController(ctx, cfg.Controller, log)
		if err != nil {
			return nil, err
		}
		rig := &control.Rig{Target: &env.Target{}}
		rig.Closers = append(rig.Closers, inputCloser)

		follower, followerCloser, err := openFollower(ctx, cfg.Follower, log)
		if err != nil {
			return nil, multierr.Append(err, rig.Close())
		}
		rig.Closers = append(rig.Closers, followerCloser)
		rig.Arm = follower
		rig.Controller = teleop.NewController(teleop.Config{
			Reader:     input,
			Kinematics: kin,
			Target:     rig.Target,
			Deadband:   c.Deadband,
		})
		return rig, nil
	}

	log.Infof("recording %s into %s", rc.Env, rc.Dataset)
	return c.execute("record", control.Config{
		Connect:        connect,
		NewEnv:         envFactory(rc, kin, log),
		Dataset:        rc.Dataset,
		CompressImages: !c.NoCompress,
	}, log, logCh)
}
