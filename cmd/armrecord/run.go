package main

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/gwillem/armrecord/pkg/control"
	"github.com/gwillem/armrecord/pkg/env"
	"github.com/gwillem/armrecord/pkg/kinematics"
	"github.com/gwillem/armrecord/pkg/policy"
)

type RunCommand struct {
	SessionFlags

	Model      string `long:"model" required:"true" description:"Policy model file (JSON)"`
	Checkpoint string `long:"checkpoint" description:"Checkpoint overlay applied to the model"`
	History    int    `long:"history" description:"Observation history length; must match the model's"`
	Home       string `long:"home" default:"0.15,0.05" description:"Reset pose as x,y in meters"`
	Dataset    string `long:"dataset" description:"Also record the run into this shard pattern"`
}

func (c *RunCommand) Execute(args []string) error {
	log, logCh := c.sessionLogger()
	defer log.Sync()

	cfg, err := loadConfig(opts.Config, log)
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Follower.Port = c.Port
	}
	rc := cfg.Record
	if c.Env != "" {
		rc.Env = c.Env
	}
	if c.ImageShape != "" {
		if rc.ImageShape, err = parseImageShape(c.ImageShape); err != nil {
			return err
		}
	}
	home, err := parsePoint(c.Home)
	if err != nil {
		return err
	}
	kin, err := kinematics.NewPlanar(rc.LinkLengths)
	if err != nil {
		return err
	}

	// Loaded once, before any hardware is touched.
	p, err := policy.Load(c.Model, c.Checkpoint)
	if err != nil {
		return err
	}
	history, err := historyLength(c.History, p.HistoryLength())
	if err != nil {
		return err
	}
	log.Infof("loaded policy %s (history %d)", c.Model, history)

	connect := func(ctx context.Context) (*control.Rig, error) {
		follower, closer, err := openFollower(ctx, cfg.Follower, log)
		if err != nil {
			return nil, errors.Wrap(err, "follower")
		}
		return &control.Rig{
			Arm:    follower,
			Target: &env.Target{},
			Controller: policy.NewController(policy.Config{
				Policy:        p,
				HistoryLength: history,
				Home:          home,
			}),
			Closers: []io.Closer{closer},
		}, nil
	}

	return c.execute("run", control.Config{
		Connect:        connect,
		NewEnv:         envFactory(rc, kin, log),
		Dataset:        c.Dataset,
		CompressImages: true,
	}, log, logCh)
}

// historyLength resolves --history against the window the model was trained
// with. Zero means the model's own length.
func historyLength(requested, model int) (int, error) {
	if requested <= 0 {
		return model, nil
	}
	if requested != model {
		return 0, errors.Errorf("--history %d does not match the model's history length %d", requested, model)
	}
	return requested, nil
}
