// Package policy runs a trained policy in the control loop.
package policy

import (
	"context"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/gwillem/armrecord/pkg/trajectory"
)

// Controller feeds time steps through a History into a Policy.
type Controller struct {
	policy  Policy
	history *History
	home    r2.Point
	action  trajectory.ArraySpec
}

// Config holds configuration for the controller.
type Config struct {
	Policy        Policy
	HistoryLength int
	// Home is the reset pose requested from the environment.
	Home r2.Point
	// ActionSpec, when set, is checked against every action.
	ActionSpec *trajectory.ArraySpec
}

// NewController creates a policy controller.
func NewController(cfg Config) *Controller {
	c := &Controller{
		policy:  cfg.Policy,
		history: NewHistory(cfg.HistoryLength),
		home:    cfg.Home,
	}
	if cfg.ActionSpec != nil {
		c.action = *cfg.ActionSpec
	}
	return c
}

// InitialPosition returns the configured home pose.
func (c *Controller) InitialPosition(context.Context) (r2.Point, error) {
	return c.home, nil
}

// Act records ts in the history and asks the policy for an action. A FIRST
// time step restarts the history.
func (c *Controller) Act(ctx context.Context, ts trajectory.TimeStep) (trajectory.Tensor, error) {
	if ts.StepType == trajectory.First {
		c.history.Reset(ts.Observation)
	} else {
		c.history.Push(ts.Observation)
	}
	action, err := c.policy.Action(ctx, c.history.Window())
	if err != nil {
		return trajectory.Tensor{}, errors.Wrap(err, "policy action")
	}
	if c.action.DType != "" {
		if err := c.action.Check(action); err != nil {
			return trajectory.Tensor{}, errors.Wrap(err, "policy action")
		}
	}
	return action, nil
}
