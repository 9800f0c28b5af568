// Package env is the environment adapter between the control loop and the
// physical arm: reset/step semantics, observation and action specs, and the
// shared target position.
package env

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gwillem/armrecord/pkg/kinematics"
	"github.com/gwillem/armrecord/pkg/robot"
	"github.com/gwillem/armrecord/pkg/trajectory"
)

// Hardware is the arm an environment drives.
type Hardware interface {
	ReadAngles(ctx context.Context) (robot.JointAngles, error)
	WriteAngles(ctx context.Context, angles robot.JointAngles) error
}

// Environment has a two-phase reset and step: the async half talks to the
// hardware and may block, the sync half produces the time step.
type Environment interface {
	ActionSpec() trajectory.ArraySpec
	TimeStepSpec() trajectory.TimeStepSpec

	ResetAsync(ctx context.Context, hw Hardware) error
	Reset() (trajectory.TimeStep, error)
	StepAsync(ctx context.Context, hw Hardware, action trajectory.Tensor) error
	Step() (trajectory.TimeStep, error)

	Close() error
}

// ContractError reports a reset/step call that violates the environment
// contract, such as an action of the wrong shape.
type ContractError struct {
	Op  string
	Err error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("env %s: %v", e.Op, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// Options configures an environment instance.
type Options struct {
	Target        *Target
	ResetPosition r2.Point
	Kinematics    kinematics.Planar

	TargetUpdateDelta time.Duration
	CommandDelta      time.Duration

	Observations []string
	ImageShape   []int // height, width, channels

	Logger *zap.SugaredLogger
}

// Factory builds an environment.
type Factory func(Options) (Environment, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"reach-v0": newReach,
	}
)

// Register makes an environment available to Load under name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Names lists the registered environments.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newReach(o Options) (Environment, error) {
	e, err := NewReach(o)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Load builds the environment registered under name.
func Load(name string, opts Options) (Environment, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown environment %q (have %v)", name, Names())
	}
	if opts.Target == nil {
		opts.Target = &Target{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return f(opts)
}
