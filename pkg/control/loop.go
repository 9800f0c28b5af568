// Package control runs the closed loop that drives the arm through an
// environment and records every transition.
package control

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gwillem/armrecord/pkg/env"
	"github.com/gwillem/armrecord/pkg/metrics"
	"github.com/gwillem/armrecord/pkg/trajectory"
)

// Controller produces the action for each cycle.
type Controller interface {
	// InitialPosition is used as the environment's reset pose.
	InitialPosition(ctx context.Context) (r2.Point, error)
	Act(ctx context.Context, ts trajectory.TimeStep) (trajectory.Tensor, error)
}

// Recorder is the sink for trajectory records.
type Recorder interface {
	Path() string
	Append(step trajectory.Step) error
	Records() int
	Writable() bool
	Close() error
}

// Config holds configuration for the loop.
type Config struct {
	// Connect acquires the session's hardware.
	Connect func(ctx context.Context) (*Rig, error)
	// NewEnv builds the environment with the given reset pose.
	NewEnv func(reset r2.Point, target *env.Target) (env.Environment, error)

	// Dataset is the shard path pattern, e.g. "data/oracle*.rec". Empty
	// discards records.
	Dataset        string
	CompressImages bool
	// NewRecorder, if set, replaces the shard writer.
	NewRecorder func(spec trajectory.Spec) (Recorder, error)
	// MaxCycles stops the loop after that many cycles. Zero runs until ctx
	// is done.
	MaxCycles int

	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// Loop runs one recording session.
type Loop struct {
	cfg     Config
	log     *zap.SugaredLogger
	session uuid.UUID

	state   atomic.Int32
	eventCh chan Event
}

// New validates cfg and returns an idle loop.
func New(cfg Config) (*Loop, error) {
	if cfg.Connect == nil {
		return nil, errors.New("control: Connect is required")
	}
	if cfg.NewEnv == nil {
		return nil, errors.New("control: NewEnv is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	id := uuid.New()
	return &Loop{
		cfg:     cfg,
		log:     cfg.Logger.With("session", id.String()),
		session: id,
		eventCh: make(chan Event, 1),
	}, nil
}

// Session returns the id written into the shard header.
func (l *Loop) Session() uuid.UUID { return l.session }

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Events returns a channel with the most recent event.
func (l *Loop) Events() <-chan Event { return l.eventCh }

// Run executes the session until MaxCycles, ctx cancellation or the first
// fault. Whatever the exit path, the last recorded transition is appended
// again as LAST before the environment, recorder and hardware are released.
// The first fault is the primary error; teardown failures are combined with
// it. Cancellation returns the context error.
func (l *Loop) Run(ctx context.Context) (err error) {
	if !l.state.CompareAndSwap(int32(Idle), int32(Connecting)) {
		return errors.Errorf("control: loop already %s", l.State())
	}
	l.transition(Connecting)

	s := &session{log: l.log, metrics: l.cfg.Metrics}
	defer func() {
		l.transition(Closed)
		l.cfg.Metrics.SessionDone(outcome(err))
		if err != nil {
			l.log.Warnf("session ended: %v", err)
		}
		l.emit(Event{State: Closed, Records: s.records(), Path: s.path(), Err: err})
	}()

	rig, err := l.cfg.Connect(ctx)
	if err != nil {
		l.transition(Finalizing)
		return l.cause(ctx, errors.Wrap(err, "connect"))
	}
	defer func() {
		err = multierr.Append(err, errors.Wrap(rig.Close(), "release hardware"))
	}()
	defer func() {
		l.transition(Finalizing)
		err = multierr.Append(err, s.teardown())
	}()

	l.transition(Resetting)
	ts, err := l.reset(ctx, rig, s)
	if err != nil {
		return l.cause(ctx, err)
	}

	l.transition(Running)
	l.log.Infof("recording to %s", s.rec.Path())
	for cycle := 1; l.cfg.MaxCycles <= 0 || cycle <= l.cfg.MaxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ts, err = l.cycle(ctx, rig, s, ts, cycle); err != nil {
			return l.cause(ctx, errors.Wrapf(err, "cycle %d", cycle))
		}
	}
	return nil
}

func (l *Loop) reset(ctx context.Context, rig *Rig, s *session) (trajectory.TimeStep, error) {
	pos, err := rig.Controller.InitialPosition(ctx)
	if err != nil {
		return trajectory.TimeStep{}, errors.Wrap(err, "initial position")
	}
	e, err := l.cfg.NewEnv(pos, rig.Target)
	if err != nil {
		return trajectory.TimeStep{}, errors.Wrap(err, "create environment")
	}
	s.env = e

	spec := trajectory.TransitionSpec(e.TimeStepSpec(), e.ActionSpec())
	if s.rec, err = l.openRecorder(spec); err != nil {
		return trajectory.TimeStep{}, err
	}

	l.log.Infof("resetting to (%.4f, %.4f)", pos.X, pos.Y)
	if err := e.ResetAsync(ctx, rig.Arm); err != nil {
		return trajectory.TimeStep{}, errors.Wrap(err, "reset")
	}
	ts, err := e.Reset()
	if err != nil {
		return trajectory.TimeStep{}, errors.Wrap(err, "reset")
	}
	return ts, nil
}

func (l *Loop) openRecorder(spec trajectory.Spec) (Recorder, error) {
	if l.cfg.NewRecorder != nil {
		return l.cfg.NewRecorder(spec)
	}
	if l.cfg.Dataset == "" {
		return trajectory.NewDiscard(spec), nil
	}
	path, err := trajectory.NextShardName(l.cfg.Dataset)
	if err != nil {
		return nil, err
	}
	return trajectory.Create(path, spec,
		trajectory.WithImageCompression(l.cfg.CompressImages),
		trajectory.WithSession(l.session),
	), nil
}

// cycle runs one act/step/record iteration and returns the next time step.
func (l *Loop) cycle(ctx context.Context, rig *Rig, s *session, ts trajectory.TimeStep, n int) (trajectory.TimeStep, error) {
	start := time.Now()

	action, err := rig.Controller.Act(ctx, ts)
	if err != nil {
		return ts, err
	}
	if err := s.env.StepAsync(ctx, rig.Arm, action); err != nil {
		return ts, err
	}
	next, err := s.env.Step()
	if err != nil {
		return ts, err
	}

	step := trajectory.FromTransition(ts, action, next)
	if err := s.rec.Append(step); err != nil {
		return ts, err
	}
	s.pending = &step
	l.cfg.Metrics.RecordAppended()
	l.cfg.Metrics.ObserveCycle(time.Since(start))

	l.emit(Event{
		State:   Running,
		Cycle:   n,
		Records: s.rec.Records(),
		Action:  action.Float,
		Reward:  next.Reward,
		Path:    s.rec.Path(),
	})
	return next, nil
}

// cause prefers the context error once ctx is done, so a cancelled hardware
// call reports cancellation rather than a transport error.
func (l *Loop) cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (l *Loop) transition(s State) {
	l.state.Store(int32(s))
	l.cfg.Metrics.SetState(int(s))
	l.log.Debugf("state %s", s)
	if s != Closed {
		l.emit(Event{State: s})
	}
}

func (l *Loop) emit(e Event) {
	e.Timestamp = time.Now()
	select {
	case l.eventCh <- e:
	default:
		// Drop old event if channel full, replace with new
		select {
		case <-l.eventCh:
		default:
		}
		select {
		case l.eventCh <- e:
		default:
		}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}

// session holds what a run acquires after the hardware.
type session struct {
	log     *zap.SugaredLogger
	metrics *metrics.Metrics

	env     env.Environment
	rec     Recorder
	pending *trajectory.Step
	done    bool
}

// finalize appends the LAST copy of the pending record, once.
func (s *session) finalize() error {
	if s.done || s.pending == nil || s.rec == nil || !s.rec.Writable() {
		return nil
	}
	s.done = true
	if err := s.rec.Append(s.pending.AsLast()); err != nil {
		return errors.Wrap(err, "finalize")
	}
	s.metrics.RecordAppended()
	s.metrics.Finalized()
	s.log.Infof("episode closed after %d records in %s", s.rec.Records(), s.rec.Path())
	return nil
}

func (s *session) teardown() error {
	err := s.finalize()
	if s.rec != nil {
		err = multierr.Append(err, errors.Wrap(s.rec.Close(), "close recorder"))
	}
	if s.env != nil {
		err = multierr.Append(err, errors.Wrap(s.env.Close(), "close environment"))
	}
	return err
}

func (s *session) records() int {
	if s.rec == nil {
		return 0
	}
	return s.rec.Records()
}

func (s *session) path() string {
	if s.rec == nil {
		return ""
	}
	return s.rec.Path()
}
