package trajectory

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// ErrSpecMismatch is wrapped by every shape or dtype check failure.
var ErrSpecMismatch = errors.New("spec mismatch")

// ArraySpec declares the dtype and shape of one field.
type ArraySpec struct {
	Name  string `msgpack:"name"`
	DType DType  `msgpack:"dtype"`
	Shape []int  `msgpack:"shape"`
}

// Size returns the number of elements described by the spec.
func (s ArraySpec) Size() int {
	n := 1
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

// Check verifies that t has exactly the declared dtype and shape.
func (s ArraySpec) Check(t Tensor) error {
	if t.DType != s.DType {
		return errors.Wrapf(ErrSpecMismatch, "%s: dtype %s, want %s", s.Name, t.DType, s.DType)
	}
	if !slices.Equal(t.Shape, s.Shape) {
		return errors.Wrapf(ErrSpecMismatch, "%s: shape %v, want %v", s.Name, t.Shape, s.Shape)
	}
	if t.Len() != s.Size() {
		return errors.Wrapf(ErrSpecMismatch, "%s: %d elements, want %d", s.Name, t.Len(), s.Size())
	}
	return nil
}

func (s ArraySpec) clone() ArraySpec {
	s.Shape = append([]int(nil), s.Shape...)
	return s
}

func (s ArraySpec) String() string {
	return fmt.Sprintf("%s %s%v", s.Name, s.DType, s.Shape)
}

// TimeStepSpec declares the observation fields of a time step. Step type,
// reward and discount are always scalars.
type TimeStepSpec struct {
	Observation []ArraySpec `msgpack:"observation"`
}

// Spec is the fixed record shape of a shard.
type Spec struct {
	Observation []ArraySpec `msgpack:"observation"`
	Action      ArraySpec   `msgpack:"action"`
}

// TransitionSpec derives the record shape from the environment's declared
// time step and action specs.
func TransitionSpec(ts TimeStepSpec, action ArraySpec) Spec {
	obs := make([]ArraySpec, len(ts.Observation))
	for i, o := range ts.Observation {
		obs[i] = o.clone()
	}
	return Spec{Observation: obs, Action: action.clone()}
}

// Check verifies that step matches the spec field by field.
func (s Spec) Check(step Step) error {
	if step.StepType > Last || step.NextStepType > Last {
		return errors.Wrapf(ErrSpecMismatch, "invalid step type %s -> %s", step.StepType, step.NextStepType)
	}
	if len(step.Observation) != len(s.Observation) {
		return errors.Wrapf(ErrSpecMismatch, "%d observation fields, want %d", len(step.Observation), len(s.Observation))
	}
	for _, o := range s.Observation {
		t, ok := step.Observation[o.Name]
		if !ok {
			return errors.Wrapf(ErrSpecMismatch, "missing observation %s", o.Name)
		}
		if err := o.Check(t); err != nil {
			return err
		}
	}
	return s.Action.Check(step.Action)
}
