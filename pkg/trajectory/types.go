// Package trajectory defines time steps and transitions, and stores them in
// append-only shard files.
package trajectory

import "fmt"

// StepType marks episode boundaries.
type StepType uint8

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "FIRST"
	case Mid:
		return "MID"
	case Last:
		return "LAST"
	default:
		return fmt.Sprintf("StepType(%d)", uint8(s))
	}
}

// DType is the element type of a Tensor.
type DType string

const (
	Float32 DType = "float32"
	Uint8   DType = "uint8"
)

// Tensor is a dense array. Float32 tensors keep their data in Float, Uint8
// tensors in Bytes.
type Tensor struct {
	DType DType     `msgpack:"dtype"`
	Shape []int     `msgpack:"shape"`
	Float []float32 `msgpack:"float,omitempty"`
	Bytes []byte    `msgpack:"bytes,omitempty"`
	// Codec names the compression applied to Bytes on disk. Empty in memory.
	Codec string `msgpack:"codec,omitempty"`
}

// Vector returns a rank-1 float32 tensor holding a copy of v.
func Vector(v ...float32) Tensor {
	data := make([]float32, len(v))
	copy(data, v)
	return Tensor{DType: Float32, Shape: []int{len(v)}, Float: data}
}

// Image returns an HWC uint8 tensor over pix.
func Image(height, width, channels int, pix []byte) Tensor {
	return Tensor{DType: Uint8, Shape: []int{height, width, channels}, Bytes: pix}
}

// Zeros returns a zero-filled tensor matching spec.
func Zeros(spec ArraySpec) Tensor {
	t := Tensor{DType: spec.DType, Shape: append([]int(nil), spec.Shape...)}
	switch spec.DType {
	case Uint8:
		t.Bytes = make([]byte, spec.Size())
	default:
		t.Float = make([]float32, spec.Size())
	}
	return t
}

// Len returns the number of stored elements.
func (t Tensor) Len() int {
	if t.DType == Uint8 {
		return len(t.Bytes)
	}
	return len(t.Float)
}

// IsImage reports whether t is an HWC uint8 image.
func (t Tensor) IsImage() bool {
	return t.DType == Uint8 && len(t.Shape) == 3
}

// Clone returns a deep copy of t.
func (t Tensor) Clone() Tensor {
	out := Tensor{DType: t.DType, Codec: t.Codec}
	out.Shape = append([]int(nil), t.Shape...)
	if t.Float != nil {
		out.Float = append([]float32(nil), t.Float...)
	}
	if t.Bytes != nil {
		out.Bytes = append([]byte(nil), t.Bytes...)
	}
	return out
}

// TimeStep is a snapshot of environment state at one cycle boundary.
type TimeStep struct {
	StepType    StepType          `msgpack:"step_type"`
	Index       int               `msgpack:"index"`
	Reward      float32           `msgpack:"reward"`
	Discount    float32           `msgpack:"discount"`
	Observation map[string]Tensor `msgpack:"observation"`
}

// Step is one recorded transition. Observation belongs to the previous time
// step; reward and discount come from the next one.
type Step struct {
	StepType     StepType          `msgpack:"step_type"`
	NextStepType StepType          `msgpack:"next_step_type"`
	Index        int               `msgpack:"index"`
	NextIndex    int               `msgpack:"next_index"`
	Observation  map[string]Tensor `msgpack:"observation"`
	Action       Tensor            `msgpack:"action"`
	Reward       float32           `msgpack:"reward"`
	Discount     float32           `msgpack:"discount"`
}

// FromTransition builds the record for moving from prev to next with action.
func FromTransition(prev TimeStep, action Tensor, next TimeStep) Step {
	return Step{
		StepType:     prev.StepType,
		NextStepType: next.StepType,
		Index:        prev.Index,
		NextIndex:    next.Index,
		Observation:  prev.Observation,
		Action:       action,
		Reward:       next.Reward,
		Discount:     next.Discount,
	}
}

// AsLast returns a copy of s that closes the episode.
func (s Step) AsLast() Step {
	s.StepType = Last
	return s
}
