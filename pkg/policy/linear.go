package policy

import (
	"context"
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/gwillem/armrecord/pkg/trajectory"
)

// Policy maps an observation window to an action.
type Policy interface {
	Action(ctx context.Context, window []Observation) (trajectory.Tensor, error)
}

// Model is the persisted form of a Linear policy.
type Model struct {
	ObservationKeys []string    `json:"observation_keys"`
	HistoryLength   int         `json:"history_length"`
	ActionSize      int         `json:"action_size"`
	Weights         [][]float64 `json:"weights"` // action_size rows
	Bias            []float64   `json:"bias"`
	Clip            float64     `json:"clip,omitempty"`
}

// Checkpoint overrides trained parameters of a Model. Unset fields keep the
// model's values.
type Checkpoint struct {
	Step    int         `json:"step,omitempty"`
	Weights [][]float64 `json:"weights,omitempty"`
	Bias    []float64   `json:"bias,omitempty"`
	Clip    *float64    `json:"clip,omitempty"`
}

// Linear computes action = clip(W·x + b) where x concatenates the window's
// observation fields in key order, oldest step first. Image bytes are scaled
// to [0, 1].
type Linear struct {
	keys    []string
	history int
	w       *mat.Dense
	b       *mat.VecDense
	clip    float64
}

// Load reads a model artifact and applies the checkpoint overlay, if any.
func Load(modelPath, checkpointPath string) (*Linear, error) {
	var m Model
	if err := readJSON(modelPath, &m); err != nil {
		return nil, errors.Wrap(err, "load model")
	}
	if checkpointPath != "" {
		var ck Checkpoint
		if err := readJSON(checkpointPath, &ck); err != nil {
			return nil, errors.Wrap(err, "load checkpoint")
		}
		m.Apply(ck)
	}
	return NewLinear(m)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal(data, v), "parse %s", path)
}

// Apply overlays ck onto m.
func (m *Model) Apply(ck Checkpoint) {
	if ck.Weights != nil {
		m.Weights = ck.Weights
	}
	if ck.Bias != nil {
		m.Bias = ck.Bias
	}
	if ck.Clip != nil {
		m.Clip = *ck.Clip
	}
}

// NewLinear validates m and builds the policy.
func NewLinear(m Model) (*Linear, error) {
	if len(m.ObservationKeys) == 0 {
		return nil, errors.New("policy: no observation keys")
	}
	if m.HistoryLength <= 0 {
		m.HistoryLength = DefaultHistoryLength
	}
	if m.ActionSize <= 0 || len(m.Weights) != m.ActionSize {
		return nil, errors.Errorf("policy: %d weight rows, action size %d", len(m.Weights), m.ActionSize)
	}
	cols := len(m.Weights[0])
	if cols == 0 {
		return nil, errors.New("policy: empty weight rows")
	}
	flat := make([]float64, 0, m.ActionSize*cols)
	for i, row := range m.Weights {
		if len(row) != cols {
			return nil, errors.Errorf("policy: weight row %d has %d columns, want %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	bias := make([]float64, m.ActionSize)
	if m.Bias != nil {
		if len(m.Bias) != m.ActionSize {
			return nil, errors.Errorf("policy: bias has %d entries, want %d", len(m.Bias), m.ActionSize)
		}
		copy(bias, m.Bias)
	}
	return &Linear{
		keys:    m.ObservationKeys,
		history: m.HistoryLength,
		w:       mat.NewDense(m.ActionSize, cols, flat),
		b:       mat.NewVecDense(m.ActionSize, bias),
		clip:    m.Clip,
	}, nil
}

// HistoryLength returns the window length the model was trained with.
func (l *Linear) HistoryLength() int { return l.history }

// Action implements Policy.
func (l *Linear) Action(_ context.Context, window []Observation) (trajectory.Tensor, error) {
	if len(window) != l.history {
		return trajectory.Tensor{}, errors.Errorf("policy: window of %d steps, want %d", len(window), l.history)
	}
	x, err := l.features(window)
	if err != nil {
		return trajectory.Tensor{}, err
	}
	_, cols := l.w.Dims()
	if len(x) != cols {
		return trajectory.Tensor{}, errors.Errorf("policy: %d input features, model expects %d", len(x), cols)
	}

	var y mat.VecDense
	y.MulVec(l.w, mat.NewVecDense(len(x), x))
	y.AddVec(&y, l.b)

	out := make([]float32, y.Len())
	for i := range out {
		v := y.AtVec(i)
		if l.clip > 0 {
			v = math.Max(-l.clip, math.Min(l.clip, v))
		}
		out[i] = float32(v)
	}
	return trajectory.Vector(out...), nil
}

func (l *Linear) features(window []Observation) ([]float64, error) {
	var x []float64
	for _, obs := range window {
		for _, key := range l.keys {
			t, ok := obs[key]
			if !ok {
				return nil, errors.Errorf("policy: observation %q missing", key)
			}
			switch t.DType {
			case trajectory.Uint8:
				for _, v := range t.Bytes {
					x = append(x, float64(v)/255)
				}
			default:
				for _, v := range t.Float {
					x = append(x, float64(v))
				}
			}
		}
	}
	return x, nil
}
