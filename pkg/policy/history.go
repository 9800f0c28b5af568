package policy

import "github.com/gwillem/armrecord/pkg/trajectory"

// Observation is one time step's observation fields.
type Observation = map[string]trajectory.Tensor

// DefaultHistoryLength is the number of time steps a policy sees.
const DefaultHistoryLength = 2

// History is a fixed-length window of the most recent observations. The
// first observation of an episode fills every slot so the window is always
// full.
type History struct {
	buf []Observation
}

// NewHistory returns an empty history of length k.
func NewHistory(k int) *History {
	if k <= 0 {
		k = DefaultHistoryLength
	}
	return &History{buf: make([]Observation, k)}
}

// Len returns the window length.
func (h *History) Len() int { return len(h.buf) }

// Reset fills the window with obs.
func (h *History) Reset(obs Observation) {
	for i := range h.buf {
		h.buf[i] = obs
	}
}

// Push drops the oldest observation and appends obs.
func (h *History) Push(obs Observation) {
	copy(h.buf, h.buf[1:])
	h.buf[len(h.buf)-1] = obs
}

// Window returns the observations oldest first.
func (h *History) Window() []Observation {
	out := make([]Observation, len(h.buf))
	copy(out, h.buf)
	return out
}
