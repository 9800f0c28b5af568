package env

import (
	"sync/atomic"

	"github.com/golang/geo/r2"
)

// Target is the end-effector target shared between the environment, which
// replaces it, and controllers, which read it once per cycle. Values are only
// ever swapped whole.
type Target struct {
	p atomic.Pointer[r2.Point]
}

// Load returns the current target and whether one is set.
func (t *Target) Load() (r2.Point, bool) {
	p := t.p.Load()
	if p == nil {
		return r2.Point{}, false
	}
	return *p, true
}

// Store replaces the target.
func (t *Target) Store(p r2.Point) {
	t.p.Store(&p)
}

// Clear unsets the target.
func (t *Target) Clear() {
	t.p.Store(nil)
}
