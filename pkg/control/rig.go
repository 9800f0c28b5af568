package control

import (
	"io"

	"go.uber.org/multierr"

	"github.com/gwillem/armrecord/pkg/env"
)

// Rig is the hardware a session owns exclusively: the arm the environment
// drives, the shared target, the action source, and everything that must be
// released when the session ends.
type Rig struct {
	Arm        env.Hardware
	Target     *env.Target
	Controller Controller
	// Closers are released in reverse order.
	Closers []io.Closer
}

// Close releases the rig's resources, last acquired first.
func (r *Rig) Close() error {
	var err error
	for i := len(r.Closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.Closers[i].Close())
	}
	r.Closers = nil
	return err
}
