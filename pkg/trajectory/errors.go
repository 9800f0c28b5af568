package trajectory

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotWritable is returned by appends to a closed or failed shard.
var ErrNotWritable = errors.New("shard not writable")

// IOError reports a failure to name, create, append to or read a shard.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("shard %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
