package trajectory

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// FormatVersion is written into every shard header.
const FormatVersion = 1

// Header is the first frame of every shard.
type Header struct {
	Format         int       `msgpack:"format"`
	Session        string    `msgpack:"session"`
	Created        time.Time `msgpack:"created"`
	CompressImages bool      `msgpack:"compress_images"`
	Spec           Spec      `msgpack:"spec"`
}

// Option configures a Writer.
type Option func(*Writer)

// WithImageCompression toggles zstd compression of image observations.
// Compression is on by default.
func WithImageCompression(on bool) Option {
	return func(w *Writer) { w.compress = on }
}

// WithSession stamps the shard header with a session id.
func WithSession(id uuid.UUID) Option {
	return func(w *Writer) { w.session = id }
}

// Writer appends steps to one shard file. The file is created on the first
// append, so a session that never produces a step leaves no file behind.
type Writer struct {
	path     string
	spec     Spec
	compress bool
	session  uuid.UUID
	nowFn    func() time.Time

	mu      sync.Mutex
	f       *os.File
	enc     *zstd.Encoder
	records int
	failed  bool
	closed  bool
}

// Create prepares a shard writer at path. The spec is fixed for the life of
// the shard.
func Create(path string, spec Spec, opts ...Option) *Writer {
	w := &Writer{
		path:     path,
		spec:     TransitionSpec(TimeStepSpec{Observation: spec.Observation}, spec.Action),
		compress: true,
		session:  uuid.New(),
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the shard file path.
func (w *Writer) Path() string { return w.path }

// Spec returns the record shape of the shard.
func (w *Writer) Spec() Spec { return w.spec }

// Records returns the number of steps appended so far.
func (w *Writer) Records() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Writable reports whether further appends can succeed.
func (w *Writer) Writable() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.failed && !w.closed
}

// Append writes one step. A step that does not match the spec is rejected
// without touching the file. Any write failure leaves the shard unwritable.
func (w *Writer) Append(step Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failed || w.closed {
		return &IOError{Op: "append", Path: w.path, Err: ErrNotWritable}
	}
	if err := w.spec.Check(step); err != nil {
		return &IOError{Op: "append", Path: w.path, Err: err}
	}

	if w.compress {
		if w.enc == nil {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
			if err != nil {
				return &IOError{Op: "append", Path: w.path, Err: err}
			}
			w.enc = enc
		}
		step.Observation = compressImages(w.enc, step.Observation)
	}
	payload, err := marshal(step)
	if err != nil {
		return &IOError{Op: "append", Path: w.path, Err: err}
	}

	var buf bytes.Buffer
	if w.f == nil {
		if err := w.open(); err != nil {
			w.failed = true
			return &IOError{Op: "create", Path: w.path, Err: err}
		}
		hdr, err := marshal(Header{
			Format:         FormatVersion,
			Session:        w.session.String(),
			Created:        w.nowFn().UTC(),
			CompressImages: w.compress,
			Spec:           w.spec,
		})
		if err != nil {
			w.failed = true
			return &IOError{Op: "create", Path: w.path, Err: err}
		}
		appendFrame(&buf, hdr)
	}

	appendFrame(&buf, payload)

	if _, err := w.f.Write(buf.Bytes()); err != nil {
		w.failed = true
		return &IOError{Op: "append", Path: w.path, Err: err}
	}
	w.records++
	return nil
}

func (w *Writer) open() error {
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	return nil
}

// Close syncs and closes the shard file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.enc != nil {
		w.enc.Close()
	}
	if w.f == nil {
		return nil
	}
	syncErr := w.f.Sync()
	if err := w.f.Close(); err != nil {
		return &IOError{Op: "close", Path: w.path, Err: err}
	}
	if syncErr != nil {
		return &IOError{Op: "sync", Path: w.path, Err: syncErr}
	}
	return nil
}

// Discard checks steps against the spec and drops them. It stands in for a
// shard when a session runs without a dataset.
type Discard struct {
	spec    Spec
	records int
}

// NewDiscard returns a recorder that keeps nothing.
func NewDiscard(spec Spec) *Discard { return &Discard{spec: spec} }

func (d *Discard) Path() string { return "" }

func (d *Discard) Append(step Step) error {
	if err := d.spec.Check(step); err != nil {
		return &IOError{Op: "append", Err: err}
	}
	d.records++
	return nil
}

func (d *Discard) Records() int { return d.records }

func (d *Discard) Writable() bool { return true }

func (d *Discard) Close() error { return nil }
