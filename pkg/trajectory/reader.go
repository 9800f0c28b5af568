package trajectory

import (
	"bufio"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Reader reads the steps of a shard in append order.
type Reader struct {
	path   string
	f      *os.File
	r      *bufio.Reader
	dec    *zstd.Decoder
	header Header
}

// Open opens a shard and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	r := &Reader{path: path, f: f, r: bufio.NewReader(f)}

	data, err := readFrame(r.r)
	if err != nil {
		f.Close()
		if err == io.EOF {
			err = errors.New("empty shard")
		}
		return nil, &IOError{Op: "read header", Path: path, Err: err}
	}
	if err := msgpack.Unmarshal(data, &r.header); err != nil {
		f.Close()
		return nil, &IOError{Op: "read header", Path: path, Err: err}
	}
	if r.header.Format != FormatVersion {
		f.Close()
		return nil, &IOError{Op: "read header", Path: path, Err: errors.Errorf("unsupported format %d", r.header.Format)}
	}
	return r, nil
}

// Header returns the shard header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next step, or io.EOF after the last one.
func (r *Reader) Next() (Step, error) {
	data, err := readFrame(r.r)
	if err == io.EOF {
		return Step{}, io.EOF
	}
	if err != nil {
		return Step{}, &IOError{Op: "read", Path: r.path, Err: err}
	}
	var step Step
	if err := msgpack.Unmarshal(data, &step); err != nil {
		return Step{}, &IOError{Op: "decode", Path: r.path, Err: err}
	}
	if err := r.decompress(step.Observation); err != nil {
		return Step{}, &IOError{Op: "decode", Path: r.path, Err: err}
	}
	return step, nil
}

func (r *Reader) decompress(obs map[string]Tensor) error {
	for _, t := range obs {
		if t.Codec == "" {
			continue
		}
		if r.dec == nil {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return err
			}
			r.dec = dec
		}
		return decompressImages(r.dec, obs)
	}
	return nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	return r.f.Close()
}

// ReadShard reads a whole shard into memory.
func ReadShard(path string) (Header, []Step, error) {
	r, err := Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer r.Close()

	var steps []Step
	for {
		step, err := r.Next()
		if err == io.EOF {
			return r.header, steps, nil
		}
		if err != nil {
			return r.header, steps, err
		}
		steps = append(steps, step)
	}
}
