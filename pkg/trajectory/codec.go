package trajectory

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const codecZstd = "zstd"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorrupt is returned when a frame fails its checksum.
var ErrCorrupt = errors.New("corrupt frame")

// Frames are laid out as
//
//	uint64 length | uint32 crc(length) | payload | uint32 crc(payload)
//
// all little endian.
func appendFrame(buf *bytes.Buffer, payload []byte) {
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(hdr[8:], crc32.Checksum(hdr[:8], castagnoli))
	buf.Write(hdr[:])
	buf.Write(payload)
	var tail [4]byte
	binary.LittleEndian.PutUint32(tail[:], crc32.Checksum(payload, castagnoli))
	buf.Write(tail[:])
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrap(ErrCorrupt, "truncated header")
		}
		return nil, err
	}
	if crc32.Checksum(hdr[:8], castagnoli) != binary.LittleEndian.Uint32(hdr[8:]) {
		return nil, errors.Wrap(ErrCorrupt, "length checksum")
	}
	n := binary.LittleEndian.Uint64(hdr[:8])
	payload := make([]byte, n+4)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "truncated payload")
	}
	data, tail := payload[:n], payload[n:]
	if crc32.Checksum(data, castagnoli) != binary.LittleEndian.Uint32(tail) {
		return nil, errors.Wrap(ErrCorrupt, "payload checksum")
	}
	return data, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// compressImages returns a copy of obs with image tensors zstd-compressed.
// Non-image tensors are shared, not copied.
func compressImages(enc *zstd.Encoder, obs map[string]Tensor) map[string]Tensor {
	out := make(map[string]Tensor, len(obs))
	for name, t := range obs {
		if t.IsImage() && t.Codec == "" {
			c := t
			c.Bytes = enc.EncodeAll(t.Bytes, nil)
			c.Codec = codecZstd
			t = c
		}
		out[name] = t
	}
	return out
}

func decompressImages(dec *zstd.Decoder, obs map[string]Tensor) error {
	for name, t := range obs {
		switch t.Codec {
		case "":
			continue
		case codecZstd:
			raw, err := dec.DecodeAll(t.Bytes, nil)
			if err != nil {
				return errors.Wrapf(err, "decompress %s", name)
			}
			t.Bytes, t.Codec = raw, ""
			obs[name] = t
		default:
			return errors.Errorf("%s: unknown codec %q", name, t.Codec)
		}
	}
	return nil
}
