// Package codec implements the binary batch format used to move replicated
// states between peers.
//
// A batch is an unsigned LEB128 element count followed by fixed 52 byte
// little-endian records:
//
//	id       uint32
//	position 3 x float32
//	rotation 4 x float32 (x, y, z, w)
//	scale    3 x float32
//	type     uint32
//	flag     uint32
//
// The layout carries no version; peers agree on it out of band.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/state"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/pkg/encoding"
)

// RecordSize is the encoded size of a single state.
const RecordSize = 4 + 3*4 + 4*4 + 3*4 + 4 + 4

// maxPrealloc bounds the slice capacity reserved from an untrusted count.
const maxPrealloc = 1024

var (
	ErrMalformedBatch = errors.New("malformed state batch")
)

// Encode writes states to w. The input slice is not modified.
func Encode(w io.Writer, states []state.State) error {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(states)*RecordSize)
	buf = AppendBatch(buf, states)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write state batch: %w", err)
	}
	return nil
}

// AppendBatch appends the encoding of states to dst.
func AppendBatch(dst []byte, states []state.State) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(states)))
	for i := range states {
		dst = appendRecord(dst, &states[i])
	}
	return dst
}

func appendRecord(dst []byte, s *state.State) []byte {
	le := binary.LittleEndian
	dst = le.AppendUint32(dst, uint32(s.ID))
	dst = appendVector(dst, s.Position)
	dst = le.AppendUint32(dst, math.Float32bits(s.Rotation.X))
	dst = le.AppendUint32(dst, math.Float32bits(s.Rotation.Y))
	dst = le.AppendUint32(dst, math.Float32bits(s.Rotation.Z))
	dst = le.AppendUint32(dst, math.Float32bits(s.Rotation.W))
	dst = appendVector(dst, s.Scale)
	dst = le.AppendUint32(dst, uint32(s.Type))
	dst = le.AppendUint32(dst, s.Flag)
	return dst
}

func appendVector(dst []byte, v state.Vector3) []byte {
	le := binary.LittleEndian
	dst = le.AppendUint32(dst, math.Float32bits(v.X))
	dst = le.AppendUint32(dst, math.Float32bits(v.Y))
	dst = le.AppendUint32(dst, math.Float32bits(v.Z))
	return dst
}

// Decode reads one batch from r. It consumes exactly the bytes of the batch.
// Short or invalid input yields an error wrapping ErrMalformedBatch and no
// states.
func Decode(r io.Reader) ([]state.State, error) {
	count, err := binary.ReadUvarint(byteReader(r))
	if err != nil {
		return nil, fmt.Errorf("%w: read count: %w", ErrMalformedBatch, err)
	}
	if count > math.MaxUint32 {
		return nil, fmt.Errorf("%w: count %d out of range", ErrMalformedBatch, count)
	}

	states := make([]state.State, 0, min(count, maxPrealloc))
	var record [RecordSize]byte
	for i := uint64(0); i < count; i++ {
		if _, err = io.ReadFull(r, record[:]); err != nil {
			return nil, fmt.Errorf("%w: record %d of %d: %w", ErrMalformedBatch, i, count, err)
		}
		states = append(states, readRecord(record[:]))
	}
	return states, nil
}

func readRecord(b []byte) state.State {
	le := binary.LittleEndian
	f := func(off int) float32 { return math.Float32frombits(le.Uint32(b[off:])) }
	return state.State{
		ID:       state.ID(le.Uint32(b[0:])),
		Position: state.Vector3{X: f(4), Y: f(8), Z: f(12)},
		Rotation: state.Quaternion{X: f(16), Y: f(20), Z: f(24), W: f(28)},
		Scale:    state.Vector3{X: f(32), Y: f(36), Z: f(40)},
		Type:     state.ObjectType(le.Uint32(b[44:])),
		Flag:     le.Uint32(b[48:]),
	}
}

// Marshal returns the encoding of states.
func Marshal(states []state.State) []byte {
	return AppendBatch(make([]byte, 0, binary.MaxVarintLen64+len(states)*RecordSize), states)
}

// Unmarshal decodes a batch held in data. Bytes after the batch are ignored.
func Unmarshal(data []byte) ([]state.State, error) {
	return Decode(bytes.NewReader(data))
}

var _ encoding.Serializable = (*Batch)(nil)

// Batch is an ordered collection of states sent as one message.
type Batch []state.State

func (b *Batch) Serialize() ([]byte, error) {
	return Marshal(*b), nil
}

func (b *Batch) Deserialize(data []byte) error {
	states, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*b = states
	return nil
}

// byteReader adapts r for varint decoding without reading past the count.
func byteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return &singleByteReader{r: r}
}

type singleByteReader struct {
	r   io.Reader
	buf [1]byte
}

func (s *singleByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		return 0, err
	}
	return s.buf[0], nil
}
