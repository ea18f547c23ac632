// Package frame delimits batches on byte streams with an unsigned varint
// length prefix. Zero-length frames carry nothing and are skipped by Read.
package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/transport"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/pkg/generic"
)

// maxPooledBuffer keeps one oversized batch from pinning memory in the pool.
const maxPooledBuffer = 64 << 10

var buffers = generic.NewPool(func() *[]byte {
	buf := make([]byte, 0, 4096)
	return &buf
}, func(buf *[]byte) *[]byte {
	if cap(*buf) > maxPooledBuffer {
		fresh := make([]byte, 0, 4096)
		return &fresh
	}
	*buf = (*buf)[:0]
	return buf
})

// Write sends payload as one frame with a single Write call.
func Write(w io.Writer, payload []byte) error {
	buf := buffers.Get()
	defer buffers.Put(buf)

	*buf = binary.AppendUvarint(*buf, uint64(len(payload)))
	*buf = append(*buf, payload...)
	_, err := w.Write(*buf)
	return err
}

// Reader reads frames from a stream.
type Reader struct {
	r       *bufio.Reader
	maxSize int
}

func NewReader(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = transport.DefaultMaxBatchSize
	}
	return &Reader{r: bufio.NewReader(r), maxSize: maxSize}
}

// Next returns the payload of the next non-empty frame.
func (fr *Reader) Next() ([]byte, error) {
	for {
		size, err := binary.ReadUvarint(fr.r)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			continue
		}
		if size > uint64(fr.maxSize) {
			return nil, fmt.Errorf("%w: %d > %d", transport.ErrFrameTooLarge, size, fr.maxSize)
		}

		payload := make([]byte, size)
		if _, err = io.ReadFull(fr.r, payload); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		return payload, nil
	}
}
