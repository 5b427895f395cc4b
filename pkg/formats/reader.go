package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Faultbox/geomcache/pkg/encoding"
)

// binReader reads little-endian values and keeps the first error, so parsers
// can read a whole record and check once.
type binReader struct {
	r         *bytes.Reader
	err       error
	truncated error // returned on short reads
}

func newBinReader(data []byte, truncated error) *binReader {
	return &binReader{r: bytes.NewReader(data), truncated: truncated}
}

func (r *binReader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.err = r.truncated
	}
}

// count reads a uint32 element count bounded by limit.
func (r *binReader) count(limit uint32, invalid error) uint32 {
	var n uint32
	r.read(&n)
	if r.err == nil && n > limit {
		r.err = fmt.Errorf("%w: %d > %d", invalid, n, limit)
	}
	return n
}

// count32 reads an int32 element count bounded by [0, limit].
func (r *binReader) count32(limit int32, invalid error) int32 {
	var n int32
	r.read(&n)
	if r.err == nil && (n < 0 || n > limit) {
		r.err = fmt.Errorf("%w: %d", invalid, n)
	}
	return n
}

func (r *binReader) bytes(n uint32) []byte {
	if r.err != nil {
		return nil
	}
	if int64(n) > int64(r.r.Len()) {
		r.err = r.truncated
		return nil
	}
	buf := make([]byte, n)
	io.ReadFull(r.r, buf)
	return buf
}

func (r *binReader) skip(n int64) {
	if r.err != nil {
		return
	}
	if n > int64(r.r.Len()) {
		r.err = r.truncated
		return
	}
	r.r.Seek(n, io.SeekCurrent)
}

// string16 reads a uint16 length-prefixed UTF-8 string.
func (r *binReader) string16() string {
	var n uint16
	r.read(&n)
	return string(r.bytes(uint32(n)))
}

// fixedString reads a fixed-size, null-padded EUC-KR string.
func (r *binReader) fixedString(size uint32) string {
	buf := r.bytes(size)
	if buf == nil {
		return ""
	}
	return encoding.FixedStringToUTF8(buf)
}

func (r *binReader) remaining() int {
	return r.r.Len()
}
