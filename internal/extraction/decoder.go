package extraction

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	defaultChunkSize = 4096

	// MaxRecordSize bounds how much unterminated data the decoder will hold.
	MaxRecordSize = 8 << 20
)

var ErrRecordTooLarge = fmt.Errorf("record exceeds %d bytes without a newline", MaxRecordSize)

// Decoder splits a stream of arbitrarily sized fragments into newline-terminated
// records. A record is only emitted once its newline has been seen; bytes after the
// last newline are carried into the next fragment. Blank lines are skipped and a
// trailing "\r" is dropped. At end of stream an unterminated residue is discarded,
// never emitted.
//
// bufio.Scanner is not used because it emits the unterminated final token at EOF.
type Decoder struct {
	r       io.Reader
	chunk   []byte
	buf     []byte
	pending [][]byte
	err     error

	discarded int
}

// NewDecoder reads fragments from r. A nil r is allowed when only Feed is used.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, chunk: make([]byte, defaultChunkSize)}
}

// Feed appends one fragment and returns the records it completes, in order.
// The returned slices are owned by the caller.
func (d *Decoder) Feed(fragment []byte) [][]byte {
	d.buf = append(d.buf, fragment...)

	var out [][]byte
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(d.buf[start:start+i], []byte{'\r'})
		if len(bytes.TrimSpace(line)) > 0 {
			out = append(out, append([]byte(nil), line...))
		}
		start += i + 1
	}
	d.buf = d.buf[:copy(d.buf, d.buf[start:])]
	return out
}

// Residual returns the bytes held after the last newline.
func (d *Decoder) Residual() []byte {
	return d.buf
}

// Discarded reports how many unterminated bytes were dropped at end of stream.
func (d *Decoder) Discarded() int {
	return d.discarded
}

// Next returns the next complete record. It returns io.EOF once the stream has
// ended and every terminated record has been returned; any other error comes from
// the underlying reader.
func (d *Decoder) Next() ([]byte, error) {
	for len(d.pending) == 0 {
		if d.err != nil {
			return nil, d.err
		}
		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.pending = append(d.pending, d.Feed(d.chunk[:n])...)
			if len(d.buf) > MaxRecordSize {
				d.err = ErrRecordTooLarge
				d.buf = nil
			}
		}
		if err != nil && d.err == nil {
			d.err = err
			if errors.Is(err, io.EOF) {
				d.err = io.EOF
				d.discarded = len(d.buf)
				d.buf = nil
			}
		}
	}

	rec := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	return rec, nil
}
