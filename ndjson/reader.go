package ndjson

import (
	"errors"
	"io"

	"github.com/fastapicloud/buildlogs"
)

// DefaultChunkSize is the read size used when NewReader is given zero.
const DefaultChunkSize = 32 * 1024

// Reader pulls records out of an NDJSON byte stream. It performs one Read per
// refill and never reads ahead of the line it is about to return.
type Reader struct {
	r       io.Reader
	framer  *Framer
	buf     []byte
	pending []string
	eof     bool
	err     error
}

// NewReader returns a Reader that reads r in chunks of up to chunkSize bytes.
func NewReader(r io.Reader, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{
		r:      r,
		framer: NewFramer(),
		buf:    make([]byte, chunkSize),
	}
}

// Next returns the record decoded from the next non-blank line.
//
// It returns io.EOF once the input is exhausted, a *buildlogs.DecodeError for
// a line that is not a known record, and the underlying read error otherwise.
// Lines completed before a read error are returned before the error.
func (r *Reader) Next() (buildlogs.Record, error) {
	for {
		for len(r.pending) > 0 {
			line := r.pending[0]
			r.pending = r.pending[1:]
			if IsBlank(line) {
				continue
			}
			return Decode(line)
		}
		if r.err != nil {
			return nil, r.err
		}
		if r.eof {
			return nil, io.EOF
		}
		r.fill()
	}
}

// Buffered returns the number of bytes held for an unterminated line.
func (r *Reader) Buffered() int {
	return r.framer.Buffered()
}

func (r *Reader) fill() {
	n, err := r.r.Read(r.buf)
	if n > 0 {
		r.pending = append(r.pending, r.framer.Push(r.buf[:n])...)
	}
	switch {
	case errors.Is(err, io.EOF):
		r.eof = true
		if line, ok := r.framer.Flush(); ok {
			r.pending = append(r.pending, line)
		}
	case err != nil:
		r.err = err
	}
}
