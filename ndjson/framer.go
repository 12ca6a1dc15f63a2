// Package ndjson frames and decodes newline-delimited JSON build log streams.
package ndjson

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Framer turns successive byte chunks into complete text lines. A line that
// is not yet terminated by '\n' is kept until a later chunk completes it or
// Flush is called.
//
// Splitting happens on the raw '\n' byte, which never occurs inside a
// multi-byte UTF-8 sequence, so a chunk ending mid-codepoint is simply held
// in the buffer. Complete lines are decoded as UTF-8 with invalid sequences
// replaced by U+FFFD; a byte order mark at the very start of the stream is
// dropped.
type Framer struct {
	buf     []byte
	started bool
	dec     *encoding.Decoder
	bomDec  *encoding.Decoder
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{
		dec:    unicode.UTF8.NewDecoder(),
		bomDec: unicode.UTF8BOM.NewDecoder(),
	}
}

// Push appends chunk and returns every line it completed, in order, without
// their trailing '\n'. Blank lines are returned as well; see IsBlank.
func (f *Framer) Push(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(f.buf[start:], '\n')
		if i < 0 {
			break
		}
		lines = append(lines, f.decode(f.buf[start:start+i]))
		start += i + 1
	}
	if start > 0 {
		f.buf = append(f.buf[:0], f.buf[start:]...)
	}
	return lines
}

// Flush returns the unterminated remainder at end of stream, if it holds
// anything other than whitespace, and resets the buffer.
func (f *Framer) Flush() (string, bool) {
	if len(f.buf) == 0 {
		return "", false
	}
	line := f.decode(f.buf)
	f.buf = f.buf[:0]
	if IsBlank(line) {
		return "", false
	}
	return line, true
}

// Buffered returns the number of bytes held for an unterminated line.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

func (f *Framer) decode(b []byte) string {
	dec := f.dec
	if !f.started {
		f.started = true
		dec = f.bomDec
	}
	out, err := dec.Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}

// IsBlank reports whether line holds only whitespace. Blank lines never
// produce records and never end a stream.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
