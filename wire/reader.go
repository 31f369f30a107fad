package wire

import (
	"bufio"
	"io"
)

// LineReader reads newline-terminated lines from a buffered reader.
//
// When the underlying connection returns an error mid-line (typically a read
// deadline), the bytes read so far are kept and prepended to the next call, so
// a timeout never tears a line in two.
//
// A LineReader is not safe for concurrent use.
type LineReader struct {
	r       *bufio.Reader
	pending []byte
}

// NewLineReader returns a LineReader reading from r.
func NewLineReader(r io.Reader) *LineReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &LineReader{r: br}
}

// ReadLine returns the next line without its terminating "\n".
//
// Errors from the underlying reader are returned as-is: io.EOF when the peer
// closed the stream, or a net.Error on deadline expiry. A partial line
// preceding io.EOF is discarded.
func (lr *LineReader) ReadLine() (string, error) {
	for {
		// ReadSlice avoids an allocation for lines that fit in the buffer
		chunk, err := lr.r.ReadSlice('\n')
		switch err {
		case nil:
			chunk = chunk[:len(chunk)-1]
			if len(lr.pending) == 0 {
				return string(chunk), nil
			}
			line := string(append(lr.pending, chunk...))
			lr.pending = lr.pending[:0]
			return line, nil
		case bufio.ErrBufferFull:
			lr.pending = append(lr.pending, chunk...)
		case io.EOF:
			lr.pending = lr.pending[:0]
			return "", io.EOF
		default:
			lr.pending = append(lr.pending, chunk...)
			return "", err
		}
	}
}

// Buffered reports whether a partial line is being held.
func (lr *LineReader) Buffered() bool {
	return len(lr.pending) > 0
}
