package wire

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Buffer pool for building requests
var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 128))
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	// Oversized buffers from bulk writes are left to the GC
	if buf.Cap() > 64<<10 {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// NormalizeName maps underscores to hyphens, so "sys_reset" and "sys-reset"
// name the same request. A leading '?' is stripped.
func NormalizeName(name string) string {
	name = strings.TrimPrefix(name, string(RequestPrefix))
	return strings.ReplaceAll(name, "_", "-")
}

// ValidateName checks that a normalized request name can be sent unescaped.
func ValidateName(name string) error {
	if name == "" {
		return &InvalidNameError{Name: name, Message: "name is empty"}
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c == 0x7f || c == escapeChar {
			return &InvalidNameError{Name: name, Message: "name contains whitespace, control or escape characters"}
		}
	}
	return nil
}

// EncodeRequest returns the wire form of a request, including the trailing newline.
// The name is normalized and validated; every argument is escaped.
func EncodeRequest(name string, args ...string) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := writeRequest(buf, name, args); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// WriteRequest serializes a request to w as a single write.
// Format: ?<name> [<escaped arg>]*\n
func WriteRequest(w io.Writer, name string, args ...string) error {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := writeRequest(buf, name, args); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func writeRequest(buf *bytes.Buffer, name string, args []string) error {
	name = NormalizeName(name)
	if err := ValidateName(name); err != nil {
		return err
	}

	buf.WriteByte(RequestPrefix)
	buf.WriteString(name)
	for _, arg := range args {
		buf.WriteByte(space)
		buf.WriteString(Escape(arg))
	}
	buf.WriteByte('\n')
	return nil
}
