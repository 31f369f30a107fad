package katcp

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/pior/katcp/wire"
)

// Message is the ordered set of lines received for one request: zero or more
// informs carrying the request's name, followed by exactly one reply.
//
// A Message owns its lines. Every accessor returns copies, so callers can
// never mutate a message through a returned slice.
type Message struct {
	lines []wire.Line
}

// NewMessage returns a message built from lines, as if appended in order.
func NewMessage(lines ...wire.Line) (*Message, error) {
	m := &Message{}
	for _, l := range lines {
		if err := m.Append(l); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Append adds a copy of line. Appending anything after the reply line
// returns ErrMessageComplete.
func (m *Message) Append(line wire.Line) error {
	if m.Complete() {
		return fmt.Errorf("%w: cannot append %q after %q", ErrMessageComplete, line.String(), m.lines[len(m.lines)-1].String())
	}
	m.lines = append(m.lines, line.Clone())
	return nil
}

// Len returns the number of lines.
func (m *Message) Len() int {
	return len(m.lines)
}

// Lines returns a deep copy of all lines in receive order.
func (m *Message) Lines() []wire.Line {
	return cloneLines(m.lines)
}

// Complete returns true once the reply line has been appended.
func (m *Message) Complete() bool {
	return len(m.lines) > 0 && m.lines[len(m.lines)-1].Kind() == wire.KindReply
}

// Reply returns a copy of the reply line, or nil if the message is incomplete.
func (m *Message) Reply() wire.Line {
	if !m.Complete() {
		return nil
	}
	return m.lines[len(m.lines)-1].Clone()
}

// Informs returns a copy of every line before the reply.
func (m *Message) Informs() []wire.Line {
	return cloneLines(m.informs())
}

func (m *Message) informs() []wire.Line {
	if m.Complete() {
		return m.lines[:len(m.lines)-1]
	}
	return m.lines
}

// Status returns the status word of the reply ("ok" or an error name),
// or StatusIncomplete if no reply has been received.
func (m *Message) Status() string {
	if !m.Complete() {
		return StatusIncomplete
	}
	reply := m.lines[len(m.lines)-1]
	if len(reply) < 2 {
		return ""
	}
	return reply[1]
}

// OK returns true if the message is complete and its status is "ok".
func (m *Message) OK() bool {
	return m.Complete() && m.Status() == StatusOK
}

// Payload returns the reply words after the status, joined by single spaces.
// It returns "" for incomplete messages and replies without payload.
func (m *Message) Payload() string {
	if !m.Complete() {
		return ""
	}
	reply := m.lines[len(m.lines)-1]
	if len(reply) < 3 {
		return ""
	}
	return strings.Join(reply[2:], " ")
}

// Arguments returns a copy of the reply words after the status.
func (m *Message) Arguments() []string {
	if !m.Complete() {
		return nil
	}
	reply := m.lines[len(m.lines)-1]
	if len(reply) < 3 {
		return nil
	}
	return slices.Clone(reply[2:])
}

// ReqName returns the request name carried by the reply line,
// or "" if the message is incomplete.
func (m *Message) ReqName() string {
	if !m.Complete() {
		return ""
	}
	return m.lines[len(m.lines)-1].Name()
}

// SortInforms stable-sorts every line except a trailing reply, comparing
// lines word by word. Sorting twice gives the same result.
func (m *Message) SortInforms() {
	slices.SortStableFunc(m.informs(), compareLines)
}

// Sorted returns a copy of m with its informs sorted. m is unchanged.
func (m *Message) Sorted() *Message {
	c := &Message{lines: cloneLines(m.lines)}
	c.SortInforms()
	return c
}

// String renders the message: words joined by spaces, lines by newlines.
func (m *Message) String() string {
	rendered := make([]string, len(m.lines))
	for i, l := range m.lines {
		rendered[i] = l.String()
	}
	return strings.Join(rendered, "\n")
}

// Table renders the message as a text table with one row per line.
func (m *Message) Table() string {
	buf := bytes.NewBufferString("")
	tw := tablewriter.NewWriter(buf)
	tw.SetAutoWrapText(false)
	tw.SetHeader([]string{"Kind", "Name", "Arguments"})

	for _, l := range m.lines {
		tw.Append([]string{
			l.Kind().String(),
			l.Name(),
			sanitize(strings.Join(l.Args(), " ")),
		})
	}
	tw.Render()
	return buf.String()
}

// sanitize renders control characters readable in a table cell
func sanitize(s string) string {
	return strings.NewReplacer("\r", `\r`, "\n", `\n`, "\t", `\t`).Replace(s)
}

func compareLines(a, b wire.Line) int {
	return slices.Compare(a, b)
}

func cloneLines(lines []wire.Line) []wire.Line {
	if lines == nil {
		return nil
	}
	c := make([]wire.Line, len(lines))
	for i, l := range lines {
		c[i] = l.Clone()
	}
	return c
}
