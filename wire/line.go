package wire

import "strings"

// Kind classifies a line by the first character of its first word.
type Kind int

const (
	KindMalformed Kind = iota
	KindRequest
	KindReply
	KindInform
	KindSentinel
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindReply:
		return "reply"
	case KindInform:
		return "inform"
	case KindSentinel:
		return "sentinel"
	default:
		return "malformed"
	}
}

// Line is a received or generated protocol line as a sequence of unescaped words.
type Line []string

// Sentinel returns the internal pseudo-reply line for name (e.g. SentinelEOF).
func Sentinel(name string) Line {
	return Line{SentinelPrefix + name}
}

// Kind returns the kind of l. A line without words is malformed.
func (l Line) Kind() Kind {
	if len(l) == 0 || l[0] == "" {
		return KindMalformed
	}
	switch l[0][0] {
	case RequestPrefix:
		return KindRequest
	case ReplyPrefix:
		if strings.HasPrefix(l[0], SentinelPrefix) {
			return KindSentinel
		}
		return KindReply
	case InformPrefix:
		return KindInform
	default:
		return KindMalformed
	}
}

// Name returns the first word without its kind prefix.
// It returns "" for malformed lines.
func (l Line) Name() string {
	switch l.Kind() {
	case KindSentinel:
		return l[0][len(SentinelPrefix):]
	case KindMalformed:
		return ""
	default:
		return l[0][1:]
	}
}

// Args returns a copy of the words following the first one.
func (l Line) Args() []string {
	if len(l) < 2 {
		return nil
	}
	args := make([]string, len(l)-1)
	copy(args, l[1:])
	return args
}

// Clone returns an independent copy of l.
func (l Line) Clone() Line {
	if l == nil {
		return nil
	}
	c := make(Line, len(l))
	copy(c, l)
	return c
}

// String renders the line with its words unescaped and joined by single spaces.
func (l Line) String() string {
	return strings.Join(l, " ")
}

// Encode returns the wire form of l, without the trailing newline.
func (l Line) Encode() string {
	words := make([]string, len(l))
	for i, w := range l {
		words[i] = Escape(w)
	}
	return strings.Join(words, " ")
}

func isSeparator(r rune) bool {
	return r == space || r == tab
}

// ParseLine splits a received line into words and unescapes each of them.
// A trailing "\n" or "\r\n" is ignored. Runs of spaces and tabs count as a
// single separator.
//
// An invalid escape sequence in any word returns *ParseError wrapping
// *EscapeError; the line is never partially decoded.
func ParseLine(raw string) (Line, error) {
	raw = strings.TrimSuffix(raw, "\n")
	raw = strings.TrimSuffix(raw, "\r")

	tokens := strings.FieldsFunc(raw, isSeparator)
	line := make(Line, len(tokens))
	for i, tok := range tokens {
		w, err := Unescape(tok)
		if err != nil {
			return nil, &ParseError{Line: raw, Err: err}
		}
		line[i] = w
	}
	return line, nil
}
