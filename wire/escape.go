package wire

import "strings"

// escapes maps a raw byte to the character following the backslash.
var escapes = [256]byte{
	'\\': '\\',
	' ':  '_',
	0:    '0',
	'\n': 'n',
	'\r': 'r',
	0x1b: 'e',
	'\t': 't',
}

// unescapes is the inverse of escapes. Zero marks an invalid sequence, so NUL
// is special-cased in Unescape.
var unescapes = [256]byte{
	'\\': '\\',
	'_':  ' ',
	'n':  '\n',
	'r':  '\r',
	'e':  0x1b,
	't':  '\t',
}

func needsEscape(b byte) bool {
	return b == 0 || escapes[b] != 0
}

// Escape returns the wire form of a single word.
// The empty word becomes `\@`. Bytes outside the escape table, including
// multi-byte UTF-8 sequences, are copied unchanged.
func Escape(word string) string {
	if word == "" {
		return EmptyWord
	}

	i := 0
	for i < len(word) && !needsEscape(word[i]) {
		i++
	}
	if i == len(word) {
		return word
	}

	var b strings.Builder
	b.Grow(len(word) + 8)
	b.WriteString(word[:i])
	for ; i < len(word); i++ {
		c := word[i]
		if needsEscape(c) {
			b.WriteByte(escapeChar)
			b.WriteByte(escapes[c])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Unescape converts a wire token back to the word it encodes.
// `\@` decodes to the empty word. Any escape sequence outside the table,
// including a trailing backslash or `\@` inside a longer token, is an
// *EscapeError.
func Unescape(token string) (string, error) {
	if token == EmptyWord {
		return "", nil
	}

	i := strings.IndexByte(token, escapeChar)
	if i < 0 {
		return token, nil
	}

	var b strings.Builder
	b.Grow(len(token))
	b.WriteString(token[:i])
	for ; i < len(token); i++ {
		c := token[i]
		if c != escapeChar {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(token) {
			return "", &EscapeError{Token: token, Offset: i, Message: "trailing backslash"}
		}
		i++
		next := token[i]
		switch {
		case next == '0':
			b.WriteByte(0)
		case unescapes[next] != 0:
			b.WriteByte(unescapes[next])
		default:
			return "", &EscapeError{Token: token, Offset: i - 1, Message: "unknown escape sequence " + token[i-1:i+1]}
		}
	}
	return b.String(), nil
}
