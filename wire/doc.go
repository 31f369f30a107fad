// Package wire provides the low-level text codec for the KATCP control protocol.
//
// It knows nothing about connections or request correlation. It covers:
//
//   - Word escaping: Escape and Unescape convert single protocol words to and
//     from their wire form.
//   - Lines: ParseLine splits a received line into unescaped words and Line
//     classifies it as a request, reply, inform or internal sentinel.
//   - Requests: WriteRequest and EncodeRequest serialize "?name arg..." lines.
//   - Framing: LineReader reads newline-terminated lines from a buffered reader
//     without losing partial lines when a read deadline expires.
//
// # Wire format
//
// Every line is terminated by '\n'. Words are separated by one or more space or
// tab characters. The first character of the first word selects the line kind:
//
//	?name arg1 arg2     request (client to server)
//	!name ok payload    reply, terminal line of a request
//	#name words...      inform
//
// Words carrying whitespace or control characters are escaped:
//
//	\\  backslash      \_  space        \0  NUL
//	\n  newline        \r  carriage     \e  escape (0x1b)
//	\t  tab            \@  the empty word
//
// # Errors
//
// Unescape returns *EscapeError for any sequence outside the table above.
// ParseLine wraps it in *ParseError. ShouldCloseConnection reports whether an
// error leaves the connection in an unknown state.
package wire
