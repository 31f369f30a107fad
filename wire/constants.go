package wire

// Line kind prefixes.
const (
	RequestPrefix  = '?'
	ReplyPrefix    = '!'
	InformPrefix   = '#'
	SentinelPrefix = "!!"
)

// StatusOK is the status word of a successful reply.
const StatusOK = "ok"

// EmptyWord is the wire form of the empty string.
const EmptyWord = `\@`

// Names of the internal pseudo-replies passed from a reader to a waiting request.
// They never appear on the wire.
const (
	SentinelTimeout = "socket-timeout"
	SentinelError   = "socket-error"
	SentinelEOF     = "socket-eof"
)

// Word separators on received lines.
const (
	space = ' '
	tab   = '\t'
)

const escapeChar = '\\'
