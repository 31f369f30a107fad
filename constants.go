package katcp

import (
	"time"

	"github.com/pior/katcp/wire"
)

// DefaultPort is the KATCP port used when neither Config.Port nor the
// KATCP_PORT environment variable is set.
const DefaultPort = 7147

// PortEnv names the environment variable that overrides DefaultPort.
const PortEnv = "KATCP_PORT"

// Timeouts
const (
	// DefaultTimeout paces both the reader's socket wait and reply detection.
	// Two consecutive expirations while a reply is pending fail the attempt.
	DefaultTimeout = 250 * time.Millisecond

	// DefaultConnectTimeout bounds a single dial.
	DefaultConnectTimeout = 2 * time.Second
)

// StatusIncomplete is returned by Message.Status when no reply has been received.
const StatusIncomplete = "incomplete"

// StatusOK is the status word of a successful reply.
const StatusOK = wire.StatusOK

// Well-known request names
const (
	RequestHelp     = "help"
	RequestWatchdog = "watchdog"
)

// maxTimeouts is the number of consecutive in-flight read timeouts that fail an attempt.
const maxTimeouts = 2

// lineQueueSize is the capacity of the reader to request channel.
const lineQueueSize = 256
