package katcp

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/pior/katcp/internal/coarsetime"
	"github.com/pior/katcp/wire"
)

// Transport owns one TCP socket to a KATCP device. It has no protocol
// knowledge beyond line framing.
//
// Close and IsConnected are safe to call concurrently with ReadLine and
// WriteLine. ReadLine must only be called from one goroutine at a time.
type Transport struct {
	addr           string
	localAddr      string
	connectTimeout time.Duration
	dialer         net.Dialer

	mu       sync.Mutex
	conn     net.Conn
	reader   *wire.LineReader
	lastUsed time.Time
}

// NewTransport creates an unconnected transport for cfg.
func NewTransport(cfg Config) (*Transport, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	t := &Transport{
		addr:           cfg.Addr(),
		connectTimeout: cfg.ConnectTimeout,
		dialer:         *cfg.Dialer,
	}
	if cfg.LocalHost != "" || cfg.LocalPort != 0 {
		t.localAddr = net.JoinHostPort(cfg.LocalHost, strconv.Itoa(cfg.LocalPort))
	}
	return t, nil
}

// Addr returns the remote "host:port".
func (t *Transport) Addr() string {
	return t.addr
}

// Connect dials the remote device. An open socket is closed first.
// The dial is bounded by the connect timeout and ctx; a timeout returns a
// *ConnectError matching ErrConnectTimeout.
func (t *Transport) Connect(ctx context.Context) error {
	t.Close()

	dialer := t.dialer
	dialer.Timeout = t.connectTimeout
	if t.localAddr != "" {
		local, err := net.ResolveTCPAddr("tcp", t.localAddr)
		if err != nil {
			return &ConnectError{Addr: t.addr, Err: pkgerrors.Wrapf(err, "resolve local address %s", t.localAddr)}
		}
		dialer.LocalAddr = local
	}

	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return &ConnectError{Addr: t.addr, Timeout: isTimeout(err), Err: err}
	}

	t.mu.Lock()
	t.conn = conn
	t.reader = wire.NewLineReader(conn)
	t.lastUsed = coarsetime.Now()
	t.mu.Unlock()
	return nil
}

// IsConnected returns true while the socket is open.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// LastUsed returns the time of the last successful read or write.
func (t *Transport) LastUsed() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUsed
}

// Close closes the socket. It is safe on a closed or never opened transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// ReadLine waits up to timeout for one newline-terminated line.
//
// It returns ErrReadTimeout when the deadline expired (a partial line is kept
// for the next call), io.EOF when the peer closed the socket, and a
// *wire.ConnectionError for any other failure. A zero timeout waits forever.
func (t *Transport) ReadLine(timeout time.Duration) (string, error) {
	t.mu.Lock()
	conn, reader := t.conn, t.reader
	t.mu.Unlock()
	if conn == nil {
		return "", ErrNotConnected
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", &wire.ConnectionError{Op: "read", Err: pkgerrors.Wrap(err, "set read deadline")}
	}

	line, err := reader.ReadLine()
	switch {
	case err == nil:
		t.touch()
		return line, nil
	case errors.Is(err, io.EOF):
		return "", io.EOF
	case isTimeout(err):
		return "", ErrReadTimeout
	default:
		return "", &wire.ConnectionError{Op: "read", Err: pkgerrors.Wrapf(err, "read from %s", t.addr)}
	}
}

// WriteLine writes one complete request line, which must end in "\n".
// A write to a broken socket returns *wire.ConnectionError.
func (t *Transport) WriteLine(line []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(t.connectTimeout)); err != nil {
		return &wire.ConnectionError{Op: "write", Err: pkgerrors.Wrap(err, "set write deadline")}
	}
	if _, err := conn.Write(line); err != nil {
		return &wire.ConnectionError{Op: "write", Err: pkgerrors.Wrapf(err, "write to %s", t.addr)}
	}
	t.touch()
	return nil
}

func (t *Transport) touch() {
	t.mu.Lock()
	t.lastUsed = coarsetime.Now()
	t.mu.Unlock()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
