package katcp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pior/katcp/wire"
)

// Client is a KATCP client bound to a single device connection.
//
// At most one request is in flight at any time: Request holds the connection
// for the whole round trip, and concurrent callers wait their turn. A
// background reader routes incoming lines; informs that do not belong to the
// request in flight are collected and returned by Informs.
//
// A request that fails at the transport level (two consecutive read timeouts,
// a socket error or EOF) is retried once on a fresh connection. A second
// failure returns a *RequestError.
type Client struct {
	cfg     Config
	id      string
	logger  *slog.Logger
	breaker CircuitBreaker // nil if not configured

	// sem admits one request at a time
	sem chan struct{}

	mu       sync.Mutex
	sess     *session
	sessions uint64

	attempts atomic.Uint64
	current  atomic.Pointer[inflight] // request in flight, nil when idle

	informs InformLog
	stats   *clientStatsCollector
}

// NewClient creates a client for cfg without connecting.
// The connection is opened by Connect or by the first request.
func NewClient(cfg Config) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:   cfg,
		id:    uuid.NewString(),
		sem:   make(chan struct{}, 1),
		stats: newClientStatsCollector(),
	}
	c.logger = cfg.Logger.With("client_id", c.id, "addr", cfg.Addr())

	if cfg.NewCircuitBreaker != nil {
		c.breaker = cfg.NewCircuitBreaker(cfg.Addr())
	}
	return c, nil
}

// Dial creates a client and connects it.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// ID returns the client's unique instance id, as used in log records.
func (c *Client) ID() string {
	return c.id
}

// Host returns the remote host.
func (c *Client) Host() string {
	return c.cfg.Host
}

// Port returns the remote port.
func (c *Client) Port() int {
	return c.cfg.Port
}

// Addr returns the remote "host:port".
func (c *Client) Addr() string {
	return c.cfg.Addr()
}

// Timeout returns the socket timeout.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// Connect opens the connection if it is not already open.
// Connection failures are returned as-is, they are never retried here.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil && c.sess.alive() {
		return nil
	}
	return c.reconnectLocked(ctx)
}

// Reconnect closes the current connection, if any, and opens a new one.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectLocked(ctx)
}

func (c *Client) reconnectLocked(ctx context.Context) error {
	if c.sess != nil {
		c.sess.retire()
		c.sess = nil
	}

	t, err := NewTransport(c.cfg)
	if err != nil {
		return err
	}
	if err := t.Connect(ctx); err != nil {
		c.logger.Warn("katcp: connect failed", "error", err)
		return err
	}

	c.sessions++
	s := newSession(c.sessions, t)
	c.sess = s
	c.stats.recordReconnect()
	go c.readLoop(s)

	c.logger.Debug("katcp: connected", "session", s.id)
	return nil
}

// Close closes the connection and stops its reader. It is safe to call on a
// closed client. A later request reconnects.
//
// Closing while a request is in flight from another goroutine is not supported.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		c.sess.retire()
		c.sess = nil
	}
	return nil
}

// IsConnected returns true while the connection and its reader are alive.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.sess.alive()
}

// Informs returns the asynchronous informs received so far, rendered as
// text, in receive order. If clear is true the log is emptied.
func (c *Client) Informs(clear bool) []string {
	return c.informs.Drain(clear)
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// Request sends "?name args..." and returns the informs and reply collected
// for it, whatever the reply status. Underscores in name are sent as hyphens.
//
// Arguments are formatted with formatArg and escaped. ctx bounds the wait for
// the connection and any dial; once the request is written it runs until a
// reply arrives or the retry budget is exhausted.
func (c *Client) Request(ctx context.Context, name string, args ...any) (*Message, error) {
	if c.breaker != nil {
		return c.breaker.Execute(func() (*Message, error) {
			return c.request(ctx, name, args)
		})
	}
	return c.request(ctx, name, args)
}

// Call is Request for callers that only care about success: a reply whose
// status is not "ok" is returned as a *StatusError.
func (c *Client) Call(ctx context.Context, name string, args ...any) (*Message, error) {
	msg, err := c.Request(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	if !msg.OK() {
		return nil, &StatusError{Request: wire.NormalizeName(name), Status: msg.Status(), Message: msg}
	}
	return msg, nil
}

// Help sends "?help" with optional request names. The returned informs are
// sorted, since devices list them in no particular order.
func (c *Client) Help(ctx context.Context, names ...any) (*Message, error) {
	msg, err := c.Request(ctx, RequestHelp, names...)
	if err != nil {
		return nil, err
	}
	msg.SortInforms()
	return msg, nil
}

// Ping sends "?watchdog" and fails unless the device replies "ok".
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, RequestWatchdog)
	return err
}

func (c *Client) request(ctx context.Context, name string, args []any) (*Message, error) {
	name = wire.NormalizeName(name)
	req, err := wire.EncodeRequest(name, formatArgs(args)...)
	if err != nil {
		return nil, err
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	c.stats.recordRequest()

	msg, failed, err := c.attempt(ctx, name, req)
	if err != nil {
		return nil, err
	}
	if failed == nil {
		c.stats.recordReply(msg.OK())
		return msg, nil
	}

	c.stats.recordRetry()
	c.logger.Warn("katcp: request failed, reconnecting", "request", name, "reason", failed.Kind)

	if err := c.Reconnect(ctx); err != nil {
		c.stats.recordFailure()
		failed.Err = err
		return nil, failed
	}

	msg, failed, err = c.attempt(ctx, name, req)
	if err != nil {
		return nil, err
	}
	if failed != nil {
		c.stats.recordFailure()
		c.logger.Error("katcp: request failed after retry", "request", name, "reason", failed.Kind, "lines", failed.Message.Len())
		return nil, failed
	}

	c.stats.recordReply(msg.OK())
	return msg, nil
}

// attempt sends req once on the current connection and collects lines until
// the reply. A transport failure is returned as failed; err is only set when
// no connection could be opened.
func (c *Client) attempt(ctx context.Context, name string, req []byte) (msg *Message, failed *RequestError, err error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, nil, err
	}

	id := c.attempts.Add(1)
	logger := c.logger.With("request", name, "attempt", id, "session", s.id)

	c.current.Store(&inflight{name: name, sent: time.Now()})
	defer c.current.Store(nil)

	msg = &Message{}
	if err := s.transport.WriteLine(req); err != nil {
		c.stats.recordAttemptFailure(ErrSocket)
		logger.Warn("katcp: write failed", "error", err)
		return msg, &RequestError{Request: name, Kind: ErrSocket, Message: msg, Err: err}, nil
	}

	for {
		line, ok := s.next()
		if !ok {
			line = wire.Sentinel(wire.SentinelError)
		}

		if line.Kind() == wire.KindSentinel {
			kind := failureKind(line.Name())
			c.stats.recordAttemptFailure(kind)
			logger.Debug("katcp: attempt failed", "reason", kind, "lines", msg.Len())
			return msg, &RequestError{Request: name, Kind: kind, Message: msg, Err: s.cause}, nil
		}

		if err := msg.Append(line); err != nil {
			return msg, &RequestError{Request: name, Kind: ErrRequestFailed, Message: msg, Err: err}, nil
		}
		if line.Kind() == wire.KindReply {
			return msg, nil, nil
		}
	}
}

// inflight describes the request the reader is collecting lines for.
type inflight struct {
	name string
	sent time.Time // published before the request is written
}

// session returns a live session with an empty queue, connecting if needed.
func (c *Client) session(ctx context.Context) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || !c.sess.alive() {
		if err := c.reconnectLocked(ctx); err != nil {
			return nil, err
		}
	}

	if c.discardStale(c.sess) {
		return c.sess, nil
	}
	// the reader died between the liveness check and the drain
	if err := c.reconnectLocked(ctx); err != nil {
		return nil, err
	}
	return c.sess, nil
}

// discardStale drops lines left over from an earlier request, such as a reply
// that arrived after its request gave up. It returns false if it found the
// reader's final sentinel.
func (c *Client) discardStale(s *session) bool {
	for {
		select {
		case line := <-s.lines:
			if line.Kind() == wire.KindSentinel {
				return false
			}
			c.stats.recordDiscarded()
			c.logger.Warn("katcp: discarding late line", "line", line.String(), "session", s.id)
		default:
			return true
		}
	}
}

func formatArgs(args []any) []string {
	words := make([]string, len(args))
	for i, a := range args {
		words[i] = formatArg(a)
	}
	return words
}

// formatArg renders a request argument. Booleans follow the KATCP
// convention of "1" and "0".
func formatArg(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
