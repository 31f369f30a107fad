package katcp

import (
	"errors"
	"io"
	"time"

	"github.com/pior/katcp/wire"
)

// session binds one Transport to the reader goroutine consuming it.
// A reconnect retires the session and starts a new one; lines from a retired
// session can never reach a later request because each session has its own
// queue.
type session struct {
	id        uint64
	transport *Transport
	lines     chan wire.Line
	done      chan struct{} // closed when the reader exits
	quit      chan struct{} // closed when the session is retired

	// cause is the error that ended the reader, written before the final
	// sentinel is queued.
	cause error
}

func newSession(id uint64, t *Transport) *session {
	return &session{
		id:        id,
		transport: t,
		lines:     make(chan wire.Line, lineQueueSize),
		done:      make(chan struct{}),
		quit:      make(chan struct{}),
	}
}

// alive returns true while the reader is running on an open socket.
func (s *session) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return s.transport.IsConnected()
	}
}

// retire closes the socket and waits for the reader to exit.
// Must be called at most once, with Client.mu held.
func (s *session) retire() {
	close(s.quit)
	s.transport.Close()
	<-s.done
}

func (s *session) retired() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// next returns the next queued line. ok is false if the reader exited
// without leaving anything in the queue.
func (s *session) next() (line wire.Line, ok bool) {
	select {
	case line = <-s.lines:
		return line, true
	case <-s.done:
		select {
		case line = <-s.lines:
			return line, true
		default:
			return nil, false
		}
	}
}

// enqueue hands a line to the request side. It gives up once the session is retired.
func (s *session) enqueue(line wire.Line) bool {
	select {
	case s.lines <- line:
		return true
	case <-s.quit:
		return false
	}
}

// readLoop consumes the session's transport until it fails, routing replies
// and request-scoped informs to the session queue and every other inform to
// the client's inform log. It ends by queueing exactly one sentinel.
func (c *Client) readLoop(s *session) {
	defer close(s.done)

	logger := c.logger.With("session", s.id)
	timeouts := 0

	for {
		waitStart := time.Now()
		raw, err := s.transport.ReadLine(c.cfg.Timeout)
		if err != nil {
			if s.retired() {
				return
			}
			switch {
			case errors.Is(err, ErrReadTimeout):
				req := c.current.Load()
				if req == nil {
					timeouts = 0
					continue
				}
				// only waits started after the request was sent count
				if waitStart.Before(req.sent) {
					timeouts = 0
					continue
				}
				timeouts++
				if timeouts < maxTimeouts {
					continue
				}
				logger.Warn("katcp: reply timed out", "timeouts", timeouts, "timeout", c.cfg.Timeout)
				s.enqueue(wire.Sentinel(wire.SentinelTimeout))
			case errors.Is(err, io.EOF):
				logger.Info("katcp: connection closed by peer")
				s.enqueue(wire.Sentinel(wire.SentinelEOF))
			default:
				s.cause = err
				logger.Warn("katcp: read failed", "error", err)
				s.enqueue(wire.Sentinel(wire.SentinelError))
			}
			return
		}

		line, err := wire.ParseLine(raw)
		if err != nil {
			s.cause = err
			logger.Error("katcp: undecodable line", "line", raw, "error", err)
			s.enqueue(wire.Sentinel(wire.SentinelError))
			return
		}
		timeouts = 0

		switch line.Kind() {
		case wire.KindRequest:
			// this client does not serve requests
		case wire.KindReply:
			if !s.enqueue(line) {
				return
			}
		case wire.KindInform:
			if req := c.current.Load(); req != nil && line.Name() == req.name {
				if !s.enqueue(line) {
					return
				}
				continue
			}
			c.informs.Append(line.String())
			c.stats.recordAsyncInform()
		default:
			c.stats.recordMalformed()
			logger.Warn("katcp: malformed line", "line", raw)
		}
	}
}
