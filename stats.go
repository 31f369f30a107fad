package katcp

import (
	"sync/atomic"
)

// ClientStats contains statistics about a client connection.
// All fields are safe for concurrent access.
//
// For Prometheus integration, see StatsCollector.
type ClientStats struct {
	Requests       uint64 // Requests admitted (one per Request call, retries excluded)
	Replies        uint64 // Requests that received a reply
	ReplyErrors    uint64 // Replies whose status was not "ok"
	Retries        uint64 // Attempts retried after a transport failure
	Reconnects     uint64 // Transports opened
	Timeouts       uint64 // Attempts failed by a double read timeout
	SocketErrors   uint64 // Attempts failed by a read/write/decode error
	SocketEOFs     uint64 // Attempts failed because the peer closed
	Failures       uint64 // Requests that exhausted their retry budget
	AsyncInforms   uint64 // Informs routed to the inform log
	MalformedLines uint64 // Lines dropped for an unknown leading character
	DiscardedLines uint64 // Late lines discarded before a new request
}

// clientStatsCollector provides internal methods for updating client stats.
// Not exported - client updates its own stats.
type clientStatsCollector struct {
	stats ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{}
}

func (c *clientStatsCollector) recordRequest() {
	atomic.AddUint64(&c.stats.Requests, 1)
}

func (c *clientStatsCollector) recordReply(ok bool) {
	atomic.AddUint64(&c.stats.Replies, 1)
	if !ok {
		atomic.AddUint64(&c.stats.ReplyErrors, 1)
	}
}

func (c *clientStatsCollector) recordRetry() {
	atomic.AddUint64(&c.stats.Retries, 1)
}

func (c *clientStatsCollector) recordReconnect() {
	atomic.AddUint64(&c.stats.Reconnects, 1)
}

// recordAttemptFailure counts a failed attempt by its failure class.
func (c *clientStatsCollector) recordAttemptFailure(kind error) {
	switch kind {
	case ErrTimeout:
		atomic.AddUint64(&c.stats.Timeouts, 1)
	case ErrSocketEOF:
		atomic.AddUint64(&c.stats.SocketEOFs, 1)
	default:
		atomic.AddUint64(&c.stats.SocketErrors, 1)
	}
}

func (c *clientStatsCollector) recordFailure() {
	atomic.AddUint64(&c.stats.Failures, 1)
}

func (c *clientStatsCollector) recordAsyncInform() {
	atomic.AddUint64(&c.stats.AsyncInforms, 1)
}

func (c *clientStatsCollector) recordMalformed() {
	atomic.AddUint64(&c.stats.MalformedLines, 1)
}

func (c *clientStatsCollector) recordDiscarded() {
	atomic.AddUint64(&c.stats.DiscardedLines, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Requests:       atomic.LoadUint64(&c.stats.Requests),
		Replies:        atomic.LoadUint64(&c.stats.Replies),
		ReplyErrors:    atomic.LoadUint64(&c.stats.ReplyErrors),
		Retries:        atomic.LoadUint64(&c.stats.Retries),
		Reconnects:     atomic.LoadUint64(&c.stats.Reconnects),
		Timeouts:       atomic.LoadUint64(&c.stats.Timeouts),
		SocketErrors:   atomic.LoadUint64(&c.stats.SocketErrors),
		SocketEOFs:     atomic.LoadUint64(&c.stats.SocketEOFs),
		Failures:       atomic.LoadUint64(&c.stats.Failures),
		AsyncInforms:   atomic.LoadUint64(&c.stats.AsyncInforms),
		MalformedLines: atomic.LoadUint64(&c.stats.MalformedLines),
		DiscardedLines: atomic.LoadUint64(&c.stats.DiscardedLines),
	}
}
