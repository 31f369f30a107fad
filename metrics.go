package katcp

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector exports a client's ClientStats as Prometheus metrics.
//
//	reg.MustRegister(katcp.NewStatsCollector(client))
//
// Every metric carries the "addr" and "client_id" labels.
type StatsCollector struct {
	client *Client

	requests     *prometheus.Desc
	replies      *prometheus.Desc
	replyErrors  *prometheus.Desc
	retries      *prometheus.Desc
	reconnects   *prometheus.Desc
	attemptFails *prometheus.Desc
	failures     *prometheus.Desc
	informs      *prometheus.Desc
	dropped      *prometheus.Desc
	connected    *prometheus.Desc
}

var _ prometheus.Collector = (*StatsCollector)(nil)

// NewStatsCollector creates a collector for c.
func NewStatsCollector(c *Client) *StatsCollector {
	labels := prometheus.Labels{"addr": c.Addr(), "client_id": c.ID()}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc("katcp_"+name, help, variable, labels)
	}

	return &StatsCollector{
		client:       c,
		requests:     desc("requests_total", "Requests admitted, retries excluded"),
		replies:      desc("replies_total", "Requests that received a reply"),
		replyErrors:  desc("reply_errors_total", "Replies whose status was not ok"),
		retries:      desc("retries_total", "Attempts retried on a new connection"),
		reconnects:   desc("connects_total", "Connections opened"),
		attemptFails: desc("attempt_failures_total", "Failed attempts by reason", "reason"),
		failures:     desc("request_failures_total", "Requests that exhausted their retry budget"),
		informs:      desc("async_informs_total", "Informs routed to the inform log"),
		dropped:      desc("dropped_lines_total", "Lines dropped by reason", "reason"),
		connected:    desc("connected", "1 if the connection is open"),
	}
}

// Describe implements prometheus.Collector.
func (sc *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sc.requests
	ch <- sc.replies
	ch <- sc.replyErrors
	ch <- sc.retries
	ch <- sc.reconnects
	ch <- sc.attemptFails
	ch <- sc.failures
	ch <- sc.informs
	ch <- sc.dropped
	ch <- sc.connected
}

// Collect implements prometheus.Collector.
func (sc *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := sc.client.Stats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(sc.requests, s.Requests)
	counter(sc.replies, s.Replies)
	counter(sc.replyErrors, s.ReplyErrors)
	counter(sc.retries, s.Retries)
	counter(sc.reconnects, s.Reconnects)
	counter(sc.attemptFails, s.Timeouts, "timeout")
	counter(sc.attemptFails, s.SocketErrors, "socket_error")
	counter(sc.attemptFails, s.SocketEOFs, "socket_eof")
	counter(sc.failures, s.Failures)
	counter(sc.informs, s.AsyncInforms)
	counter(sc.dropped, s.MalformedLines, "malformed")
	counter(sc.dropped, s.DiscardedLines, "late")

	connected := 0.0
	if sc.client.IsConnected() {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(sc.connected, prometheus.GaugeValue, connected)
}

// PoolStatsCollector exports PoolStats as Prometheus metrics labelled by "pool".
type PoolStatsCollector struct {
	pool *Pool

	conns    *prometheus.Desc
	acquires *prometheus.Desc
	waits    *prometheus.Desc
	waitTime *prometheus.Desc
	created  *prometheus.Desc
	closed   *prometheus.Desc
}

var _ prometheus.Collector = (*PoolStatsCollector)(nil)

// NewPoolStatsCollector creates a collector for p.
func NewPoolStatsCollector(name string, p *Pool) *PoolStatsCollector {
	labels := prometheus.Labels{"pool": name}
	return &PoolStatsCollector{
		pool:     p,
		conns:    prometheus.NewDesc("katcp_pool_connections", "Pool connections by state", []string{"state"}, labels),
		acquires: prometheus.NewDesc("katcp_pool_acquires_total", "Connection acquires", nil, labels),
		waits:    prometheus.NewDesc("katcp_pool_acquire_waits_total", "Acquires that waited for a connection", nil, labels),
		waitTime: prometheus.NewDesc("katcp_pool_acquire_wait_seconds_total", "Time spent waiting for a connection", nil, labels),
		created:  prometheus.NewDesc("katcp_pool_connections_created_total", "Connections created", nil, labels),
		closed:   prometheus.NewDesc("katcp_pool_connections_destroyed_total", "Connections destroyed", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (pc *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.conns
	ch <- pc.acquires
	ch <- pc.waits
	ch <- pc.waitTime
	ch <- pc.created
	ch <- pc.closed
}

// Collect implements prometheus.Collector.
func (pc *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := pc.pool.Stats()

	ch <- prometheus.MustNewConstMetric(pc.conns, prometheus.GaugeValue, float64(s.IdleConns), "idle")
	ch <- prometheus.MustNewConstMetric(pc.conns, prometheus.GaugeValue, float64(s.ActiveConns), "active")
	ch <- prometheus.MustNewConstMetric(pc.acquires, prometheus.CounterValue, float64(s.AcquireCount))
	ch <- prometheus.MustNewConstMetric(pc.waits, prometheus.CounterValue, float64(s.AcquireWaitCount))
	ch <- prometheus.MustNewConstMetric(pc.waitTime, prometheus.CounterValue, float64(s.AcquireWaitTimeNs)/1e9)
	ch <- prometheus.MustNewConstMetric(pc.created, prometheus.CounterValue, float64(s.CreatedConns))
	ch <- prometheus.MustNewConstMetric(pc.closed, prometheus.CounterValue, float64(s.DestroyedConns))
}
