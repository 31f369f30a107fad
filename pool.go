package katcp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/katcp/wire"
)

// PoolConfig holds configuration for a Pool.
type PoolConfig struct {
	// Client is the configuration of every pooled connection.
	Client Config

	// MaxSize is the maximum number of connections in the pool.
	// Required: must be > 0.
	MaxSize int32

	// MaxConnLifetime is the maximum duration a connection can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can be idle before being closed.
	// Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are pinged with "?watchdog".
	// Zero disables health checks.
	HealthCheckInterval time.Duration

	// for testing purposes only
	constructor func(ctx context.Context) (*Client, error)
}

// PoolStats contains statistics about a connection pool.
type PoolStats struct {
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Canceled acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// Pool spreads requests to one device over several connections.
//
// Each pooled Client still carries one request at a time; the pool provides
// parallelism by holding up to MaxSize of them. A connection whose request
// failed at the transport level is destroyed rather than reused.
type Pool struct {
	cfg  PoolConfig
	pool *puddle.Pool[*Client]

	createdConns   atomic.Int64
	destroyedConns atomic.Int64

	stopHealthCheck chan struct{}
	closeOnce       sync.Once
}

// NewPool creates a pool. Connections are opened lazily on first use.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.MaxSize <= 0 {
		return nil, errors.New("katcp: pool MaxSize must be > 0")
	}
	if cfg.constructor == nil {
		if _, err := cfg.Client.withDefaults(); err != nil {
			return nil, err
		}
	}

	p := &Pool{
		cfg:             cfg,
		stopHealthCheck: make(chan struct{}),
	}

	constructor := cfg.constructor
	if constructor == nil {
		constructor = func(ctx context.Context) (*Client, error) {
			return Dial(ctx, cfg.Client)
		}
	}

	pool, err := puddle.NewPool(&puddle.Config[*Client]{
		Constructor: func(ctx context.Context) (*Client, error) {
			c, err := constructor(ctx)
			if err == nil {
				p.createdConns.Add(1)
			}
			return c, err
		},
		Destructor: func(c *Client) {
			p.destroyedConns.Add(1)
			_ = c.Close()
		},
		MaxSize: cfg.MaxSize,
	})
	if err != nil {
		return nil, err
	}
	p.pool = pool

	if cfg.HealthCheckInterval > 0 {
		go p.healthCheckLoop()
	}
	return p, nil
}

// Request acquires a connection and runs Client.Request on it.
func (p *Pool) Request(ctx context.Context, name string, args ...any) (*Message, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := res.Value().Request(ctx, name, args...)
	if shouldDestroy(err) {
		res.Destroy()
		return nil, err
	}
	res.Release()
	return msg, err
}

// shouldDestroy reports whether the connection that returned err must leave the pool.
// Context and open-breaker errors leave the connection as it was.
func shouldDestroy(err error) bool {
	var reqErr *RequestError
	switch {
	case err == nil:
		return false
	case errors.As(err, &reqErr):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	default:
		return wire.ShouldCloseConnection(err)
	}
}

// Call is Request with non-ok replies returned as *StatusError.
func (p *Pool) Call(ctx context.Context, name string, args ...any) (*Message, error) {
	msg, err := p.Request(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	if !msg.OK() {
		return nil, &StatusError{Request: wire.NormalizeName(name), Status: msg.Status(), Message: msg}
	}
	return msg, nil
}

// Informs drains the asynchronous informs of every idle connection.
// Informs held by connections in use are collected on a later call.
func (p *Pool) Informs(clear bool) []string {
	var informs []string
	for _, res := range p.pool.AcquireAllIdle() {
		informs = append(informs, res.Value().Informs(clear)...)
		res.ReleaseUnused()
	}
	return informs
}

// Close stops health checks and closes every connection.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.stopHealthCheck)
		p.pool.Close()
	})
}

// Stats returns a snapshot of pool statistics.
func (p *Pool) Stats() PoolStats {
	s := p.pool.Stat()

	return PoolStats{
		TotalConns:        s.TotalResources(),
		IdleConns:         s.IdleResources(),
		ActiveConns:       s.AcquiredResources(),
		AcquireCount:      uint64(s.AcquireCount()),
		AcquireWaitCount:  uint64(s.EmptyAcquireCount()),
		CreatedConns:      uint64(p.createdConns.Load()),
		DestroyedConns:    uint64(p.destroyedConns.Load()),
		AcquireErrors:     uint64(s.CanceledAcquireCount()),
		AcquireWaitTimeNs: uint64(s.EmptyAcquireWaitTime().Nanoseconds()),
	}
}

// healthCheckLoop periodically checks idle connections for health and lifecycle limits.
func (p *Pool) healthCheckLoop() {
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopHealthCheck:
			return
		case <-ticker.C:
			p.checkIdle()
		}
	}
}

// checkIdle destroys idle connections that are stale or do not answer "?watchdog".
func (p *Pool) checkIdle() {
	now := time.Now()

	for _, res := range p.pool.AcquireAllIdle() {
		if p.cfg.MaxConnLifetime > 0 && now.Sub(res.CreationTime()) > p.cfg.MaxConnLifetime {
			res.Destroy()
			continue
		}

		if p.cfg.MaxConnIdleTime > 0 && res.IdleDuration() > p.cfg.MaxConnIdleTime {
			res.Destroy()
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.HealthCheckInterval)
		err := res.Value().Ping(ctx)
		cancel()
		if err != nil {
			res.Destroy()
			continue
		}

		res.ReleaseUnused()
	}
}
