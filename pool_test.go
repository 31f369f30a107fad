package katcp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/katcp/internal/testutils"
	"github.com/pior/katcp/wire"
)

func newTestPool(t *testing.T, d *testutils.Device, cfg PoolConfig) *Pool {
	t.Helper()
	cfg.Client = testConfig(d)
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 2
	}
	p, err := NewPool(cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestNewPoolInvalid(t *testing.T) {
	_, err := NewPool(PoolConfig{Client: Config{Host: "localhost"}})
	require.Error(t, err)

	_, err = NewPool(PoolConfig{MaxSize: 1})
	require.ErrorIs(t, err, ErrNoHost)
}

func TestPoolRequest(t *testing.T) {
	d := testutils.NewDevice(t, echo)
	p := newTestPool(t, d, PoolConfig{})
	ctx := context.Background()

	for range 3 {
		msg, err := p.Request(ctx, "echo", "x")
		require.NoError(t, err)
		assert.Equal(t, "x", msg.Payload())
	}

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.CreatedConns)
	assert.Equal(t, uint64(3), stats.AcquireCount)
	assert.Equal(t, int32(1), stats.IdleConns)
	assert.Equal(t, int32(0), stats.ActiveConns)
	assert.Equal(t, 1, d.Accepted())
}

func TestPoolParallelRequests(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	d := testutils.NewDevice(t, func(conn *testutils.DeviceConn, req wire.Line) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		echo(conn, req)
	})
	p := newTestPool(t, d, PoolConfig{MaxSize: 3})

	var wg sync.WaitGroup
	for range 9 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Request(context.Background(), "echo")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, d.Accepted(), 3)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
	assert.Len(t, d.Requests(), 9)
}

func TestPoolDestroysBrokenConnections(t *testing.T) {
	d := testutils.NewDevice(t, func(conn *testutils.DeviceConn, req wire.Line) {
		conn.Close()
	})
	p := newTestPool(t, d, PoolConfig{})

	_, err := p.Request(context.Background(), "foo")
	require.ErrorIs(t, err, ErrSocketEOF)

	// puddle destroys resources asynchronously
	require.Eventually(t, func() bool {
		stats := p.Stats()
		return stats.DestroyedConns == 1 && stats.TotalConns == 0
	}, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), p.Stats().CreatedConns)
}

func TestPoolKeepsConnectionOnFailReply(t *testing.T) {
	d := testutils.NewDevice(t, func(conn *testutils.DeviceConn, req wire.Line) {
		conn.Reply(req.Name(), "fail", "nope")
	})
	p := newTestPool(t, d, PoolConfig{})

	_, err := p.Call(context.Background(), "foo")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "nope", statusErr.Message.Payload())

	assert.Equal(t, uint64(0), p.Stats().DestroyedConns)
	assert.Equal(t, int32(1), p.Stats().IdleConns)
}

func TestPoolInforms(t *testing.T) {
	d := testutils.NewDevice(t, nil)
	p := newTestPool(t, d, PoolConfig{})

	_, err := p.Request(context.Background(), "watchdog")
	require.NoError(t, err)

	d.Broadcast("#interface-changed")
	require.Eventually(t, func() bool {
		return len(p.Informs(false)) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{"#interface-changed"}, p.Informs(true))
	assert.Empty(t, p.Informs(true))
}

func TestPoolHealthCheckDestroysIdleConnections(t *testing.T) {
	d := testutils.NewDevice(t, nil)
	p := newTestPool(t, d, PoolConfig{
		HealthCheckInterval: 20 * time.Millisecond,
		MaxConnIdleTime:     10 * time.Millisecond,
	})

	_, err := p.Request(context.Background(), "foo")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats := p.Stats()
		return stats.DestroyedConns == 1 && stats.TotalConns == 0
	}, time.Second, 5*time.Millisecond)
}

func TestPoolHealthCheckPings(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	d := testutils.NewDevice(t, func(conn *testutils.DeviceConn, req wire.Line) {
		if req.Name() == RequestWatchdog && !healthy.Load() {
			conn.Reply(req.Name(), "fail")
			return
		}
		conn.Reply(req.Name(), "ok")
	})
	p := newTestPool(t, d, PoolConfig{HealthCheckInterval: 20 * time.Millisecond})

	_, err := p.Request(context.Background(), "foo")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, r := range d.Requests() {
			if r == "?watchdog" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(0), p.Stats().DestroyedConns)

	healthy.Store(false)
	require.Eventually(t, func() bool {
		return p.Stats().DestroyedConns == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPoolClose(t *testing.T) {
	d := testutils.NewDevice(t, nil)
	p := newTestPool(t, d, PoolConfig{HealthCheckInterval: time.Hour})

	_, err := p.Request(context.Background(), "foo")
	require.NoError(t, err)

	p.Close()
	p.Close()

	_, err = p.Request(context.Background(), "foo")
	require.Error(t, err)
	assert.Equal(t, uint64(1), p.Stats().DestroyedConns)
}

// openBreaker rejects every request like an open gobreaker.
type openBreaker struct{}

func (openBreaker) Execute(func() (*Message, error)) (*Message, error) {
	return nil, gobreaker.ErrOpenState
}

func (openBreaker) State() gobreaker.State {
	return gobreaker.StateOpen
}

func TestPoolKeepsConnectionWhenBreakerOpen(t *testing.T) {
	d := testutils.NewDevice(t, nil)
	cfg := testConfig(d)
	cfg.NewCircuitBreaker = func(string) CircuitBreaker { return openBreaker{} }

	p, err := NewPool(PoolConfig{Client: cfg, MaxSize: 1})
	require.NoError(t, err)
	defer p.Close()

	for range 3 {
		_, err := p.Request(context.Background(), "foo")
		require.ErrorIs(t, err, gobreaker.ErrOpenState)
	}

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.CreatedConns)
	assert.Equal(t, uint64(0), stats.DestroyedConns)
	assert.Equal(t, int32(1), stats.IdleConns)
	assert.Empty(t, d.Requests())
}

func TestShouldDestroy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"breaker open", gobreaker.ErrOpenState, false},
		{"breaker half-open limit", gobreaker.ErrTooManyRequests, false},
		{"status error", &StatusError{Request: "halt", Status: "fail"}, false},
		{"invalid name", &wire.InvalidNameError{Name: "a b"}, false},
		{"request error", &RequestError{Request: "foo", Kind: ErrTimeout, Message: &Message{}}, true},
		{
			"request error after canceled reconnect",
			&RequestError{Request: "foo", Kind: ErrSocket, Message: &Message{}, Err: context.Canceled},
			true,
		},
		{"connect error", &ConnectError{Addr: "roach:7147", Err: errors.New("refused")}, true},
		{"unknown", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldDestroy(tt.err))
		})
	}
}
