package katcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/katcp/internal/testutils"
	"github.com/pior/katcp/wire"
)

func TestCircuitBreakerNotConfigured(t *testing.T) {
	d := testutils.NewDevice(t, nil)
	c := newTestClient(t, d)
	assert.Equal(t, gobreaker.StateClosed, c.CircuitBreakerState())
}

func TestCircuitBreakerOpensOnConnectionFailures(t *testing.T) {
	d := testutils.NewDevice(t, nil)
	cfg := testConfig(d)
	cfg.NewCircuitBreaker = NewCircuitBreakerConfig(1, time.Minute, time.Minute)
	d.Close()

	c, err := NewClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	for range 3 {
		_, err := c.Request(context.Background(), "foo")
		var connErr *ConnectError
		require.ErrorAs(t, err, &connErr)
	}
	assert.Equal(t, gobreaker.StateOpen, c.CircuitBreakerState())

	_, err = c.Request(context.Background(), "foo")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreakerIgnoresFailReplies(t *testing.T) {
	d := testutils.NewDevice(t, func(conn *testutils.DeviceConn, req wire.Line) {
		conn.Reply(req.Name(), "fail")
	})
	cfg := testConfig(d)
	cfg.NewCircuitBreaker = NewCircuitBreakerConfig(1, time.Minute, time.Minute)

	c, err := NewClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	for range 5 {
		msg, err := c.Request(context.Background(), "foo")
		require.NoError(t, err)
		assert.Equal(t, "fail", msg.Status())
	}
	assert.Equal(t, gobreaker.StateClosed, c.CircuitBreakerState())
}

func TestCircuitBreakerIgnoresContextCancel(t *testing.T) {
	d := testutils.NewDevice(t, nil)
	cfg := testConfig(d)
	cfg.NewCircuitBreaker = NewCircuitBreakerConfig(1, time.Minute, time.Minute)

	c, err := NewClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	c.sem <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 5 {
		_, err := c.Request(ctx, "foo")
		require.ErrorIs(t, err, context.Canceled)
	}
	<-c.sem

	assert.Equal(t, gobreaker.StateClosed, c.CircuitBreakerState())
}

func TestBreakerSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"canceled", context.Canceled, true},
		{"deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), true},
		{"status error", &StatusError{Request: "halt", Status: "fail"}, false},
		{"connect error", &ConnectError{Addr: "roach:7147", Err: errors.New("refused")}, false},
		{"request error", &RequestError{Request: "foo", Kind: ErrSocketEOF, Message: &Message{}}, false},
		{
			"request error after canceled reconnect",
			&RequestError{Request: "foo", Kind: ErrTimeout, Message: &Message{}, Err: context.Canceled},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, breakerSuccess(tt.err))
		})
	}
}
