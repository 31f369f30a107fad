// Package testutils provides an in-process fake KATCP device for tests.
package testutils

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/pior/katcp/wire"
)

// Handler answers one request received by a Device.
// The default handler replies "!<name> ok".
type Handler func(conn *DeviceConn, req wire.Line)

// Device is a fake KATCP server listening on 127.0.0.1.
type Device struct {
	t        testing.TB
	listener net.Listener
	handler  Handler

	mu       sync.Mutex
	conns    []*DeviceConn
	requests []string
	wg       sync.WaitGroup
}

// NewDevice starts a device. It is stopped by t.Cleanup.
func NewDevice(t testing.TB, handler Handler) *Device {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start fake device: %v", err)
	}
	if handler == nil {
		handler = func(conn *DeviceConn, req wire.Line) {
			conn.Reply(req.Name(), wire.StatusOK)
		}
	}

	d := &Device{t: t, listener: listener, handler: handler}
	d.wg.Add(1)
	go d.accept()
	t.Cleanup(d.Close)
	return d
}

// Host returns the listening host.
func (d *Device) Host() string {
	host, _, _ := net.SplitHostPort(d.listener.Addr().String())
	return host
}

// Port returns the listening port.
func (d *Device) Port() int {
	_, port, _ := net.SplitHostPort(d.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Addr returns "host:port".
func (d *Device) Addr() string {
	return d.listener.Addr().String()
}

// Accepted returns the number of connections accepted so far.
func (d *Device) Accepted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Requests returns the raw request lines received, in order, across all connections.
func (d *Device) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.requests))
	copy(out, d.requests)
	return out
}

// Broadcast writes a raw line to every open connection.
func (d *Device) Broadcast(raw string) {
	d.mu.Lock()
	conns := append([]*DeviceConn(nil), d.conns...)
	d.mu.Unlock()

	for _, c := range conns {
		c.Send(raw)
	}
}

// Close stops accepting and closes every connection.
func (d *Device) Close() {
	d.listener.Close()

	d.mu.Lock()
	for _, c := range d.conns {
		c.Close()
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Device) accept() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}

		d.mu.Lock()
		dc := &DeviceConn{t: d.t, conn: conn, Index: len(d.conns)}
		d.conns = append(d.conns, dc)
		d.mu.Unlock()

		d.wg.Add(1)
		go d.serve(dc)
	}
}

func (d *Device) serve(dc *DeviceConn) {
	defer d.wg.Done()
	defer dc.Close()

	r := bufio.NewReader(dc.conn)
	for {
		raw, err := r.ReadString('\n')
		if err != nil {
			return
		}
		raw = raw[:len(raw)-1]

		d.mu.Lock()
		d.requests = append(d.requests, raw)
		d.mu.Unlock()

		req, err := wire.ParseLine(raw)
		if err != nil || req.Kind() != wire.KindRequest {
			continue
		}
		d.handler(dc, req)
	}
}

// DeviceConn is one client connection accepted by a Device.
type DeviceConn struct {
	// Index is the connection's accept order, starting at 0.
	Index int

	t    testing.TB
	mu   sync.Mutex
	conn net.Conn
}

// Send writes a raw line, appending "\n". Write errors are logged, a client
// may have hung up on purpose.
func (c *DeviceConn) Send(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write([]byte(raw + "\n")); err != nil {
		c.t.Logf("fake device: send %q on connection %d: %v", raw, c.Index, err)
	}
}

// Reply sends "!name status words...", escaping the words.
func (c *DeviceConn) Reply(name, status string, words ...string) {
	c.Send(append(wire.Line{"!" + name, status}, words...).Encode())
}

// Inform sends "#name words...", escaping the words.
func (c *DeviceConn) Inform(name string, words ...string) {
	c.Send(append(wire.Line{"#" + name}, words...).Encode())
}

// Close drops the connection; the client sees EOF.
func (c *DeviceConn) Close() {
	c.conn.Close()
}
