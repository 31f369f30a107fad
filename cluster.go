package katcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/pior/katcp/internal/jump"
)

// HostSelector picks the index of the host serving a routing key.
type HostSelector func(key string, hostCount int) int

// DefaultHostSelector places keys with jump consistent hashing over xxh3, so
// adding a host moves as few keys as possible.
func DefaultHostSelector(key string, hostCount int) int {
	return jump.String(key, hostCount)
}

// Cluster addresses a set of devices sharing one configuration, such as the
// boards of a correlator. Requests are routed to a device by a routing key.
// Each device has its own Client, created on first use.
type Cluster struct {
	hosts      []Config
	selectHost HostSelector

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewCluster creates a cluster over hosts, each "host" or "host:port".
// base supplies every other setting; its Host is ignored. A nil selectHost
// means DefaultHostSelector.
func NewCluster(hosts []string, base Config, selectHost HostSelector) (*Cluster, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("katcp: no hosts provided")
	}
	if selectHost == nil {
		selectHost = DefaultHostSelector
	}

	cfgs := make([]Config, len(hosts))
	for i, h := range hosts {
		cfg := base
		host, port, err := net.SplitHostPort(h)
		if err != nil {
			cfg.Host = h
		} else {
			cfg.Host = host
			if cfg.Port, err = strconv.Atoi(port); err != nil {
				return nil, fmt.Errorf("katcp: invalid port in %q: %w", h, err)
			}
		}
		cfg, err = cfg.withDefaults()
		if err != nil {
			return nil, err
		}
		cfgs[i] = cfg
	}

	return &Cluster{
		hosts:      cfgs,
		selectHost: selectHost,
		clients:    make(map[string]*Client),
	}, nil
}

// Addrs returns the "host:port" of every device, in configuration order.
func (cl *Cluster) Addrs() []string {
	addrs := make([]string, len(cl.hosts))
	for i, h := range cl.hosts {
		addrs[i] = h.Addr()
	}
	return addrs
}

// Client returns the client of the device serving key.
func (cl *Cluster) Client(key string) (*Client, error) {
	i := cl.selectHost(key, len(cl.hosts))
	if i < 0 || i >= len(cl.hosts) {
		return nil, fmt.Errorf("katcp: host selector returned %d for %d hosts", i, len(cl.hosts))
	}
	return cl.getOrCreateClient(cl.hosts[i])
}

func (cl *Cluster) getOrCreateClient(cfg Config) (*Client, error) {
	addr := cfg.Addr()

	// Fast path: read lock
	cl.mu.RLock()
	c, exists := cl.clients[addr]
	cl.mu.RUnlock()
	if exists {
		return c, nil
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if c, exists := cl.clients[addr]; exists {
		return c, nil
	}

	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	cl.clients[addr] = c
	return c, nil
}

// Request sends a request to the device serving key.
func (cl *Cluster) Request(ctx context.Context, key, name string, args ...any) (*Message, error) {
	c, err := cl.Client(key)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, name, args...)
}

// Broadcast sends the same request to every device concurrently.
// Messages are keyed by device address; failures are joined in the error.
func (cl *Cluster) Broadcast(ctx context.Context, name string, args ...any) (map[string]*Message, error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	msgs := make(map[string]*Message, len(cl.hosts))

	for _, cfg := range cl.hosts {
		c, err := cl.getOrCreateClient(cfg)
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := c.Request(ctx, name, args...)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", c.Addr(), err))
				return
			}
			msgs[c.Addr()] = msg
		}()
	}
	wg.Wait()

	return msgs, errors.Join(errs...)
}

// Close closes every device connection.
func (cl *Cluster) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	var errs []error
	for _, c := range cl.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
