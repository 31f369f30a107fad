package katcp

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of a single KATCP connection.
// Only Host is required; every other zero value is replaced by a default.
type Config struct {
	// Host is the remote device address (name or IP).
	Host string `yaml:"host"`

	// Port is the remote port. Zero means $KATCP_PORT, else DefaultPort.
	Port int `yaml:"port"`

	// LocalHost and LocalPort optionally bind the local end of the socket.
	LocalHost string `yaml:"local_host"`
	LocalPort int    `yaml:"local_port"`

	// Timeout is the socket timeout pacing reply detection.
	// Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout"`

	// ConnectTimeout bounds each dial. Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Logger receives diagnostics (malformed lines, retries, reconnects).
	// If nil, slog.Default() is used.
	Logger *slog.Logger `yaml:"-"`

	// Dialer is the net.Dialer used to open connections.
	// If nil, the default net.Dialer is used. Its Timeout and LocalAddr are
	// overridden by ConnectTimeout and LocalHost/LocalPort.
	Dialer *net.Dialer `yaml:"-"`

	// NewCircuitBreaker creates a circuit breaker for the client's address.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(addr string) CircuitBreaker `yaml:"-"`
}

// LoadConfig reads a YAML connection description such as:
//
//	host: roach020203
//	port: 7147
//	timeout: 500ms
//	connect_timeout: 3s
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("katcp: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML connection description.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("katcp: parse config: %w", err)
	}
	return cfg, nil
}

// withDefaults returns a copy of c with defaults applied.
func (c Config) withDefaults() (Config, error) {
	if c.Host == "" {
		return c, ErrNoHost
	}

	if c.Port == 0 {
		port, err := portFromEnv()
		if err != nil {
			return c, err
		}
		c.Port = port
	}
	if c.Port < 0 || c.Port > 65535 {
		return c, fmt.Errorf("katcp: invalid port %d", c.Port)
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	return c, nil
}

func portFromEnv() (int, error) {
	v := os.Getenv(PortEnv)
	if v == "" {
		return DefaultPort, nil
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("katcp: invalid %s=%q: %w", PortEnv, v, err)
	}
	return port, nil
}

// Addr returns the "host:port" form of the remote address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
