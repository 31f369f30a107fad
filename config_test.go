package katcp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Setenv(PortEnv, "")

	cfg, err := Config{Host: "roach020203"}.withDefaults()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Dialer)
	assert.Equal(t, "roach020203:7147", cfg.Addr())
}

func TestConfigPortFromEnv(t *testing.T) {
	t.Setenv(PortEnv, "7148")

	cfg, err := Config{Host: "localhost"}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, 7148, cfg.Port)

	cfg, err = Config{Host: "localhost", Port: 9000}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port, "an explicit port wins over the environment")
}

func TestConfigInvalid(t *testing.T) {
	_, err := Config{}.withDefaults()
	require.ErrorIs(t, err, ErrNoHost)

	_, err = Config{Host: "localhost", Port: 70000}.withDefaults()
	require.Error(t, err)

	t.Setenv(PortEnv, "not-a-port")
	_, err = Config{Host: "localhost"}.withDefaults()
	require.ErrorContains(t, err, PortEnv)
}

func TestConfigAddrIPv6(t *testing.T) {
	assert.Equal(t, "[::1]:7147", Config{Host: "::1", Port: 7147}.Addr())
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
host: roach020203
port: 7148
local_host: 10.0.0.1
local_port: 4000
timeout: 500ms
connect_timeout: 3s
`))
	require.NoError(t, err)

	assert.Equal(t, "roach020203", cfg.Host)
	assert.Equal(t, 7148, cfg.Port)
	assert.Equal(t, "10.0.0.1", cfg.LocalHost)
	assert.Equal(t, 4000, cfg.LocalPort)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)

	_, err = ParseConfig([]byte("host: [unterminated"))
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: roach020203\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "roach020203", cfg.Host)
	assert.Zero(t, cfg.Port)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
