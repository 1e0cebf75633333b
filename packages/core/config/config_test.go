package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".reqx.yaml", `
connectTimeout: 5000
transferTimeout: 10000
keepAlive: false
maxConnsPerHost: 8
dnsCacheTTL: 0
headers:
  X-Env: test
cookies:
  theme: dark
rateLimit: 2.5
burst: 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.ConnectTimeout)
	assert.Equal(t, 10000, cfg.TransferTimeout)
	assert.False(t, cfg.GetKeepAlive())
	assert.Equal(t, 8, cfg.MaxConnsPerHost)
	require.NotNil(t, cfg.DNSCacheTTL)
	assert.Equal(t, 0, *cfg.DNSCacheTTL)
	assert.Equal(t, map[string]string{"X-Env": "test"}, cfg.Headers)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, int64(100<<20), cfg.MaxBodySize, "unset fields keep their defaults")
}

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "reqx.json", `{"maxConnsPerHost": 2, "compression": true}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxConnsPerHost)
	assert.True(t, cfg.GetCompression())
}

func TestFindAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())

	writeFile(t, dir, ".reqx.yml", "poolSize: 9\n")
	cfg, err = FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.PoolSize)
	assert.False(t, cfg.IsDefault())
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".reqx.yaml", "connectTimeout: -1\nmaxConnsPerHost: 5000\n")

	_, err := LoadConfig(path)
	require.Error(t, err)

	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	fields := fe.Fields()
	assert.Contains(t, fields, "connectTimeout")
	assert.Contains(t, fields, "maxConnsPerHost")
}

func TestLoadConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".reqx.yaml", "headers: [unclosed\n")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1", "B": "1"}

	merged := base.Merge(&Config{
		MaxConnsPerHost: 10,
		KeepAlive:       BoolPtr(false),
		Headers:         map[string]string{"B": "2"},
	})

	assert.Equal(t, 10, merged.MaxConnsPerHost)
	assert.False(t, merged.GetKeepAlive())
	assert.Equal(t, 30000, merged.ConnectTimeout)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Equal(t, "1", base.Headers["B"], "merge does not modify the receiver")
	assert.Same(t, base, base.Merge(nil))
}

func TestConfig_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.History = "history.db"

	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveConfig(path))

		loaded, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "history.db", loaded.History)
		assert.Equal(t, cfg.MaxBodySize, loaded.MaxBodySize)
	}
}

func TestConfig_SessionOptions(t *testing.T) {
	cfg := DefaultConfig().Merge(&Config{
		ConnectTimeout:  1500,
		TransferTimeout: 2000,
		MaxConnsPerHost: 3,
		Compression:     BoolPtr(true),
		Headers:         map[string]string{"X-Env": "test"},
		RateLimit:       100,
	})

	opts, err := cfg.SessionOptions()
	require.NoError(t, err)

	s, err := http.NewSession(opts...)
	require.NoError(t, err)
	defer s.Close()

	settings := s.Settings()
	assert.Equal(t, 1500*time.Millisecond, settings.ConnectTimeout)
	assert.Equal(t, 2*time.Second, settings.TransferTimeout)
	assert.Equal(t, 3, settings.MaxConnsPerHost)
	assert.True(t, settings.Compression)
	assert.Equal(t, 300*time.Second, settings.DNSCacheTTL)
}

func TestConfig_SessionOptions_BadHeader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Headers = map[string]string{"Bad Name": "x"}

	_, err := cfg.SessionOptions()
	assert.ErrorIs(t, err, http.ErrInvalidArgument)
}
