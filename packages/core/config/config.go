package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

// Config holds the session-wide settings for reqx.
type Config struct {
	ConnectTimeout  int               `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty" validate:"gte=0"`   // milliseconds
	TransferTimeout int               `json:"transferTimeout,omitempty" yaml:"transferTimeout,omitempty" validate:"gte=0"` // milliseconds, 0 = none
	KeepAlive       *bool             `json:"keepAlive,omitempty" yaml:"keepAlive,omitempty"`
	MaxConnsPerHost int               `json:"maxConnsPerHost,omitempty" yaml:"maxConnsPerHost,omitempty" validate:"gte=0,lte=1000"`
	DNSCacheTTL     *int              `json:"dnsCacheTTL,omitempty" yaml:"dnsCacheTTL,omitempty" validate:"omitempty,gte=0"` // seconds, 0 = off
	Compression     *bool             `json:"compression,omitempty" yaml:"compression,omitempty"`
	MaxBodySize     int64             `json:"maxBodySize,omitempty" yaml:"maxBodySize,omitempty" validate:"gte=0"` // bytes
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`                          // Default headers for all requests
	Cookies         map[string]string `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	CookieJar       string            `json:"cookieJar,omitempty" yaml:"cookieJar,omitempty"`
	RateLimit       float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty" validate:"gte=0"` // requests per second
	Burst           int               `json:"burst,omitempty" yaml:"burst,omitempty" validate:"gte=0"`
	PoolSize        int               `json:"poolSize,omitempty" yaml:"poolSize,omitempty" validate:"gte=0,lte=1000"`
	History         string            `json:"history,omitempty" yaml:"history,omitempty"` // sqlite database path
	Verbose         *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetKeepAlive returns the keep-alive setting, defaulting to true
func (c *Config) GetKeepAlive() bool {
	return getBool(c.KeepAlive, true)
}

// GetCompression returns the compression setting, defaulting to false
func (c *Config) GetCompression() bool {
	return getBool(c.Compression, false)
}

func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".reqx.yaml",
	".reqx.yml",
	"reqx.yaml",
	".reqx.json",
	"reqx.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if err := decode(path, data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// decode picks JSON or YAML by file extension. Unknown extensions are
// parsed as YAML, which also accepts JSON.
func decode(path string, data []byte, v any) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.ConnectTimeout > 0 {
		result.ConnectTimeout = other.ConnectTimeout
	}
	if other.TransferTimeout > 0 {
		result.TransferTimeout = other.TransferTimeout
	}
	if other.MaxConnsPerHost > 0 {
		result.MaxConnsPerHost = other.MaxConnsPerHost
	}
	if other.MaxBodySize > 0 {
		result.MaxBodySize = other.MaxBodySize
	}
	if other.CookieJar != "" {
		result.CookieJar = other.CookieJar
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.Burst > 0 {
		result.Burst = other.Burst
	}
	if other.PoolSize > 0 {
		result.PoolSize = other.PoolSize
	}
	if other.History != "" {
		result.History = other.History
	}

	// Pointer fields only override when explicitly set in other
	if other.DNSCacheTTL != nil {
		result.DNSCacheTTL = other.DNSCacheTTL
	}
	if other.KeepAlive != nil {
		result.KeepAlive = other.KeepAlive
	}
	if other.Compression != nil {
		result.Compression = other.Compression
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	result.Headers = mergeMap(c.Headers, other.Headers)
	result.Cookies = mergeMap(c.Cookies, other.Cookies)

	return &result
}

func mergeMap(base, over map[string]string) map[string]string {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// SaveConfig writes the configuration as YAML, or JSON for a .json path.
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// SessionOptions converts the configuration into session options.
func (c *Config) SessionOptions() ([]http.Option, error) {
	opts := []http.Option{
		http.WithKeepAlive(c.GetKeepAlive()),
		http.WithCompression(c.GetCompression()),
	}
	if c.ConnectTimeout > 0 {
		opts = append(opts, http.WithConnectTimeout(time.Duration(c.ConnectTimeout)*time.Millisecond))
	}
	if c.TransferTimeout > 0 {
		opts = append(opts, http.WithTransferTimeout(time.Duration(c.TransferTimeout)*time.Millisecond))
	}
	if c.MaxConnsPerHost > 0 {
		opts = append(opts, http.WithMaxConnsPerHost(c.MaxConnsPerHost))
	}
	if c.DNSCacheTTL != nil {
		opts = append(opts, http.WithDNSCacheTTL(time.Duration(*c.DNSCacheTTL)*time.Second))
	}
	if c.MaxBodySize > 0 {
		opts = append(opts, http.WithMaxBodySize(c.MaxBodySize))
	}
	if len(c.Headers) > 0 {
		headers, err := http.HeadersFromMap(c.Headers)
		if err != nil {
			return nil, fmt.Errorf("default headers: %w", err)
		}
		opts = append(opts, http.WithDefaultHeaders(headers))
	}
	if len(c.Cookies) > 0 {
		opts = append(opts, http.WithDefaultCookies(http.NewCookies(c.Cookies)))
	}
	if c.CookieJar != "" {
		opts = append(opts, http.WithCookieJar(c.CookieJar))
	}
	if c.RateLimit > 0 {
		burst := c.Burst
		if burst == 0 {
			burst = 1
		}
		opts = append(opts, http.WithThrottle(c.RateLimit, burst))
	}
	return opts, nil
}
