package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout:  30000, // 30 seconds
		TransferTimeout: 0,
		KeepAlive:       BoolPtr(true),
		MaxConnsPerHost: 5,
		DNSCacheTTL:     IntPtr(300),
		Compression:     BoolPtr(false),
		MaxBodySize:     100 << 20,
		PoolSize:        4,
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.ConnectTimeout == defaults.ConnectTimeout &&
		c.TransferTimeout == defaults.TransferTimeout &&
		c.GetKeepAlive() == defaults.GetKeepAlive() &&
		c.MaxConnsPerHost == defaults.MaxConnsPerHost &&
		c.DNSCacheTTL != nil && *c.DNSCacheTTL == *defaults.DNSCacheTTL &&
		c.GetCompression() == defaults.GetCompression() &&
		c.MaxBodySize == defaults.MaxBodySize &&
		len(c.Headers) == 0 &&
		len(c.Cookies) == 0 &&
		c.CookieJar == "" &&
		c.RateLimit == 0 &&
		c.PoolSize == defaults.PoolSize &&
		c.History == "" &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
