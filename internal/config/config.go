// Package config holds the typed Config struct enumerating every option
// spec §6 recognizes, with the documented defaults. File-format loading
// (YAML/TOML/etc.) is explicitly out of scope; cmd/corehttpd overrides
// fields via the standard flag package.
package config

import "time"

// TLSConfig is the optional TLS material, spec §6 `tls { cert, key }`.
type TLSConfig struct {
	Cert string
	Key  string
}

// Config enumerates every option spec §6 recognizes.
type Config struct {
	Port int

	ThreadPoolSize     int
	RequestQueueLimit  int
	RequestTimeout     time.Duration

	KeepAliveEnabled     bool
	KeepAliveTimeout     time.Duration
	KeepAliveMaxRequests int

	RequestBodyMaxBytes int64

	RateLimitEnabled     bool
	RateLimitPerSecond   float64
	RateLimitBurst       float64
	RateLimitMaxBuckets  int

	ZeroCopyThresholdBytes int64

	CompressionMinBytes           int
	CompressionMaxCacheFileBytes  int64
	CompressionCacheEntries       int

	ETagCacheEntries int

	SSEMaxConnectionsPerTopic int

	VirtualHosts map[string]string // host -> webroot

	TLS *TLSConfig
}

// Default returns a Config populated with every spec §6 default value.
func Default() Config {
	return Config{
		Port:                          8080,
		ThreadPoolSize:                0, // 0 = corehttp.New uses 32 workers
		RequestQueueLimit:             1024,
		RequestTimeout:                5 * time.Second,
		KeepAliveEnabled:              true,
		KeepAliveTimeout:              5 * time.Second,
		KeepAliveMaxRequests:          100,
		RequestBodyMaxBytes:           10 * 1024 * 1024,
		RateLimitEnabled:              true,
		RateLimitPerSecond:            50,
		RateLimitBurst:                100,
		RateLimitMaxBuckets:           10000,
		ZeroCopyThresholdBytes:        10_485_760,
		CompressionMinBytes:           256,
		CompressionMaxCacheFileBytes:  1_048_576,
		CompressionCacheEntries:       1000,
		ETagCacheEntries:              10000,
		SSEMaxConnectionsPerTopic:     1000,
		VirtualHosts:                  map[string]string{},
	}
}
