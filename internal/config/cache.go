package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache placed in front of
// the public catalog and availability reads.  When Enabled is false or no
// Redis client is configured, caching is disabled.  Methods lists the HTTP
// methods to cache.  KeyStrategy determines which parts of the request
// contribute to the key.  InvalidateOnWrite drops every cached entry under
// Prefix after a successful mutating request, so availability never lags a
// booking by more than the in-flight request.
type CacheConfig struct {
	Enabled           bool
	Methods           map[string]bool
	TTL               time.Duration
	KeyStrategy       string
	Prefix            string
	MaxBodyBytes      int
	InvalidateOnWrite bool
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:           getenv("CACHE_ENABLED", "true") == "true",
		Methods:           parseMethods(getenv("CACHE_METHODS", "GET")),
		TTL:               parseDur(getenv("CACHE_TTL", "30s")),
		KeyStrategy:       getenv("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:            getenv("CACHE_PREFIX", "hotel:cache"),
		MaxBodyBytes:      atoi(getenv("CACHE_MAX_BODY_BYTES", "1048576")),
		InvalidateOnWrite: getenv("CACHE_INVALIDATE_ON_WRITE", "true") == "true",
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
