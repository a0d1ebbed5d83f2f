package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the tiered cache and the response cache
// middleware built on it. When Enabled is false the middleware is a no-op,
// although the cache itself is still used for permission lookups.
// MemoryTTL and RedisTTL are the lifetimes of entries in each tier;
// MaxEntries bounds the in-process tier.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	MemoryTTL    time.Duration
	RedisTTL     time.Duration
	MaxEntries   int
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig. Defaults
// are used when variables are not set. All methods are upper-cased.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		MemoryTTL:    envDur("CACHE_MEMORY_TTL", 30*time.Second),
		RedisTTL:     envDur("CACHE_TTL", 5*time.Minute),
		MaxEntries:   envInt("CACHE_MAX_ENTRIES", 5000),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if cfg.MaxEntries < 1 {
		cfg.MaxEntries = 1
	}
	if cfg.MemoryTTL > cfg.RedisTTL {
		cfg.MemoryTTL = cfg.RedisTTL
	}
	return cfg
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
