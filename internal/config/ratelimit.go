package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig configures the Redis token bucket. Public endpoints
// (menu, QR ordering, OTP) get their own, stricter bucket.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the authenticated API bucket settings.
func LoadRateLimitConfig() RateLimitConfig {
	return loadRateLimit("RATE_LIMIT", 60, "ip_user_route", "rl")
}

// LoadPublicRateLimitConfig reads the public API bucket settings.
func LoadPublicRateLimitConfig() RateLimitConfig {
	return loadRateLimit("PUBLIC_RATE_LIMIT", 20, "ip_route", "rlp")
}

func loadRateLimit(p string, capacity int, strategy, prefix string) RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool(p+"_ENABLED", true),
		Capacity:       envInt(p+"_CAPACITY", capacity),
		RefillTokens:   envInt(p+"_REFILL_TOKENS", 1),
		RefillInterval: envDur(p+"_REFILL_INTERVAL", time.Second),
		TTL:            envDur(p+"_TTL", 10*time.Minute),
		KeyStrategy:    envStr(p+"_KEY_STRATEGY", strategy),
		Prefix:         envStr(p+"_PREFIX", prefix),
		Debug:          envBool(p+"_DEBUG", false),
	}
	if b := envInt(p+"_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
