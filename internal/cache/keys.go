package cache

import (
	"strings"
	"time"

	"cryptoetl/internal/config"
)

// Namespace is the Redis key prefix for the application.
const Namespace = "cryptoetl"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// MarketLatestKey holds the JSON encoding of the most recently loaded batch.
func MarketLatestKey() string {
	return formatKey("market", "latest")
}

// MarketLatestAtKey holds the RFC3339Nano extracted_at of that batch.
func MarketLatestAtKey() string {
	return formatKey("market", "latest", "at")
}

// LatestBatchTTL outlives a few refresh intervals so readers never see a gap
// between loads.
func LatestBatchTTL(ttl TTLSet, interval time.Duration) time.Duration {
	base := ttl.Duration(TTLLong)
	if floor := 3 * interval; floor > base {
		return floor
	}
	return base
}
