package market

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// UnrankedSentinel is stored for entities the upstream does not rank. It sorts
// after every real rank so ORDER BY market_cap_rank keeps working.
const UnrankedSentinel = 9999

// Transform maps a raw batch to typed snapshots sharing one extracted_at.
// It performs no I/O and only fails when there is nothing to transform.
func Transform(raw *RawBatch, now time.Time) (*Batch, error) {
	if raw == nil || len(raw.Records) == 0 {
		src := ""
		if raw != nil {
			src = raw.Source
		}
		return nil, &EmptyBatchError{Source: src}
	}

	// Postgres keeps microseconds; truncating here keeps the conflict key stable on reload.
	extractedAt := now.UTC().Truncate(time.Microsecond)
	out := &Batch{
		ExtractedAt: extractedAt,
		Snapshots:   make([]Snapshot, 0, len(raw.Records)),
	}
	for _, rec := range raw.Records {
		snap, ok := transformRecord(rec, extractedAt)
		if !ok {
			continue
		}
		out.Snapshots = append(out.Snapshots, snap)
	}
	return out, nil
}

func transformRecord(rec RawSnapshot, extractedAt time.Time) (Snapshot, bool) {
	id := strings.TrimSpace(rec.ID)
	symbol := strings.ToUpper(strings.TrimSpace(rec.Symbol))
	if id == "" || symbol == "" {
		return Snapshot{}, false
	}

	price, _ := toFloat64(rec.CurrentPrice)
	marketCap, _ := toInt64(rec.MarketCap)
	volume, volumeOK := toInt64(rec.TotalVolume)
	change, changeOK := toFloat64(rec.PriceChange24h)

	return Snapshot{
		CoinID:          id,
		Symbol:          symbol,
		Name:            strings.TrimSpace(rec.Name),
		CurrentPrice:    price,
		MarketCap:       marketCap,
		TotalVolume:     volume,
		PriceChange24h:  change,
		MarketCapRank:   toRank(rec.MarketCapRank),
		VolatilityScore: volatilityScore(change, changeOK, volume, volumeOK),
		ExtractedAt:     extractedAt,
	}, true
}

// VolatilityScore returns |change| * volume, or 0 when the product is not a
// usable non-negative number.
func VolatilityScore(change float64, volume int64) float64 {
	return volatilityScore(change, true, volume, true)
}

func volatilityScore(change float64, changeOK bool, volume int64, volumeOK bool) float64 {
	if !changeOK || !volumeOK {
		return 0
	}
	score := math.Abs(change) * float64(volume)
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return 0
	}
	return score
}

func toFloat64(v any) (float64, bool) {
	var (
		f  float64
		ok bool
	)
	switch t := v.(type) {
	case float64:
		f, ok = t, true
	case float32:
		f, ok = float64(t), true
	case int:
		f, ok = float64(t), true
	case int64:
		f, ok = float64(t), true
	case json.Number:
		parsed, err := t.Float64()
		f, ok = parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		f, ok = parsed, err == nil
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
	}
	f, ok := toFloat64(v)
	if !ok || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func toRank(v any) int {
	n, ok := toInt64(v)
	if !ok || n <= 0 || n > math.MaxInt32 {
		return UnrankedSentinel
	}
	return int(n)
}
