package market

import (
	"context"
	"time"
)

// Source fetches a bounded list of market entities from an upstream API.
type Source interface {
	// Fetch returns at most limit raw records ordered the way the upstream ranks them.
	Fetch(ctx context.Context, limit int) (*RawBatch, error)
}

// ArtifactSink receives raw upstream payloads for audit. Implementations must
// not block the caller; failures are theirs to report.
type ArtifactSink interface {
	SaveRaw(source string, fetchedAt time.Time, payload []byte)
}

// ArtifactSinkFunc adapts a function to ArtifactSink.
type ArtifactSinkFunc func(source string, fetchedAt time.Time, payload []byte)

// SaveRaw implements ArtifactSink.
func (f ArtifactSinkFunc) SaveRaw(source string, fetchedAt time.Time, payload []byte) {
	f(source, fetchedAt, payload)
}

// RawSnapshot is one entity as received from the upstream API. Numeric fields
// hold whatever the decoder produced (json.Number, string, float64 or nil).
type RawSnapshot struct {
	ID             string // Upstream identifier, e.g. "bitcoin"
	Symbol         string // Ticker symbol as sent, any case
	Name           string // Display name
	CurrentPrice   any    // Last price in the quote currency
	MarketCap      any    // Market capitalisation
	TotalVolume    any    // 24h traded volume
	PriceChange24h any    // Absolute 24h price change
	MarketCapRank  any    // Rank by market cap, may be null
}

// RawBatch is the result of a single extraction call.
type RawBatch struct {
	Source    string
	FetchedAt time.Time
	Records   []RawSnapshot
	Dropped   int // records discarded for missing id or symbol
}

// Snapshot is a typed, schema-ready market record.
type Snapshot struct {
	CoinID          string    `json:"coin_id"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	CurrentPrice    float64   `json:"current_price"`
	MarketCap       int64     `json:"market_cap"`
	TotalVolume     int64     `json:"total_volume"`
	PriceChange24h  float64   `json:"price_change_24h"`
	MarketCapRank   int       `json:"market_cap_rank"`
	VolatilityScore float64   `json:"volatility_score"`
	ExtractedAt     time.Time `json:"extracted_at"`
}

// Batch is one extraction cycle's transformed records sharing ExtractedAt.
type Batch struct {
	ExtractedAt time.Time  `json:"extracted_at"`
	Snapshots   []Snapshot `json:"snapshots"`
}

// Len reports the number of snapshots in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Snapshots)
}

// ArtifactPublisher is implemented by sources that can hand raw payloads to an
// ArtifactSink.
type ArtifactPublisher interface {
	SetArtifactSink(sink ArtifactSink)
}
