// Package analytics answers the dashboard's read-only questions about the
// crypto_market table.
package analytics

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "cryptoetl/internal/cache"
	"cryptoetl/pkg/market"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// ErrCoinRequired is returned by PriceHistory for a blank coin id.
var ErrCoinRequired = errors.New("analytics: coin id is required")

// Querier is the read side of the market store.
type Querier interface {
	Query(ctx context.Context, dest any, query string, args ...any) error
	QueryRow(ctx context.Context, dest any, query string, args ...any) error
}

// LatestCache is the read side of the latest-batch mirror the ETL publishes.
// go-zero's cache.Cache satisfies it.
type LatestCache interface {
	GetCtx(ctx context.Context, key string, val any) error
}

// Reader runs the analytics queries.
type Reader struct {
	q      Querier
	latest LatestCache
}

// ReaderOption customises a Reader.
type ReaderOption func(*Reader)

// WithLatestCache serves LatestSnapshots from c when it holds the newest batch.
func WithLatestCache(c LatestCache) ReaderOption {
	return func(r *Reader) {
		r.latest = c
	}
}

// NewReader returns a Reader backed by q.
func NewReader(q Querier, opts ...ReaderOption) *Reader {
	r := &Reader{q: q}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ClampLimit maps n into 1..MaxLimit, using DefaultLimit for non-positive n.
func ClampLimit(n int) int {
	return clamp(n, DefaultLimit, MaxLimit)
}

func clamp(n, def, max int) int {
	switch {
	case n <= 0:
		return def
	case n > max:
		return max
	}
	return n
}

// LatestExtraction returns the newest extracted_at, or false for an empty table.
func (r *Reader) LatestExtraction(ctx context.Context) (time.Time, bool, error) {
	var row struct {
		Latest sql.NullTime `db:"latest"`
	}
	if err := r.q.QueryRow(ctx, &row, queryLatestExtraction); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("analytics: latest extraction: %w", err)
	}
	if !row.Latest.Valid {
		return time.Time{}, false, nil
	}
	return row.Latest.Time.UTC(), true, nil
}

// Freshness reports the age of the newest batch relative to now. Data is stale
// when there is none or it is older than interval.
func (r *Reader) Freshness(ctx context.Context, interval time.Duration, now time.Time) (Freshness, error) {
	at, ok, err := r.LatestExtraction(ctx)
	if err != nil {
		return Freshness{}, err
	}
	if !ok {
		return Freshness{Stale: true}, nil
	}
	age := now.Sub(at)
	if age < 0 {
		age = 0
	}
	return Freshness{ExtractedAt: at, HasData: true, Age: age, Stale: age > interval}, nil
}

// Staleness is Freshness reduced to (age, stale).
func (r *Reader) Staleness(ctx context.Context, interval time.Duration, now time.Time) (time.Duration, bool, error) {
	f, err := r.Freshness(ctx, interval, now)
	if err != nil {
		return 0, false, err
	}
	return f.Age, f.Stale, nil
}

func (r *Reader) TopGainers(ctx context.Context, n int) ([]Mover, error) {
	return queryList[Mover](ctx, r.q, "top gainers", queryTopGainers, ClampLimit(n))
}

func (r *Reader) TopLosers(ctx context.Context, n int) ([]Mover, error) {
	return queryList[Mover](ctx, r.q, "top losers", queryTopLosers, ClampLimit(n))
}

func (r *Reader) TopByMarketCap(ctx context.Context, n int) ([]CapEntry, error) {
	return queryList[CapEntry](ctx, r.q, "top by market cap", queryTopByMarketCap, ClampLimit(n))
}

func (r *Reader) TopByVolume(ctx context.Context, n int) ([]VolumeEntry, error) {
	return queryList[VolumeEntry](ctx, r.q, "top by volume", queryTopByVolume, ClampLimit(n))
}

// VolatilityRanking ranks the latest batch by volatility_score; ties share a rank.
func (r *Reader) VolatilityRanking(ctx context.Context, n int) ([]VolatilityEntry, error) {
	return queryList[VolatilityEntry](ctx, r.q, "volatility ranking", queryVolatilityRanking, ClampLimit(n))
}

// LatestSnapshots returns every row of the newest batch ordered by rank.
func (r *Reader) LatestSnapshots(ctx context.Context) ([]Coin, error) {
	if coins, ok := r.cachedLatest(ctx); ok {
		return coins, nil
	}
	return queryList[Coin](ctx, r.q, "latest snapshots", queryLatestSnapshots)
}

// cachedLatest returns the mirrored batch only when it is the newest one in
// the table. A mirror left behind by a partially failed load is ignored.
func (r *Reader) cachedLatest(ctx context.Context) ([]Coin, bool) {
	if r.latest == nil {
		return nil, false
	}
	var batch market.Batch
	if err := r.latest.GetCtx(ctx, cachekeys.MarketLatestKey(), &batch); err != nil {
		if !errors.Is(err, sqlx.ErrNotFound) {
			logx.WithContext(ctx).Errorf("analytics: read latest mirror err=%v", err)
		}
		return nil, false
	}
	if len(batch.Snapshots) == 0 {
		return nil, false
	}
	at, ok, err := r.LatestExtraction(ctx)
	if err != nil || !ok || !at.Equal(batch.ExtractedAt) {
		return nil, false
	}

	coins := make([]Coin, 0, len(batch.Snapshots))
	for _, s := range batch.Snapshots {
		coins = append(coins, Coin{
			CoinID:          s.CoinID,
			Symbol:          s.Symbol,
			Name:            s.Name,
			CurrentPrice:    s.CurrentPrice,
			MarketCap:       s.MarketCap,
			TotalVolume:     s.TotalVolume,
			PriceChange24h:  s.PriceChange24h,
			MarketCapRank:   s.MarketCapRank,
			VolatilityScore: s.VolatilityScore,
			ExtractedAt:     s.ExtractedAt.UTC(),
		})
	}
	slices.SortFunc(coins, func(a, b Coin) int {
		return cmp.Or(cmp.Compare(a.MarketCapRank, b.MarketCapRank), cmp.Compare(a.CoinID, b.CoinID))
	})
	return coins, true
}

// MarketSummary aggregates the newest batch. An empty table yields a zero Summary.
func (r *Reader) MarketSummary(ctx context.Context) (Summary, error) {
	var out Summary
	err := r.q.QueryRow(ctx, &out, queryMarketSummary)
	if errors.Is(err, sqlx.ErrNotFound) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("analytics: market summary: %w", err)
	}
	out.LastUpdated = out.LastUpdated.UTC()
	return out, nil
}

func (r *Reader) AverageMarketCap(ctx context.Context) (CapStats, error) {
	var out CapStats
	if err := r.row(ctx, "average market cap", &out, queryAverageMarketCap); err != nil {
		return CapStats{}, err
	}
	return out, nil
}

// PriceHistory returns one coin's rows across batches, newest first.
func (r *Reader) PriceHistory(ctx context.Context, coinID string, limit int) ([]HistoryPoint, error) {
	coinID = strings.TrimSpace(coinID)
	if coinID == "" {
		return nil, ErrCoinRequired
	}
	return queryList[HistoryPoint](ctx, r.q, "price history", queryPriceHistory,
		coinID, clamp(limit, DefaultHistoryLimit, MaxHistoryLimit))
}

// Dominance is each coin's share of the batch's total market cap in percent.
func (r *Reader) Dominance(ctx context.Context, n int) ([]DominanceEntry, error) {
	return queryList[DominanceEntry](ctx, r.q, "dominance", queryDominance, ClampLimit(n))
}

func (r *Reader) PriceTiers(ctx context.Context) ([]Tier, error) {
	return queryList[Tier](ctx, r.q, "price tiers", queryPriceTiers)
}

// LiquidityRatio ranks coins by 24h volume over market cap, in percent.
func (r *Reader) LiquidityRatio(ctx context.Context, n int) ([]LiquidityEntry, error) {
	return queryList[LiquidityEntry](ctx, r.q, "liquidity ratio", queryLiquidity, ClampLimit(n))
}

func (r *Reader) Sentiment(ctx context.Context) (Sentiment, error) {
	var out Sentiment
	if err := r.row(ctx, "sentiment", &out, querySentiment); err != nil {
		return Sentiment{}, err
	}
	return out, nil
}

func queryList[T any](ctx context.Context, q Querier, name, query string, args ...any) ([]T, error) {
	var out []T
	if err := q.Query(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("analytics: %s: %w", name, err)
	}
	return out, nil
}

func (r *Reader) row(ctx context.Context, name string, dest any, query string, args ...any) error {
	err := r.q.QueryRow(ctx, dest, query, args...)
	if err == nil || errors.Is(err, sqlx.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("analytics: %s: %w", name, err)
}
