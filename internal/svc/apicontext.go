package svc

import (
	"context"
	"time"

	"cryptoetl/internal/analytics"
	"cryptoetl/internal/config"
	marketpersist "cryptoetl/internal/persistence/market"
)

// MarketReader is the analytics surface the HTTP API serves. *analytics.Reader
// satisfies it.
type MarketReader interface {
	Freshness(ctx context.Context, interval time.Duration, now time.Time) (analytics.Freshness, error)
	TopGainers(ctx context.Context, n int) ([]analytics.Mover, error)
	TopLosers(ctx context.Context, n int) ([]analytics.Mover, error)
	TopByMarketCap(ctx context.Context, n int) ([]analytics.CapEntry, error)
	TopByVolume(ctx context.Context, n int) ([]analytics.VolumeEntry, error)
	VolatilityRanking(ctx context.Context, n int) ([]analytics.VolatilityEntry, error)
	LatestSnapshots(ctx context.Context) ([]analytics.Coin, error)
	MarketSummary(ctx context.Context) (analytics.Summary, error)
	PriceHistory(ctx context.Context, coinID string, limit int) ([]analytics.HistoryPoint, error)
	Dominance(ctx context.Context, n int) ([]analytics.DominanceEntry, error)
	PriceTiers(ctx context.Context) ([]analytics.Tier, error)
	LiquidityRatio(ctx context.Context, n int) ([]analytics.LiquidityEntry, error)
	Sentiment(ctx context.Context) (analytics.Sentiment, error)
}

// APIContext carries the analytics server's dependencies.
type APIContext struct {
	Config config.APIConfig
	Reader MarketReader
	Now    func() time.Time

	cleanup func()
}

// NewAPIContext opens the Postgres pool read by the analytics API. With Redis
// configured, /latest is served from the ETL's latest-batch mirror.
func NewAPIContext(c config.APIConfig) (*APIContext, error) {
	conn, cleanup, err := OpenPostgres(c.Postgres)
	if err != nil {
		return nil, err
	}
	store := marketpersist.NewStore(conn, marketpersist.WithOpTimeout(c.Postgres.OpTimeout))
	var opts []analytics.ReaderOption
	if c.RedisEnabled() {
		opts = append(opts, analytics.WithLatestCache(newLatestCache(c.Redis)))
	}
	return &APIContext{
		Config:  c,
		Reader:  analytics.NewReader(store, opts...),
		Now:     time.Now,
		cleanup: cleanup,
	}, nil
}

// Close releases the connection pool.
func (a *APIContext) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
