package analytics

// Every query below reads from the newest batch via the latest CTE unless it
// is explicitly a history query. Aggregates are cast to float8 so they scan
// into float64, and wrapped in COALESCE so an empty table scans as zero.

const latestCTE = `WITH latest AS (SELECT MAX(extracted_at) AS max_time FROM crypto_market)`

const (
	queryLatestExtraction = `SELECT MAX(extracted_at) AS latest FROM crypto_market`

	queryTopGainers = latestCTE + `
SELECT coin_id, symbol, name, current_price::float8 AS current_price,
       price_change_24h::float8 AS price_change_24h, market_cap_rank
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
WHERE price_change_24h IS NOT NULL
ORDER BY price_change_24h DESC, market_cap_rank ASC
LIMIT $1`

	queryTopLosers = latestCTE + `
SELECT coin_id, symbol, name, current_price::float8 AS current_price,
       price_change_24h::float8 AS price_change_24h, market_cap_rank
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
WHERE price_change_24h IS NOT NULL
ORDER BY price_change_24h ASC, market_cap_rank ASC
LIMIT $1`

	queryTopByMarketCap = latestCTE + `
SELECT coin_id, symbol, name, current_price::float8 AS current_price,
       market_cap, market_cap_rank
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
ORDER BY market_cap_rank ASC, market_cap DESC
LIMIT $1`

	queryTopByVolume = latestCTE + `
SELECT coin_id, symbol, name, current_price::float8 AS current_price,
       market_cap, total_volume, price_change_24h::float8 AS price_change_24h
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
ORDER BY total_volume DESC
LIMIT $1`

	queryVolatilityRanking = latestCTE + `
SELECT coin_id, symbol, name, current_price::float8 AS current_price,
       price_change_24h::float8 AS price_change_24h, total_volume,
       volatility_score::float8 AS volatility_score,
       RANK() OVER (PARTITION BY cm.extracted_at ORDER BY volatility_score DESC) AS volatility_rank
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
ORDER BY volatility_score DESC
LIMIT $1`

	queryLatestSnapshots = latestCTE + `
SELECT coin_id, symbol, name, current_price::float8 AS current_price,
       market_cap, total_volume, price_change_24h::float8 AS price_change_24h,
       market_cap_rank, volatility_score::float8 AS volatility_score, extracted_at
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
ORDER BY market_cap_rank ASC, coin_id ASC`

	queryMarketSummary = latestCTE + `
SELECT COUNT(*) AS total_coins,
       COALESCE(SUM(market_cap), 0)::float8 AS total_market_cap,
       COALESCE(AVG(market_cap), 0)::float8 AS avg_market_cap,
       COALESCE(AVG(current_price), 0)::float8 AS avg_price,
       COALESCE(SUM(total_volume), 0)::float8 AS total_volume,
       COALESCE(AVG(price_change_24h), 0)::float8 AS avg_price_change,
       COALESCE(MAX(price_change_24h), 0)::float8 AS max_price_change,
       COALESCE(MIN(price_change_24h), 0)::float8 AS min_price_change,
       l.max_time AS last_updated
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
GROUP BY l.max_time`

	queryAverageMarketCap = latestCTE + `
SELECT COALESCE(AVG(market_cap), 0)::float8 AS avg_market_cap,
       COALESCE(SUM(market_cap), 0)::float8 AS total_market_value
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time`

	queryPriceHistory = `
SELECT coin_id, symbol, name, current_price::float8 AS current_price,
       market_cap, total_volume, price_change_24h::float8 AS price_change_24h, extracted_at
FROM crypto_market
WHERE coin_id = $1
ORDER BY extracted_at DESC
LIMIT $2`

	queryDominance = latestCTE + `,
total AS (
    SELECT SUM(market_cap) AS total_cap
    FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
)
SELECT coin_id, symbol, name, market_cap,
       COALESCE(ROUND(market_cap::numeric / NULLIF(total.total_cap, 0)::numeric * 100, 2), 0)::float8 AS dominance_pct
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
CROSS JOIN total
ORDER BY market_cap DESC
LIMIT $1`

	tierCase = `CASE
        WHEN current_price >= 10000 THEN 'Premium ($10K+)'
        WHEN current_price >= 1000 THEN 'High ($1K-$10K)'
        WHEN current_price >= 100 THEN 'Mid ($100-$1K)'
        WHEN current_price >= 1 THEN 'Low ($1-$100)'
        ELSE 'Micro (<$1)'
    END`

	queryPriceTiers = latestCTE + `
SELECT ` + tierCase + ` AS tier,
       COUNT(*) AS count,
       COALESCE(AVG(current_price), 0)::float8 AS avg_price,
       COALESCE(SUM(market_cap), 0)::float8 AS total_cap
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
GROUP BY 1
ORDER BY avg_price DESC`

	queryLiquidity = latestCTE + `
SELECT coin_id, symbol, name, current_price::float8 AS current_price,
       market_cap, total_volume,
       COALESCE(ROUND(total_volume::numeric / NULLIF(market_cap, 0)::numeric * 100, 4), 0)::float8 AS vol_mcap_ratio
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time
WHERE market_cap > 0
ORDER BY vol_mcap_ratio DESC
LIMIT $1`

	querySentiment = latestCTE + `
SELECT COUNT(*) FILTER (WHERE price_change_24h > 0) AS gainers_count,
       COUNT(*) FILTER (WHERE price_change_24h < 0) AS losers_count,
       COUNT(*) FILTER (WHERE price_change_24h = 0) AS unchanged_count,
       COUNT(*) AS total_count,
       COALESCE(ROUND(AVG(price_change_24h)::numeric, 2), 0)::float8 AS avg_change,
       COALESCE(ROUND(STDDEV(price_change_24h)::numeric, 2), 0)::float8 AS change_stddev
FROM crypto_market cm JOIN latest l ON cm.extracted_at = l.max_time`
)
