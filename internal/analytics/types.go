package analytics

import "time"

// Field sets below match the SELECT lists in queries.go column for column;
// go-zero's sqlx rejects rows that leave a tagged field unfilled.

type Mover struct {
	CoinID         string  `db:"coin_id" json:"coin_id"`
	Symbol         string  `db:"symbol" json:"symbol"`
	Name           string  `db:"name" json:"name"`
	CurrentPrice   float64 `db:"current_price" json:"current_price"`
	PriceChange24h float64 `db:"price_change_24h" json:"price_change_24h"`
	MarketCapRank  int     `db:"market_cap_rank" json:"market_cap_rank"`
}

type CapEntry struct {
	CoinID        string  `db:"coin_id" json:"coin_id"`
	Symbol        string  `db:"symbol" json:"symbol"`
	Name          string  `db:"name" json:"name"`
	CurrentPrice  float64 `db:"current_price" json:"current_price"`
	MarketCap     int64   `db:"market_cap" json:"market_cap"`
	MarketCapRank int     `db:"market_cap_rank" json:"market_cap_rank"`
}

type VolumeEntry struct {
	CoinID         string  `db:"coin_id" json:"coin_id"`
	Symbol         string  `db:"symbol" json:"symbol"`
	Name           string  `db:"name" json:"name"`
	CurrentPrice   float64 `db:"current_price" json:"current_price"`
	MarketCap      int64   `db:"market_cap" json:"market_cap"`
	TotalVolume    int64   `db:"total_volume" json:"total_volume"`
	PriceChange24h float64 `db:"price_change_24h" json:"price_change_24h"`
}

type VolatilityEntry struct {
	CoinID          string  `db:"coin_id" json:"coin_id"`
	Symbol          string  `db:"symbol" json:"symbol"`
	Name            string  `db:"name" json:"name"`
	CurrentPrice    float64 `db:"current_price" json:"current_price"`
	PriceChange24h  float64 `db:"price_change_24h" json:"price_change_24h"`
	TotalVolume     int64   `db:"total_volume" json:"total_volume"`
	VolatilityScore float64 `db:"volatility_score" json:"volatility_score"`
	VolatilityRank  int64   `db:"volatility_rank" json:"volatility_rank"`
}

// Coin is a full crypto_market row.
type Coin struct {
	CoinID          string    `db:"coin_id" json:"coin_id"`
	Symbol          string    `db:"symbol" json:"symbol"`
	Name            string    `db:"name" json:"name"`
	CurrentPrice    float64   `db:"current_price" json:"current_price"`
	MarketCap       int64     `db:"market_cap" json:"market_cap"`
	TotalVolume     int64     `db:"total_volume" json:"total_volume"`
	PriceChange24h  float64   `db:"price_change_24h" json:"price_change_24h"`
	MarketCapRank   int       `db:"market_cap_rank" json:"market_cap_rank"`
	VolatilityScore float64   `db:"volatility_score" json:"volatility_score"`
	ExtractedAt     time.Time `db:"extracted_at" json:"extracted_at"`
}

type Summary struct {
	TotalCoins     int64     `db:"total_coins" json:"total_coins"`
	TotalMarketCap float64   `db:"total_market_cap" json:"total_market_cap"`
	AvgMarketCap   float64   `db:"avg_market_cap" json:"avg_market_cap"`
	AvgPrice       float64   `db:"avg_price" json:"avg_price"`
	TotalVolume    float64   `db:"total_volume" json:"total_volume"`
	AvgPriceChange float64   `db:"avg_price_change" json:"avg_price_change"`
	MaxPriceChange float64   `db:"max_price_change" json:"max_price_change"`
	MinPriceChange float64   `db:"min_price_change" json:"min_price_change"`
	LastUpdated    time.Time `db:"last_updated" json:"last_updated"`
}

type CapStats struct {
	AvgMarketCap     float64 `db:"avg_market_cap" json:"avg_market_cap"`
	TotalMarketValue float64 `db:"total_market_value" json:"total_market_value"`
}

type HistoryPoint struct {
	CoinID         string    `db:"coin_id" json:"coin_id"`
	Symbol         string    `db:"symbol" json:"symbol"`
	Name           string    `db:"name" json:"name"`
	CurrentPrice   float64   `db:"current_price" json:"current_price"`
	MarketCap      int64     `db:"market_cap" json:"market_cap"`
	TotalVolume    int64     `db:"total_volume" json:"total_volume"`
	PriceChange24h float64   `db:"price_change_24h" json:"price_change_24h"`
	ExtractedAt    time.Time `db:"extracted_at" json:"extracted_at"`
}

type DominanceEntry struct {
	CoinID       string  `db:"coin_id" json:"coin_id"`
	Symbol       string  `db:"symbol" json:"symbol"`
	Name         string  `db:"name" json:"name"`
	MarketCap    int64   `db:"market_cap" json:"market_cap"`
	DominancePct float64 `db:"dominance_pct" json:"dominance_pct"`
}

type Tier struct {
	Tier     string  `db:"tier" json:"tier"`
	Count    int64   `db:"count" json:"count"`
	AvgPrice float64 `db:"avg_price" json:"avg_price"`
	TotalCap float64 `db:"total_cap" json:"total_cap"`
}

type LiquidityEntry struct {
	CoinID       string  `db:"coin_id" json:"coin_id"`
	Symbol       string  `db:"symbol" json:"symbol"`
	Name         string  `db:"name" json:"name"`
	CurrentPrice float64 `db:"current_price" json:"current_price"`
	MarketCap    int64   `db:"market_cap" json:"market_cap"`
	TotalVolume  int64   `db:"total_volume" json:"total_volume"`
	VolMcapRatio float64 `db:"vol_mcap_ratio" json:"vol_mcap_ratio"`
}

type Sentiment struct {
	Gainers      int64   `db:"gainers_count" json:"gainers_count"`
	Losers       int64   `db:"losers_count" json:"losers_count"`
	Unchanged    int64   `db:"unchanged_count" json:"unchanged_count"`
	Total        int64   `db:"total_count" json:"total_count"`
	AvgChange    float64 `db:"avg_change" json:"avg_change"`
	ChangeStddev float64 `db:"change_stddev" json:"change_stddev"`
}

// Freshness describes how old the newest loaded batch is.
type Freshness struct {
	ExtractedAt time.Time     `json:"extracted_at"`
	HasData     bool          `json:"has_data"`
	Age         time.Duration `json:"-"`
	Stale       bool          `json:"stale"`
}
