package archive

import "cryptoetl/pkg/market"

// Row is the flat DTO written by batch savers.
type Row struct {
	CoinID          string  `json:"coin_id" parquet:"coin_id"`
	Symbol          string  `json:"symbol" parquet:"symbol"`
	Name            string  `json:"name" parquet:"name"`
	CurrentPrice    float64 `json:"current_price" parquet:"current_price"`
	MarketCap       int64   `json:"market_cap" parquet:"market_cap"`
	TotalVolume     int64   `json:"total_volume" parquet:"total_volume"`
	PriceChange24h  float64 `json:"price_change_24h" parquet:"price_change_24h"`
	MarketCapRank   int32   `json:"market_cap_rank" parquet:"market_cap_rank"`
	VolatilityScore float64 `json:"volatility_score" parquet:"volatility_score"`
	ExtractedAtMs   int64   `json:"extracted_at_ms" parquet:"extracted_at_ms"`
}

// RowsFromBatch flattens a batch for saving.
func RowsFromBatch(b *market.Batch) []Row {
	if b == nil {
		return nil
	}
	rows := make([]Row, 0, len(b.Snapshots))
	for _, s := range b.Snapshots {
		rows = append(rows, Row{
			CoinID:          s.CoinID,
			Symbol:          s.Symbol,
			Name:            s.Name,
			CurrentPrice:    s.CurrentPrice,
			MarketCap:       s.MarketCap,
			TotalVolume:     s.TotalVolume,
			PriceChange24h:  s.PriceChange24h,
			MarketCapRank:   int32(s.MarketCapRank),
			VolatilityScore: s.VolatilityScore,
			ExtractedAtMs:   s.ExtractedAt.UnixMilli(),
		})
	}
	return rows
}
