package coingecko

import "cryptoetl/pkg/market"

func init() {
	market.RegisterSource("coingecko", func(name string, cfg *market.SourceConfig) (market.Source, error) {
		opts := []Option{WithName(name)}
		if cfg != nil {
			opts = append(opts,
				WithBaseURL(cfg.BaseURL),
				WithTimeout(cfg.Timeout),
				WithVSCurrency(cfg.VSCurrency),
				WithAPIKey(cfg.APIKey),
			)
		}
		return NewClient(opts...), nil
	})
}
