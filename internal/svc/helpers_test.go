package svc

import (
	"cryptoetl/internal/config"
	"cryptoetl/pkg/confkit"
	"cryptoetl/pkg/market"
)

func sourceSection() confkit.Section[market.Config] {
	return confkit.Section[market.Config]{Value: config.DefaultSourceConfig()}
}
