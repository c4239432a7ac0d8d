//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"cryptoetl/internal/config"
	"cryptoetl/internal/svc"
)

// initApp builds the ServiceContext. The returned cleanup closes the archive
// writer and the database pool.
func initApp(cfg *config.Config) (*svc.ServiceContext, func(), error) {
	panic(wire.Build(svc.ProviderSet))
}
