//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/config"
)

func initializeApp(cfg *config.Config, logger zerolog.Logger) (*App, func(), error) {
	wire.Build(appSet)
	return nil, nil, nil
}
