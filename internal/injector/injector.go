//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/events/bus"
	"github.com/driftsync/driftsync/internal/core/observability/log"
)

func ProvideLogger(cfg config.Config) *log.Logger {
	wire.Build(provideLevel, log.New)
	return nil
}

func ProvideEventBus() bus.EventBus {
	wire.Build(bus.New)
	return nil
}

func provideLevel(cfg config.Config) log.Level {
	return log.ParseLevel(cfg.Log.Level)
}
