//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"carebot/internal"
	"carebot/internal/bot"
	"carebot/internal/controllers"
	"carebot/internal/engine"
	"carebot/internal/export"
	"carebot/internal/gateway"
	"carebot/internal/providers"
	"carebot/internal/store"
	"carebot/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		ProvideCatalog,
		store.NewProgressStore,

		gateway.NewClassifier,
		gateway.NewSpecialist,
		engine.NewEngine,

		bot.NewTelegramClient,
		bot.NewBot,

		export.NewZstdCompressor,
		ProvideExporter,
		ProvideRetention,
		export.NewScheduler,

		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
