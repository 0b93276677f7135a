package internal

import (
	"net/http"

	"carebot/internal/controllers"
	"carebot/internal/providers"
	"carebot/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/stats", http.HandlerFunc(apiController.GetStats))
	routers.Get("/answers", http.HandlerFunc(apiController.GetAnswers))
	routers.Get("/export", http.HandlerFunc(apiController.GetExport))
	return routers
}
