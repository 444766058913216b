package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/docuhub/vector-go/app/controllers"
	"github.com/docuhub/vector-go/internal/config"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Router("/stats", &controllers.StatsController{}, "get:Stats")

	documentController := &controllers.DocumentController{}
	// 注意：具体路由必须在参数路由之前，否则/random会被:doc_id匹配
	web.Router("/documents/random", documentController, "get:Random")
	web.Router("/documents/type/:type", documentController, "get:ByType")
	web.Router("/documents/:doc_id", documentController, "get:Get")

	web.Router("/search", &controllers.SearchController{}, "post:Search")

	web.Router("/admin/reprocess", &controllers.AdminController{}, "post:Reprocess")

	if config.GetAppConfig().Metrics.Enabled {
		web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")
	}
}
