package router

import (
	controller2 "github.com/Souid83/Gestion-Stock-sub001/internal/controller"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Souid83/Gestion-Stock-sub001/docs"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	authCtrl *controller2.AuthController,
	listingCtl *controller2.ListingController,
	syncCtl *controller2.SyncController) {
	// 1. Swagger 文档路由
	// 访问 http://localhost:8080/swagger/index.html 即可查看
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 2. API 路由组
	api := r.Group("/api")
	{
		// auth 鉴权组
		auth := api.Group("/auth")
		{
			// GET /api/auth/login
			auth.GET("/login", authCtrl.Login)

			// GET /api/auth/callback
			auth.GET("/callback", authCtrl.Callback)

			// POST /api/auth/refresh
			// 前端不应该直接提供 refresh 功能，定时任务会兜底；这里留给运维手动触发
			auth.POST("/refresh", authCtrl.Refresh)
		}
		// listings 对账组
		listings := api.Group("/listings")
		{
			// GET /api/listings
			listings.GET("", listingCtl.GetListings)
			listings.POST("/autolink", listingCtl.AutoLink)
			listings.POST("/link", listingCtl.Link)
			listings.POST("/ignore", listingCtl.Ignore)
			listings.POST("/create", listingCtl.Create)
		}
		// sync 同步组
		sync := api.Group("/sync")
		{
			// POST /api/sync/migrate
			sync.POST("/migrate", syncCtl.Migrate)
			sync.POST("/stock", syncCtl.StockPush)
			sync.GET("/stock/diff", syncCtl.StockDiff)
			sync.GET("/logs", syncCtl.GetSyncLogs)
		}
	}
}
