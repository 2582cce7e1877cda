package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Souid83/Gestion-Stock-sub001/internal/controller"
	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
	"github.com/Souid83/Gestion-Stock-sub001/internal/repository"
	"github.com/Souid83/Gestion-Stock-sub001/internal/router"
	"github.com/Souid83/Gestion-Stock-sub001/internal/service"
	"github.com/Souid83/Gestion-Stock-sub001/internal/task"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/database"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/secret"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// 0. 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 1. 初始化数据库
	db := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db)

	// 3. 启动定时任务
	initTasks(deps)

	// 4. 初始化路由
	r := gin.Default()
	router.InitRoutes(r, deps.Controllers.Auth, deps.Controllers.Listing, deps.Controllers.Sync)

	// 5. 启动服务
	startServer(r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers *Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Account    repository.AccountRepository
	Token      repository.TokenRepository
	Credential repository.CredentialRepository
	Mapping    repository.MappingRepository
	Product    repository.ProductRepository
	SyncLog    repository.SyncLogRepository
}

// Services 服务集合
type Services struct {
	Auth      *service.AuthService
	Catalog   *service.CatalogService
	Listing   *service.ListingService
	Migration *service.MigrationService
	Stock     *service.StockService
}

// Controllers 控制器集合
type Controllers struct {
	Auth    *controller.AuthController
	Listing *controller.ListingController
	Sync    *controller.SyncController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN",
		"host=localhost user=postgres password=postgres dbname=stock_sync port=5432 sslmode=disable")

	return database.InitDB(dsn,
		// Account
		&model.MarketplaceAccount{}, &model.ProviderCredential{}, &model.OAuthToken{},
		// Catalog
		&model.Product{},
		// Sync
		&model.ListingMapping{}, &model.SyncLog{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := initRepositories(db)

	// -------- 加密密钥 --------
	cryptoKey, err := secret.KeyFromBase64(getEnv("TOKEN_CRYPTO_KEY", ""))
	if err != nil {
		log.Fatalf("TOKEN_CRYPTO_KEY 无效 (需要 base64 的 32 字节): %v", err)
	}

	// -------- 业务服务 --------
	services := &Services{}
	services.Auth = service.NewAuthService(
		repos.Account, repos.Token, repos.Credential,
		cryptoKey, getEnv("OAUTH_REDIRECT_URI", ""),
	)
	services.Catalog = service.NewCatalogService(&service.CatalogConfig{
		BaseURL: getEnv("CATALOG_BASE_URL", "http://localhost:3000"),
		APIKey:  getEnv("CATALOG_API_KEY", ""),
	})
	services.Listing = service.NewListingService(
		repos.Account, repos.Token, repos.Mapping, repos.Product, services.Catalog,
	)
	services.Migration = service.NewMigrationService(
		repos.Account, repos.Token, repos.SyncLog, services.Auth, nil,
	)
	services.Stock = service.NewStockService(
		repos.Account, repos.Token, repos.Mapping, repos.Product, repos.SyncLog,
	)

	// -------- Controller 层 --------
	controllers := &Controllers{
		Auth:    controller.NewAuthController(services.Auth, getEnv("UI_CONNECTED_URL", "/connected")),
		Listing: controller.NewListingController(services.Listing),
		Sync:    controller.NewSyncController(services.Migration, services.Stock, repos.SyncLog),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
	}
}

// initRepositories 初始化所有仓库
func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account:    repository.NewAccountRepository(db),
		Token:      repository.NewTokenRepository(db),
		Credential: repository.NewCredentialRepository(db),
		Mapping:    repository.NewMappingRepository(db),
		Product:    repository.NewProductRepository(db),
		SyncLog:    repository.NewSyncLogRepository(db),
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) {
	// Token 刷新
	tokenTask := task.NewTokenTask(
		deps.Repos.Account,
		deps.Repos.Token,
		deps.Services.Auth,
	)
	tokenTask.Start()

	log.Println("定时任务已启动")
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
