package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 连接池参数
// 同步任务和 HTTP 请求共用一个池，上限给足避免批量迁移时排队
const (
	maxIdleConns    = 10
	maxOpenConns    = 100
	connMaxLifetime = time.Hour
)

// InitDB 打开数据库并完成自动迁移
// dsn: postgres 连接串
// models: 需要 AutoMigrate 的结构体指针
func InitDB(dsn string, models ...interface{}) *gorm.DB {
	// 默认只打印慢查询和错误，DB_LOG_SQL=1 时打印全部 SQL
	logMode := logger.Warn
	if os.Getenv("DB_LOG_SQL") == "1" {
		logMode = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		log.Fatalf("[DB] 连接失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("[DB] 获取底层连接池失败: %v", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	log.Println("[DB] 数据库连接成功")

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			log.Fatalf("[DB] 自动迁移失败: %v", err)
		}
	}

	return db
}
