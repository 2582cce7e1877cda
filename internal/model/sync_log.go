package model

import (
	"gorm.io/datatypes"
)

// 同步操作常量
const (
	OperationInventoryMigrate = "inventory_migrate"
	OperationStockPush        = "stock_push"
)

// 同步结果常量
const (
	OutcomeOK    = "ok"    // 全部成功
	OutcomeRetry = "retry" // 部分成功，失败项可重提
	OutcomeFail  = "fail"  // 无一成功
)

// SyncLog 同步审计日志
// 每次迁移/库存推送结束后追加一行，dry_run 不落日志
type SyncLog struct {
	BaseModel
	MarketplaceAccountID int64  `gorm:"index;not null" json:"marketplace_account_id"`
	Operation            string `gorm:"size:40;index;not null" json:"operation"`
	Outcome              string `gorm:"size:10;not null" json:"outcome"`
	HTTPStatus           int    `gorm:"default:0" json:"http_status"`
	ErrorMessage         string `gorm:"type:text" json:"error_message,omitempty"`

	// {run_id, migrated, failed, total, batchesProcessed}
	Metadata datatypes.JSON `gorm:"comment:运行汇总" json:"metadata"`
}

func (SyncLog) TableName() string { return "sync_logs" }
