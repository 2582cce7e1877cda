package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
)

// SyncLogRepository 同步审计日志仓储接口
type SyncLogRepository interface {
	Append(ctx context.Context, entry *model.SyncLog) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]model.SyncLog, error)
}

type syncLogRepo struct {
	db *gorm.DB
}

// NewSyncLogRepository 创建审计日志仓储
func NewSyncLogRepository(db *gorm.DB) SyncLogRepository {
	return &syncLogRepo{db: db}
}

func (r *syncLogRepo) Append(ctx context.Context, entry *model.SyncLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *syncLogRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]model.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []model.SyncLog
	err := r.db.WithContext(ctx).
		Where("marketplace_account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
