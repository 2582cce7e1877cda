package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
)

// ==================== 接口定义 ====================

// AccountRepository 市场账号仓储接口
type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*model.MarketplaceAccount, error)
	// GetActive 按 ID 取启用中的指定平台账号
	GetActive(ctx context.Context, id int64, provider string) (*model.MarketplaceAccount, error)
	// UpsertByNaturalKey 按 (provider, environment, external_account_id) 插入或更新
	UpsertByNaturalKey(ctx context.Context, account *model.MarketplaceAccount) error
	// Deactivate 停用账号 (断开连接时调用，永不硬删)
	Deactivate(ctx context.Context, id int64) error
	ListActive(ctx context.Context) ([]model.MarketplaceAccount, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

// ==================== 仓储实现 ====================

type accountRepo struct {
	db *gorm.DB
}

// NewAccountRepository 创建市场账号仓储
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) GetByID(ctx context.Context, id int64) (*model.MarketplaceAccount, error) {
	var account model.MarketplaceAccount
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) GetActive(ctx context.Context, id int64, provider string) (*model.MarketplaceAccount, error) {
	var account model.MarketplaceAccount
	err := r.db.WithContext(ctx).
		Where("id = ? AND provider = ? AND is_active = ?", id, provider, true).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) UpsertByNaturalKey(ctx context.Context, account *model.MarketplaceAccount) error {
	// 生产环境回调的既定策略：自然键冲突时更新店名、凭证与启用状态
	// (sandbox 早期版本是裸 insert，会撞唯一索引，不再沿用)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"}, {Name: "environment"}, {Name: "external_account_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"shop_name", "client_id", "client_secret_encrypted", "client_secret_iv",
			"is_active", "updated_at",
		}),
	}).Create(account).Error
}

func (r *accountRepo) Deactivate(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.MarketplaceAccount{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *accountRepo) ListActive(ctx context.Context) ([]model.MarketplaceAccount, error) {
	var accounts []model.MarketplaceAccount
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *accountRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.MarketplaceAccount{}).
		Where("id = ?", id).
		Updates(fields).Error
}
