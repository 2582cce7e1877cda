package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
)

// ==================== 接口定义 ====================

// TokenRepository Token 仓储接口
type TokenRepository interface {
	// GetCurrent 取账号的当前 Token：updated_at 最新，并列时 created_at 最新
	GetCurrent(ctx context.Context, accountID int64) (*model.OAuthToken, error)
	Insert(ctx context.Context, token *model.OAuthToken) error
	// UpdateAccessToken 字段级覆写：只更新 access_token / expires_at 并顶起 updated_at
	// 刷新流程绝不整行覆盖，保证并发刷新收敛到 last-write-wins
	UpdateAccessToken(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error
	// ListExpiring 取 horizon 内过期的当前 Token (保活任务用)
	ListExpiring(ctx context.Context, within time.Duration) ([]model.OAuthToken, error)
}

// ==================== 仓储实现 ====================

type tokenRepo struct {
	db *gorm.DB
}

// NewTokenRepository 创建 Token 仓储
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepo{db: db}
}

func (r *tokenRepo) GetCurrent(ctx context.Context, accountID int64) (*model.OAuthToken, error) {
	var token model.OAuthToken
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("updated_at DESC, created_at DESC").
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepo) Insert(ctx context.Context, token *model.OAuthToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *tokenRepo) UpdateAccessToken(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.OAuthToken{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token": accessToken,
			"expires_at":   expiresAt,
		}).Error
}

func (r *tokenRepo) ListExpiring(ctx context.Context, within time.Duration) ([]model.OAuthToken, error) {
	deadline := time.Now().Add(within)

	// 每个账号只取最新一条，再筛即将过期的
	// 子查询按账号分组取 max(updated_at)，避免刷到被淘汰的历史行
	sub := r.db.Model(&model.OAuthToken{}).
		Select("account_id, MAX(updated_at) AS max_updated").
		Group("account_id")

	var tokens []model.OAuthToken
	err := r.db.WithContext(ctx).
		Joins("JOIN (?) latest ON latest.account_id = oauth_tokens.account_id AND latest.max_updated = oauth_tokens.updated_at", sub).
		Where("oauth_tokens.expires_at <= ?", deadline).
		Find(&tokens).Error
	return tokens, err
}
