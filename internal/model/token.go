package model

import (
	"time"

	"github.com/lib/pq"
)

// AccessTokenPlaceholder 回调尚未完成时的占位值
// 视同 Token 缺失，迁移前置检查会直接拒绝
const AccessTokenPlaceholder = "pending"

// OAuthToken 账号的 Token 记录
// 1:N 挂在 MarketplaceAccount 下，"当前 Token" 取
// updated_at 最新 (并列时 created_at 最新) 的一条。
// access_token 短命、不出服务端边界，明文保存；
// refresh_token 长期有效，只存 AEAD 密文 + IV
type OAuthToken struct {
	BaseModel
	AccountID int64 `gorm:"index;not null" json:"account_id"`

	AccessToken           string `gorm:"size:4096" json:"-"`
	RefreshTokenEncrypted string `gorm:"size:4096" json:"-"`
	EncryptionIV          string `gorm:"size:64" json:"-"`

	TokenType string         `gorm:"size:20;default:'Bearer'" json:"token_type"`
	Scopes    pq.StringArray `gorm:"type:text[]" json:"scopes"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (OAuthToken) TableName() string { return "oauth_tokens" }

// IsPlaceholder 是否还是授权中的占位记录
func (t *OAuthToken) IsPlaceholder() bool {
	return t.AccessToken == "" || t.AccessToken == AccessTokenPlaceholder
}

// ExpiresWithin Token 是否在 horizon 内过期 (保活任务用)
func (t *OAuthToken) ExpiresWithin(horizon time.Duration) bool {
	return time.Now().Add(horizon).After(t.ExpiresAt)
}
