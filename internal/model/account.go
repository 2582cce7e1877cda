package model

// 平台常量
const (
	ProviderEbay = "ebay"
)

// MarketplaceAccount 已连接的市场卖家账号
// 自然键 (provider, environment, external_account_id)，
// OAuth 回调按自然键 UPSERT，断开连接只停用不删除
type MarketplaceAccount struct {
	BaseModel
	// 1. 核心身份
	Provider          string `gorm:"size:20;not null;default:'ebay';uniqueIndex:uk_account_natural" json:"provider"`
	Environment       string `gorm:"size:20;not null;uniqueIndex:uk_account_natural;comment:sandbox/production 决定 API Host" json:"environment"`
	ExternalAccountID string `gorm:"size:100;not null;uniqueIndex:uk_account_natural;comment:平台侧卖家账号 ID" json:"external_account_id"`
	ShopName          string `gorm:"size:100" json:"shop_name"`

	// 2. 应用凭证 (可空，空时回退 ProviderCredential 表)
	ClientID              string `gorm:"size:100" json:"-"`
	ClientSecretEncrypted string `gorm:"size:512" json:"-"`
	ClientSecretIV        string `gorm:"size:64" json:"-"`

	// 3. 状态
	// false 是零值，Create 时会落到列默认 true，停用只能走显式 Update
	IsActive bool `gorm:"default:true;index" json:"is_active"`

	// 4. 关联关系
	// 一个账号多条 Token 记录，实际生效的永远是最新一条
	Tokens []OAuthToken `gorm:"foreignKey:AccountID" json:"-"`
}

func (MarketplaceAccount) TableName() string { return "marketplace_accounts" }

// HasOwnCredentials 账号是否自带应用凭证
func (a *MarketplaceAccount) HasOwnCredentials() bool {
	return a.ClientID != "" && a.ClientSecretEncrypted != ""
}

// ProviderCredential 按 (平台, 环境) 维度保存的应用凭证
// client_secret 只存密文，由 pkg/secret 统一加解密
type ProviderCredential struct {
	BaseModel
	Provider              string `gorm:"size:20;not null;uniqueIndex:uk_provider_env" json:"provider"`
	Environment           string `gorm:"size:20;not null;uniqueIndex:uk_provider_env" json:"environment"`
	ClientID              string `gorm:"size:100;not null" json:"-"`
	ClientSecretEncrypted string `gorm:"size:512;not null" json:"-"`
	EncryptionIV          string `gorm:"size:64;not null" json:"-"`
	RedirectURI           string `gorm:"size:255" json:"redirect_uri"`
}

func (ProviderCredential) TableName() string { return "provider_credentials" }
