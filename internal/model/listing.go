package model

// 同步状态常量
const (
	SyncStatusUnmapped = "unmapped" // 未关联内部产品
	SyncStatusOK       = "ok"       // 已关联且健康
	SyncStatusPending  = "pending"  // 关联动作进行中
	SyncStatusFailed   = "failed"   // 最近一次同步失败
)

// 关联来源常量
const (
	LinkSourceAuto    = "auto"    // SKU 精确匹配自动关联
	LinkSourceManual  = "manual"  // 人工指定产品
	LinkSourceCreated = "created" // 由远端在售记录新建产品
)

// ListingMapping 远端在售记录与内部产品的关联
// 约束：一个账号下 remote_id 至多关联一个内部产品。
// 首次对账某页时创建 (unmapped)，link/ignore/create 动作更新。
// "忽略" 只把行移出工作集，不动远端数据，也不反向解除 ok 状态
type ListingMapping struct {
	BaseModel
	AccountID int64  `gorm:"not null;uniqueIndex:uk_account_remote" json:"account_id"`
	RemoteID  string `gorm:"size:64;not null;uniqueIndex:uk_account_remote" json:"remote_id"`
	RemoteSKU string `gorm:"size:100;index" json:"remote_sku"`

	// 0 表示尚未关联
	ProductID int64 `gorm:"index;default:0" json:"product_id"`

	SyncStatus string `gorm:"size:20;index;default:'unmapped'" json:"sync_status"`
	LinkSource string `gorm:"size:20" json:"link_source"`
	Ignored    bool   `gorm:"default:false;index" json:"ignored"`

	// 远端快照 (对账页展示 + 库存收敛比对用)
	RemoteTitle    string  `gorm:"size:255" json:"remote_title"`
	RemoteQuantity int     `gorm:"default:0;comment:最近一次拉取的远端库存" json:"remote_quantity"`
	PriceAmount    float64 `gorm:"type:decimal(12,2);default:0" json:"price_amount"`
	CurrencyCode   string  `gorm:"size:10" json:"currency_code"`
}

func (ListingMapping) TableName() string { return "listing_mappings" }

// IsMapped 是否已关联内部产品
func (m *ListingMapping) IsMapped() bool {
	return m.ProductID > 0
}
