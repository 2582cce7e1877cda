package ebay

// ==================== 请求体 ====================

// BulkMigrateReq 批量迁移请求体 (上限 50 条)
type BulkMigrateReq struct {
	ListingIDs []string `json:"listingIds"`
}

// BulkMigrateMaxListings 单次批量迁移的官方上限
const BulkMigrateMaxListings = 50

// BulkUpdateQuantityReq 批量库存更新请求体
type BulkUpdateQuantityReq struct {
	Requests []PriceQuantityReq `json:"requests"`
}

// PriceQuantityReq 单个 SKU 的库存更新
type PriceQuantityReq struct {
	SKU                        string                      `json:"sku"`
	ShipToLocationAvailability *ShipToLocationAvailability `json:"shipToLocationAvailability,omitempty"`
}

type ShipToLocationAvailability struct {
	Quantity int `json:"quantity"`
}
