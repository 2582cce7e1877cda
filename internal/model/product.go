package model

// Product 内部产品目录行
// 库存数量以本表为准，对外是只读协作方：
// 对账引擎按 SKU 精确查找，库存收敛引擎读 Quantity
type Product struct {
	BaseModel
	SKU          string  `gorm:"size:100;index;not null" json:"sku"`
	Name         string  `gorm:"size:255" json:"name"`
	Quantity     int     `gorm:"default:0;comment:内部权威库存" json:"quantity"`
	PriceAmount  float64 `gorm:"type:decimal(12,2);default:0" json:"price_amount"`
	CurrencyCode string  `gorm:"size:10;default:'EUR'" json:"currency_code"`
}

func (Product) TableName() string { return "products" }
