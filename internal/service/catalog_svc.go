package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
)

// ==================== 配置 ====================

// CatalogConfig 目录服务配置
type CatalogConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ==================== 服务实现 ====================

// CatalogService 内部目录服务的客户端 (外部协作方)
// "从远端记录新建产品" 的实际落地在目录服务侧，本客户端只负责调用。
// 产品表的写入权归目录服务，这里绝不直接插 products 表
type CatalogService struct {
	Config *CatalogConfig
	client *resty.Client
}

// NewCatalogService 工厂方法
func NewCatalogService(cfg *CatalogConfig) *CatalogService {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("x-api-key", cfg.APIKey)
	}

	return &CatalogService{
		Config: cfg,
		client: client,
	}
}

// createProductReq 新建产品请求体
type createProductReq struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	PriceAmount  float64 `json:"price_amount"`
	CurrencyCode string  `json:"currency_code"`
}

// createProductResp 新建产品响应
type createProductResp struct {
	ProductID int64  `json:"product_id"`
	Error     string `json:"error,omitempty"`
}

// CreateProductFromListing 按远端快照在内部目录新建产品
func (s *CatalogService) CreateProductFromListing(ctx context.Context, mapping *model.ListingMapping) (int64, error) {
	payload := createProductReq{
		SKU:          mapping.RemoteSKU,
		Name:         mapping.RemoteTitle,
		Quantity:     mapping.RemoteQuantity,
		PriceAmount:  mapping.PriceAmount,
		CurrencyCode: mapping.CurrencyCode,
	}

	var result createProductResp
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/internal/products")

	if err != nil {
		return 0, fmt.Errorf("目录服务请求失败: %v", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return 0, fmt.Errorf("目录服务返回 %d: %s", resp.StatusCode(), truncate(resp.String(), 256))
	}
	if result.ProductID == 0 {
		return 0, fmt.Errorf("目录服务未返回 product_id: %s", truncate(resp.String(), 256))
	}

	return result.ProductID, nil
}
