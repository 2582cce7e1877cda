package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"gorm.io/datatypes"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
	"github.com/Souid83/Gestion-Stock-sub001/internal/repository"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/ebay"
	netpkg "github.com/Souid83/Gestion-Stock-sub001/pkg/net"
)

// StockSyncItem 待推送的库存差异项 (派生值，不落库)
type StockSyncItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// StockService 库存数量收敛引擎
// 方向固定：内部权威库存 -> 远端。比较是严格相等，
// 差一个也算不一致，没有 "差不多就行"
type StockService struct {
	Accounts repository.AccountRepository
	Tokens   repository.TokenRepository
	Mappings repository.MappingRepository
	Products repository.ProductRepository
	SyncLogs repository.SyncLogRepository

	HTTP *http.Client

	// APIBase 非空时覆盖按环境解析的地址 (测试注入 stub 用)
	APIBase string
}

// NewStockService 工厂方法
func NewStockService(accounts repository.AccountRepository, tokens repository.TokenRepository,
	mappings repository.MappingRepository, products repository.ProductRepository,
	syncLogs repository.SyncLogRepository) *StockService {
	return &StockService{
		Accounts: accounts,
		Tokens:   tokens,
		Mappings: mappings,
		Products: products,
		SyncLogs: syncLogs,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *StockService) apiBase(environment string) string {
	if s.APIBase != "" {
		return s.APIBase
	}
	return ebay.EndpointsFor(environment).APIBaseURL
}

// ComputeMismatches 纯函数：内部库存与远端快照逐 SKU 比对
// 已关联 + 未忽略 + 内部数量已知 + 数值不等 -> 推送候选
func ComputeMismatches(products []model.Product, mappings []model.ListingMapping) []StockSyncItem {
	byID := make(map[int64]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	items := make([]StockSyncItem, 0)
	for i := range mappings {
		m := &mappings[i]
		if !m.IsMapped() || m.Ignored {
			continue
		}
		product := byID[m.ProductID]
		if product == nil {
			continue
		}
		if product.Quantity != m.RemoteQuantity {
			items = append(items, StockSyncItem{SKU: m.RemoteSKU, Quantity: product.Quantity})
		}
	}
	return items
}

// ComputeAccountMismatches 从仓储装载后调用 ComputeMismatches
func (s *StockService) ComputeAccountMismatches(ctx context.Context, accountID int64) ([]StockSyncItem, error) {
	mappings, err := s.Mappings.ListMapped(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(mappings))
	for i := range mappings {
		ids = append(ids, mappings[i].ProductID)
	}
	products, err := s.Products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	return ComputeMismatches(products, mappings), nil
}

// PushQuantities 把内部库存批量推到远端
// 对调用方而言整个调用是原子的：平台的部分失败也折算成单个错误
// 返回给 UI 层——已知限制，此路径没有逐 SKU 粒度，不要在这里掩盖
func (s *StockService) PushQuantities(ctx context.Context, accountID int64, items []StockSyncItem) error {
	// 1. 前置检查
	account, token, err := resolveAccountAndToken(ctx, s.Accounts, s.Tokens, accountID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	// 2. 组装批量请求
	reqBody := ebay.BulkUpdateQuantityReq{}
	for _, item := range items {
		reqBody.Requests = append(reqBody.Requests, ebay.PriceQuantityReq{
			SKU: item.SKU,
			ShipToLocationAvailability: &ebay.ShipToLocationAvailability{
				Quantity: item.Quantity,
			},
		})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	// 3. 单次批量调用
	apiURL := s.apiBase(account.Environment) + ebay.BulkUpdateQuantityPath
	resp, err := netpkg.FetchWithRetry(ctx, s.HTTP, func() (*http.Request, error) {
		return netpkg.BuildAPIRequest(ctx, http.MethodPost, apiURL, bytes.NewReader(payload), token.AccessToken, "")
	}, nil)
	if err != nil {
		s.appendAuditLog(ctx, accountID, len(items), 0, err.Error())
		return fmt.Errorf("库存推送网络失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		msg := truncate(string(body), 512)
		s.appendAuditLog(ctx, accountID, len(items), resp.StatusCode, msg)
		return fmt.Errorf("库存推送被平台拒绝: %d %s", resp.StatusCode, msg)
	}

	s.appendAuditLog(ctx, accountID, len(items), resp.StatusCode, "")
	return nil
}

func (s *StockService) appendAuditLog(ctx context.Context, accountID int64, count, httpStatus int, errMsg string) {
	outcome := model.OutcomeOK
	if errMsg != "" {
		outcome = model.OutcomeFail
	}

	meta, _ := json.Marshal(map[string]interface{}{"items": count})
	entry := &model.SyncLog{
		MarketplaceAccountID: accountID,
		Operation:            model.OperationStockPush,
		Outcome:              outcome,
		HTTPStatus:           httpStatus,
		ErrorMessage:         errMsg,
		Metadata:             datatypes.JSON(meta),
	}
	if err := s.SyncLogs.Append(ctx, entry); err != nil {
		log.Printf("[Stock] 账号 %d 审计日志写入失败: %v", accountID, err)
	}
}
