package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
	"github.com/Souid83/Gestion-Stock-sub001/internal/repository"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/ebay"
	netpkg "github.com/Souid83/Gestion-Stock-sub001/pkg/net"
)

// ==================== 视图结构 ====================

// ListingView 对账页的单行视图 (不落库，远端字段 + 本地关联状态的合成)
type ListingView struct {
	RemoteID       string  `json:"remote_id"`
	RemoteSKU      string  `json:"remote_sku"`
	Title          string  `json:"title"`
	PriceAmount    float64 `json:"price_amount"`
	CurrencyCode   string  `json:"currency_code"`
	RemoteQuantity int     `json:"remote_quantity"`
	ProductID      int64   `json:"product_id,omitempty"`
	SyncStatus     string  `json:"sync_status"`
}

// ListingPage 一页对账视图
type ListingPage struct {
	Items []ListingView `json:"items"`
	Total int           `json:"total"`
}

// ListingFilter 本页过滤条件
type ListingFilter struct {
	RemoteSKU  string
	SyncStatus string
}

// LinkCandidate 自动关联的输入项
type LinkCandidate struct {
	RemoteID  string `json:"remote_id"`
	RemoteSKU string `json:"remote_sku"`
}

// 需人工裁决的状态
const (
	ReviewMultipleMatches = "multiple_matches"
	ReviewNotFound        = "not_found"
	ReviewConflict        = "conflict"
)

// ReviewItem 自动关联裁决不了、转人工的条目
type ReviewItem struct {
	RemoteSKU string `json:"remote_sku"`
	Status    string `json:"status"`
}

// AutoLinkSummary 自动关联结果汇总
type AutoLinkSummary struct {
	Linked      int          `json:"linked"`
	NeedsReview []ReviewItem `json:"needs_review"`
}

// ==================== 服务实现 ====================

// ListingService 在售记录对账引擎
// 状态机：unmapped -> {ok, pending, failed}，ok -> unmapped 不存在；
// "忽略" 把行移出工作集而不是重置状态
type ListingService struct {
	Accounts repository.AccountRepository
	Tokens   repository.TokenRepository
	Mappings repository.MappingRepository
	Products repository.ProductRepository
	Catalog  *CatalogService

	HTTP *http.Client

	// APIBase 非空时覆盖按环境解析的地址 (测试注入 stub 用)
	APIBase string
}

// NewListingService 工厂方法
func NewListingService(accounts repository.AccountRepository, tokens repository.TokenRepository,
	mappings repository.MappingRepository, products repository.ProductRepository,
	catalog *CatalogService) *ListingService {
	return &ListingService{
		Accounts: accounts,
		Tokens:   tokens,
		Mappings: mappings,
		Products: products,
		Catalog:  catalog,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ListingService) apiBase(environment string) string {
	if s.APIBase != "" {
		return s.APIBase
	}
	return ebay.EndpointsFor(environment).APIBaseURL
}

// ==================== 分页对账 ====================

// ListPage 拉取一页远端在售记录并与本地目录对账
// 首次见到的 remote_id 建 unmapped 映射行；已有映射只刷新快照，
// 关联状态 (product_id / sync_status) 本方法绝不改动
func (s *ListingService) ListPage(ctx context.Context, accountID int64, filter ListingFilter, page, pageSize int) (*ListingPage, error) {
	// 1. 前置检查
	account, token, err := resolveAccountAndToken(ctx, s.Accounts, s.Tokens, accountID)
	if err != nil {
		return nil, err
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	// 2. 拉取远端页
	apiURL := fmt.Sprintf("%s%s?limit=%d&offset=%d", s.apiBase(account.Environment), ebay.OfferPath, pageSize, offset)
	resp, err := netpkg.FetchWithRetry(ctx, s.HTTP, func() (*http.Request, error) {
		return netpkg.BuildAPIGetRequest(ctx, apiURL, token.AccessToken)
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("拉取在售记录失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("在售记录接口返回 %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var pageResp ebay.OfferPage
	if err := json.NewDecoder(resp.Body).Decode(&pageResp); err != nil {
		return nil, fmt.Errorf("在售记录响应解析失败: %v", err)
	}

	// 3. 合成视图 + 维护映射快照
	result := &ListingPage{Total: pageResp.Total}
	for i := range pageResp.Offers {
		offer := &pageResp.Offers[i]
		remoteID := offer.RemoteID()
		if remoteID == "" {
			continue
		}

		view := ListingView{
			RemoteID:       remoteID,
			RemoteSKU:      offer.SKU,
			RemoteQuantity: offer.AvailableQuantity,
			SyncStatus:     model.SyncStatusUnmapped,
		}
		if offer.Listing != nil {
			view.Title = offer.Listing.Title
		}
		if offer.PricingSummary != nil && offer.PricingSummary.Price != nil {
			if v, err := strconv.ParseFloat(offer.PricingSummary.Price.Value, 64); err == nil {
				view.PriceAmount = v
			}
			view.CurrencyCode = offer.PricingSummary.Price.Currency
		}

		// 首次对账建行 / 刷新快照，绝不动关联字段
		snapshot := &model.ListingMapping{
			AccountID:      accountID,
			RemoteID:       remoteID,
			RemoteSKU:      offer.SKU,
			SyncStatus:     model.SyncStatusUnmapped,
			RemoteTitle:    view.Title,
			RemoteQuantity: offer.AvailableQuantity,
			PriceAmount:    view.PriceAmount,
			CurrencyCode:   view.CurrencyCode,
		}
		if err := s.Mappings.UpsertSnapshot(ctx, snapshot); err != nil {
			log.Printf("[Reconcile] 账号 %d remote_id %s 快照入库失败: %v", accountID, remoteID, err)
		}

		// 回读关联状态 (已忽略的行移出工作集)
		mapping, err := s.Mappings.GetByRemoteID(ctx, accountID, remoteID)
		if err == nil {
			if mapping.Ignored {
				continue
			}
			view.ProductID = mapping.ProductID
			view.SyncStatus = mapping.SyncStatus
		}

		// 4. 本地过滤
		if filter.RemoteSKU != "" && view.RemoteSKU != filter.RemoteSKU {
			continue
		}
		if filter.SyncStatus != "" && view.SyncStatus != filter.SyncStatus {
			continue
		}

		result.Items = append(result.Items, view)
	}

	return result, nil
}

// ==================== 关联动作 ====================

// AutoLinkBySKU 按 SKU 精确匹配批量自动关联
// 铁律：引擎绝不在歧义里挑 "最像的"——
// 多个命中、零命中、与已有关联冲突，一律转人工裁决
func (s *ListingService) AutoLinkBySKU(ctx context.Context, accountID int64, candidates []LinkCandidate) (*AutoLinkSummary, error) {
	summary := &AutoLinkSummary{NeedsReview: []ReviewItem{}}

	for _, cand := range candidates {
		if cand.RemoteSKU == "" {
			summary.NeedsReview = append(summary.NeedsReview, ReviewItem{RemoteSKU: cand.RemoteSKU, Status: ReviewNotFound})
			continue
		}

		products, err := s.Products.FindBySKU(ctx, cand.RemoteSKU)
		if err != nil {
			return nil, err
		}

		switch {
		case len(products) == 0:
			summary.NeedsReview = append(summary.NeedsReview, ReviewItem{RemoteSKU: cand.RemoteSKU, Status: ReviewNotFound})

		case len(products) > 1:
			// 多个命中：宁可转人工也不猜
			summary.NeedsReview = append(summary.NeedsReview, ReviewItem{RemoteSKU: cand.RemoteSKU, Status: ReviewMultipleMatches})

		default:
			target := products[0]

			// 上一轮已经关联到别的产品 -> 冲突，不静默覆盖
			existing, err := s.Mappings.GetByRemoteID(ctx, accountID, cand.RemoteID)
			if err == nil && existing.IsMapped() {
				if existing.ProductID != target.ID {
					summary.NeedsReview = append(summary.NeedsReview, ReviewItem{RemoteSKU: cand.RemoteSKU, Status: ReviewConflict})
				}
				// 已经关到同一产品：幂等跳过
				continue
			}

			if err := s.Mappings.Link(ctx, accountID, cand.RemoteID, cand.RemoteSKU, target.ID,
				model.LinkSourceAuto, model.SyncStatusOK); err != nil {
				return nil, err
			}
			summary.Linked++
		}
	}

	return summary, nil
}

// LinkManual 人工指定关联：无条件创建/覆盖，自动关联失败后的终极手段
func (s *ListingService) LinkManual(ctx context.Context, accountID int64, remoteID, remoteSKU string, productID int64) error {
	if _, err := s.Products.GetByID(ctx, productID); err != nil {
		return fmt.Errorf("产品 %d 不存在: %v", productID, err)
	}
	return s.Mappings.Link(ctx, accountID, remoteID, remoteSKU, productID,
		model.LinkSourceManual, model.SyncStatusOK)
}

// Ignore 把远端记录移出后续对账视图
// 远端数据和内部产品都不动，只是本地不再展示
func (s *ListingService) Ignore(ctx context.Context, accountID int64, remoteID string) error {
	return s.Mappings.SetIgnored(ctx, accountID, remoteID)
}

// CreateFromListing 从未关联的远端记录新建内部产品
// 实际建产品委托给目录协作方，引擎只记录结果状态
func (s *ListingService) CreateFromListing(ctx context.Context, accountID int64, remoteID string) (int64, error) {
	mapping, err := s.Mappings.GetByRemoteID(ctx, accountID, remoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("remote_id %s 尚未对账，无法新建产品", remoteID)
		}
		return 0, err
	}

	productID, err := s.Catalog.CreateProductFromListing(ctx, mapping)
	if err != nil {
		// 失败也要留痕，UI 才能展示 failed
		if uerr := s.Mappings.UpdateSyncStatus(ctx, accountID, remoteID, model.SyncStatusFailed); uerr != nil {
			log.Printf("[Reconcile] 账号 %d remote_id %s 状态更新失败: %v", accountID, remoteID, uerr)
		}
		return 0, err
	}

	// 新建产品先置 pending，下一轮对账确认后转 ok
	if err := s.Mappings.Link(ctx, accountID, remoteID, mapping.RemoteSKU, productID,
		model.LinkSourceCreated, model.SyncStatusPending); err != nil {
		return 0, err
	}
	return productID, nil
}
