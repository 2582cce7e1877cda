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

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
	"github.com/Souid83/Gestion-Stock-sub001/internal/repository"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/ebay"
	netpkg "github.com/Souid83/Gestion-Stock-sub001/pkg/net"
)

// ==================== 输入 / 输出 ====================

// 单条迁移结果状态
const (
	MigrateStatusSuccess = "SUCCESS"
	MigrateStatusFailed  = "FAILED"
)

// MigrationInput 一次迁移运行的输入
type MigrationInput struct {
	AccountID  int64
	ListingIDs []string // 内部会去重，保持首次出现的顺序
	DryRun     bool
	BatchSize  int // 1..50，0 取默认 50
	MaxBatches int // 0 表示不设上限
}

// MigrationResult 单条在售记录的迁移结果
type MigrationResult struct {
	ListingID string           `json:"listing_id"`
	Status    string           `json:"status"`
	SKU       string           `json:"sku,omitempty"`
	OfferID   string           `json:"offer_id,omitempty"`
	Errors    []ebay.APIError `json:"errors,omitempty"`
}

// MigrationSummary 运行汇总
type MigrationSummary struct {
	Migrated         int               `json:"migrated"`
	Failed           int               `json:"failed"`
	Total            int               `json:"total"`
	BatchesProcessed int               `json:"batches_processed"`
	Results          []MigrationResult `json:"results,omitempty"`

	// dry_run 专用
	DryRun         bool     `json:"dry_run,omitempty"`
	PlannedBatches int      `json:"planned_batches,omitempty"`
	SampleBatch    []string `json:"sample_batch,omitempty"`
}

// ==================== 配置 ====================

// MigrationConfig 迁移引擎策略配置
type MigrationConfig struct {
	// AssumeSuccessOnUnitemized 平台只回整体 OK、不给逐条明细时，
	// 是否乐观地把整批标记成功。历史行为如此，默认保持；
	// 想要更保守的口径时关掉它，整批会被标记失败
	AssumeSuccessOnUnitemized bool

	// LocaleFallbacks 错误码 25709 (缺 locale) 的重试头序列
	// 上限就是序列长度，默认两次：en-US 再 fr-FR
	LocaleFallbacks []string
}

// DefaultMigrationConfig 默认策略
func DefaultMigrationConfig() *MigrationConfig {
	return &MigrationConfig{
		AssumeSuccessOnUnitemized: true,
		LocaleFallbacks:           []string{"en-US", "fr-FR"},
	}
}

// ==================== 服务实现 ====================

// MigrationService 批量库存迁移引擎
// 运行模型：批次严格串行，401 触发的刷新 happens-before 后续所有批次；
// 引擎自身绝不跨运行重试，失败项由调用方重新提交
type MigrationService struct {
	Accounts repository.AccountRepository
	Tokens   repository.TokenRepository
	SyncLogs repository.SyncLogRepository
	Auth     *AuthService

	HTTP   *http.Client
	Config *MigrationConfig

	// APIBase 非空时覆盖按环境解析的地址 (测试注入 stub 用)
	APIBase string
}

// NewMigrationService 工厂方法
func NewMigrationService(accounts repository.AccountRepository, tokens repository.TokenRepository,
	syncLogs repository.SyncLogRepository, auth *AuthService, cfg *MigrationConfig) *MigrationService {
	if cfg == nil {
		cfg = DefaultMigrationConfig()
	}
	return &MigrationService{
		Accounts: accounts,
		Tokens:   tokens,
		SyncLogs: syncLogs,
		Auth:     auth,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
		Config:   cfg,
	}
}

func (s *MigrationService) apiBase(environment string) string {
	if s.APIBase != "" {
		return s.APIBase
	}
	return ebay.EndpointsFor(environment).APIBaseURL
}

// ==================== 主流程 ====================

// Run 执行一次迁移
// 1. 前置检查 (账号 + Token)，任何网络调用之前 fail fast
// 2. dry_run 只算批次规划，零网络零写入
// 3. 去重后按 batch_size 切批，严格按输入顺序串行处理
// 4. 汇总并追加一条审计日志 (dry_run 不落)
func (s *MigrationService) Run(ctx context.Context, input *MigrationInput) (*MigrationSummary, error) {
	// 1. 前置检查
	account, token, err := resolveAccountAndToken(ctx, s.Accounts, s.Tokens, input.AccountID)
	if err != nil {
		return nil, err
	}

	ids := dedupe(input.ListingIDs)
	if len(ids) == 0 {
		return nil, ErrNoListingIDs
	}

	batchSize := input.BatchSize
	if batchSize <= 0 || batchSize > ebay.BulkMigrateMaxListings {
		batchSize = ebay.BulkMigrateMaxListings
	}

	batches := partitionBatches(ids, batchSize)
	if input.MaxBatches > 0 && len(batches) > input.MaxBatches {
		batches = batches[:input.MaxBatches]
	}

	// 2. dry_run：只做规划，不发网络不落库
	if input.DryRun {
		summary := &MigrationSummary{
			DryRun:         true,
			Total:          len(ids),
			PlannedBatches: len(batches),
		}
		if len(batches) > 0 {
			summary.SampleBatch = batches[0]
		}
		return summary, nil
	}

	// 3. 串行处理批次
	runID := uuid.NewString()
	accessToken := token.AccessToken
	summary := &MigrationSummary{Total: len(ids)}
	lastStatus := http.StatusOK

	log.Printf("[Migrate] run=%s 账号 %d 共 %d 条，切成 %d 批", runID, account.ID, len(ids), len(batches))

	for i, batch := range batches {
		// 长进程形态下把取消权交给调用方，批与批之间检查
		if err := ctx.Err(); err != nil {
			log.Printf("[Migrate] run=%s 第 %d 批前被取消: %v", runID, i+1, err)
			break
		}

		results, status := s.runBatch(ctx, account, &accessToken, batch)
		if status != 0 && status != http.StatusOK {
			lastStatus = status
		}
		summary.Results = append(summary.Results, results...)
		summary.BatchesProcessed++
	}

	for _, r := range summary.Results {
		if r.Status == MigrateStatusSuccess {
			summary.Migrated++
		} else {
			summary.Failed++
		}
	}

	// 4. 审计日志
	s.appendAuditLog(ctx, account.ID, runID, summary, lastStatus)

	return summary, nil
}

// runBatch 处理单个批次，永不返回 error——
// 任何失败都折算成该批全体 FAILED，换下一批继续
// 返回值第二项是最终 HTTP 状态 (审计用，网络层失败时为 0)
func (s *MigrationService) runBatch(ctx context.Context, account *model.MarketplaceAccount,
	accessToken *string, batch []string) ([]MigrationResult, int) {

	// 1. 首发
	status, body, err := s.callBulkMigrate(ctx, account.Environment, *accessToken, batch, "")
	if err != nil {
		return failBatch(batch, []ebay.APIError{{Message: fmt.Sprintf("network error: %v", err)}}), 0
	}

	// 2. 401：恰好一次刷新，成功则同批重发一次
	// 刷新失败只废掉本批 (token_expired)，不中断整个运行
	if status == http.StatusUnauthorized {
		refreshed, _ := s.Auth.RefreshAccessToken(ctx, account)
		if refreshed == nil {
			return failBatch(batch, []ebay.APIError{{Message: "token_expired"}}), status
		}
		// 新 Token 对后续批次同样生效
		*accessToken = refreshed.AccessToken

		status, body, err = s.callBulkMigrate(ctx, account.Environment, *accessToken, batch, "")
		if err != nil {
			return failBatch(batch, []ebay.APIError{{Message: fmt.Sprintf("network error: %v", err)}}), 0
		}
	}

	// 3. 25709：平台的 locale 校验怪癖，按配置序列补 Accept-Language 重试
	// 只认这个错误码，额外尝试封顶为序列长度，不是通用重试
	if status == http.StatusBadRequest && ebay.ContainsErrorID(body, ebay.ErrIDMissingLocale) {
		for _, locale := range s.Config.LocaleFallbacks {
			status, body, err = s.callBulkMigrate(ctx, account.Environment, *accessToken, batch, locale)
			if err != nil {
				return failBatch(batch, []ebay.APIError{{Message: fmt.Sprintf("network error: %v", err)}}), 0
			}
			if !(status == http.StatusBadRequest && ebay.ContainsErrorID(body, ebay.ErrIDMissingLocale)) {
				break
			}
		}
	}

	// 4. 终态非 OK：整批失败，带上平台错误对象或原文摘录
	if status < 200 || status >= 300 {
		apiErrors := ebay.ParseErrors(body)
		if len(apiErrors) == 0 {
			apiErrors = []ebay.APIError{{Message: truncate(string(body), 512)}}
		}
		return failBatch(batch, apiErrors), status
	}

	// 5. OK：按逐条明细分类
	return s.classifyBatch(batch, body), status
}

// classifyBatch 解析平台响应并给每条在售记录定结果
func (s *MigrationService) classifyBatch(batch []string, body []byte) []MigrationResult {
	var resp ebay.BulkMigrateResp
	if err := json.Unmarshal(body, &resp); err != nil {
		// OK 状态但响应体解析不了：按无明细路径处理
		log.Printf("[Migrate] 迁移响应解析失败，按无明细处理: %v", err)
	}

	items := resp.Items()
	if len(items) == 0 {
		// 平台只回了整体 OK，没有逐条明细
		// 历史口径是乐观标成功，通过配置保留 (AssumeSuccessOnUnitemized)
		if s.Config.AssumeSuccessOnUnitemized {
			return successBatch(batch)
		}
		return failBatch(batch, []ebay.APIError{{Message: "provider returned no itemized results"}})
	}

	byListing := make(map[string]*ebay.MigrateItemResult, len(items))
	for i := range items {
		byListing[items[i].ListingID] = &items[i]
	}

	results := make([]MigrationResult, 0, len(batch))
	for _, listingID := range batch {
		item := byListing[listingID]
		if item == nil {
			// 明细里没提到的条目，沿用无明细的口径
			if s.Config.AssumeSuccessOnUnitemized {
				results = append(results, MigrationResult{ListingID: listingID, Status: MigrateStatusSuccess})
			} else {
				results = append(results, MigrationResult{
					ListingID: listingID,
					Status:    MigrateStatusFailed,
					Errors:    []ebay.APIError{{Message: "no itemized result for listing"}},
				})
			}
			continue
		}

		r := MigrationResult{
			ListingID: listingID,
			SKU:       item.SKU,
			OfferID:   item.OfferID,
			Errors:    item.Errors,
		}
		if len(item.Errors) > 0 {
			r.Status = MigrateStatusFailed
		} else {
			r.Status = MigrateStatusSuccess
		}
		results = append(results, r)
	}
	return results
}

// callBulkMigrate 发一次批量迁移请求，读完响应体后返回
func (s *MigrationService) callBulkMigrate(ctx context.Context, environment, accessToken string,
	batch []string, locale string) (int, []byte, error) {

	payload, err := json.Marshal(ebay.BulkMigrateReq{ListingIDs: batch})
	if err != nil {
		return 0, nil, err
	}

	apiURL := s.apiBase(environment) + ebay.BulkMigratePath
	resp, err := netpkg.FetchWithRetry(ctx, s.HTTP, func() (*http.Request, error) {
		return netpkg.BuildAPIRequest(ctx, http.MethodPost, apiURL, bytes.NewReader(payload), accessToken, locale)
	}, nil)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// appendAuditLog 运行结束后追加一条审计日志
// 口径：全成=ok，部分成=retry (失败项可重提)，全败=fail
func (s *MigrationService) appendAuditLog(ctx context.Context, accountID int64, runID string,
	summary *MigrationSummary, httpStatus int) {

	outcome := model.OutcomeFail
	switch {
	case summary.Failed == 0:
		outcome = model.OutcomeOK
	case summary.Migrated > 0:
		outcome = model.OutcomeRetry
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"run_id":           runID,
		"migrated":         summary.Migrated,
		"failed":           summary.Failed,
		"total":            summary.Total,
		"batchesProcessed": summary.BatchesProcessed,
	})

	entry := &model.SyncLog{
		MarketplaceAccountID: accountID,
		Operation:            model.OperationInventoryMigrate,
		Outcome:              outcome,
		HTTPStatus:           httpStatus,
		Metadata:             datatypes.JSON(meta),
	}
	if err := s.SyncLogs.Append(ctx, entry); err != nil {
		// 审计失败只记日志，不影响已完成的迁移结果
		log.Printf("[Migrate] run=%s 审计日志写入失败: %v", runID, err)
	}
}

// ==================== 工具函数 ====================

// dedupe 去重并保持首次出现的顺序
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// partitionBatches 按 size 切批，保持输入顺序
func partitionBatches(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// failBatch 整批标记失败
func failBatch(batch []string, errs []ebay.APIError) []MigrationResult {
	results := make([]MigrationResult, 0, len(batch))
	for _, id := range batch {
		results = append(results, MigrationResult{ListingID: id, Status: MigrateStatusFailed, Errors: errs})
	}
	return results
}

// successBatch 整批标记成功
func successBatch(batch []string) []MigrationResult {
	results := make([]MigrationResult, 0, len(batch))
	for _, id := range batch {
		results = append(results, MigrationResult{ListingID: id, Status: MigrateStatusSuccess})
	}
	return results
}
