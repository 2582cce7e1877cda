package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Souid83/Gestion-Stock-sub001/internal/repository"
	"github.com/Souid83/Gestion-Stock-sub001/internal/service"
)

// SyncController 同步控制器：迁移 + 库存推送 + 审计日志
type SyncController struct {
	migrationService *service.MigrationService
	stockService     *service.StockService
	syncLogRepo      repository.SyncLogRepository
}

// NewSyncController 创建同步控制器
func NewSyncController(m *service.MigrationService, s *service.StockService, logs repository.SyncLogRepository) *SyncController {
	return &SyncController{
		migrationService: m,
		stockService:     s,
		syncLogRepo:      logs,
	}
}

// migrateReq 迁移请求体
// listing_ids 和 item_ids_csv 二选一，都给时合并
type migrateReq struct {
	DryRun     bool     `json:"dry_run"`
	BatchSize  int      `json:"batch_size"`
	MaxBatches int      `json:"max_batches"`
	ListingIDs []string `json:"listing_ids"`
	ItemIDsCSV string   `json:"item_ids_csv"`
}

// Migrate
// @Summary 批量迁移传统在售记录到库存体系
// @Description 按批 (≤50) 调用迁移接口；401 恰好刷新一次重试，25709 按语言头回退
// @Tags Sync (同步模块)
// @Accept json
// @Produce json
// @Param account_id query int true "账号 ID"
// @Param body body migrateReq true "迁移参数"
// @Success 200 {object} map[string]interface{} "聚合结果"
// @Failure 400 {object} map[string]string "参数缺失或非法"
// @Failure 404 {object} map[string]string "账号不存在"
// @Failure 424 {object} map[string]string "Token 缺失"
// @Router /api/sync/migrate [post]
func (ctrl *SyncController) Migrate(c *gin.Context) {
	accountID := parseAccountID(c)
	if accountID == 0 {
		return
	}

	var req migrateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_json", "detail": err.Error()})
		return
	}

	ids := req.ListingIDs
	if req.ItemIDsCSV != "" {
		for _, part := range strings.Split(req.ItemIDsCSV, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_listing_ids"})
		return
	}

	summary, err := ctrl.migrationService.Run(c.Request.Context(), &service.MigrationInput{
		AccountID:  accountID,
		ListingIDs: ids,
		DryRun:     req.DryRun,
		BatchSize:  req.BatchSize,
		MaxBatches: req.MaxBatches,
	})
	if err != nil {
		if errors.Is(err, service.ErrNoListingIDs) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no_listing_ids"})
			return
		}
		respondCoded(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// stockPushReq 库存推送请求体
// items 为空时服务端自己算差异再推
type stockPushReq struct {
	Items []service.StockSyncItem `json:"items"`
}

// StockPush
// @Summary 推送内部库存数量到远端
// @Description items 缺省时按严格相等比对自动算差异；空差异直接 200 不发请求
// @Tags Sync (同步模块)
// @Accept json
// @Produce json
// @Param account_id query int true "账号 ID"
// @Param body body stockPushReq false "推送参数"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "账号不存在"
// @Failure 424 {object} map[string]string "Token 缺失"
// @Router /api/sync/stock [post]
func (ctrl *SyncController) StockPush(c *gin.Context) {
	accountID := parseAccountID(c)
	if accountID == 0 {
		return
	}

	var req stockPushReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_json", "detail": err.Error()})
			return
		}
	}

	items := req.Items
	if len(items) == 0 {
		computed, err := ctrl.stockService.ComputeAccountMismatches(c.Request.Context(), accountID)
		if err != nil {
			respondCoded(c, err)
			return
		}
		items = computed
	}

	if err := ctrl.stockService.PushQuantities(c.Request.Context(), accountID, items); err != nil {
		respondCoded(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": gin.H{"pushed": len(items)},
	})
}

// StockDiff
// @Summary 查看库存差异 (不推送)
// @Tags Sync (同步模块)
// @Produce json
// @Param account_id query int true "账号 ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/sync/stock/diff [get]
func (ctrl *SyncController) StockDiff(c *gin.Context) {
	accountID := parseAccountID(c)
	if accountID == 0 {
		return
	}

	items, err := ctrl.stockService.ComputeAccountMismatches(c.Request.Context(), accountID)
	if err != nil {
		respondCoded(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": gin.H{"items": items, "count": len(items)},
	})
}

// GetSyncLogs
// @Summary 查询同步审计日志
// @Tags Sync (同步模块)
// @Produce json
// @Param account_id query int true "账号 ID"
// @Param limit query int false "条数上限，默认 50"
// @Success 200 {object} map[string]interface{}
// @Router /api/sync/logs [get]
func (ctrl *SyncController) GetSyncLogs(c *gin.Context) {
	accountID := parseAccountID(c)
	if accountID == 0 {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := ctrl.syncLogRepo.ListByAccount(c.Request.Context(), accountID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": logs,
	})
}
