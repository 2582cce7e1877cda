package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Souid83/Gestion-Stock-sub001/internal/service"
)

// ListingController 对账控制器
type ListingController struct {
	listingService *service.ListingService
}

// NewListingController 创建对账控制器
func NewListingController(s *service.ListingService) *ListingController {
	return &ListingController{listingService: s}
}

// respondCoded 把前置检查错误映射成 HTTP 状态
// account_not_found -> 404, token_missing -> 424, 其余 -> 500
func respondCoded(c *gin.Context, err error) {
	var coded *service.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case "account_not_found":
			c.JSON(http.StatusNotFound, gin.H{"error": coded.Code})
			return
		case "token_missing":
			c.JSON(http.StatusFailedDependency, gin.H{"error": coded.Code})
			return
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": coded.Code})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "detail": err.Error()})
}

// GetListings
// @Summary 拉取一页远端在售记录并对账
// @Tags Listings (对账模块)
// @Produce json
// @Param account_id query int true "账号 ID"
// @Param page query int false "页码，默认 1"
// @Param page_size query int false "每页条数，默认 50"
// @Param sku query string false "按 SKU 过滤"
// @Param status query string false "按同步状态过滤 unmapped/ok/pending/failed"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "账号不存在"
// @Failure 424 {object} map[string]string "Token 缺失"
// @Router /api/listings [get]
func (ctrl *ListingController) GetListings(c *gin.Context) {
	accountID := parseAccountID(c)
	if accountID == 0 {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	filter := service.ListingFilter{
		RemoteSKU:  c.Query("sku"),
		SyncStatus: c.Query("status"),
	}

	result, err := ctrl.listingService.ListPage(c.Request.Context(), accountID, filter, page, pageSize)
	if err != nil {
		respondCoded(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": result,
	})
}

// autoLinkReq 自动关联请求体
type autoLinkReq struct {
	AccountID  int64                   `json:"account_id" binding:"required"`
	Candidates []service.LinkCandidate `json:"candidates" binding:"required"`
}

// AutoLink
// @Summary 按 SKU 精确匹配批量自动关联
// @Description 恰好一个命中才自动关联；零命中/多命中/冲突全部进 needs_review
// @Tags Listings (对账模块)
// @Accept json
// @Produce json
// @Param body body autoLinkReq true "候选列表"
// @Success 200 {object} map[string]interface{} "linked + needs_review"
// @Failure 400 {object} map[string]string "参数错误"
// @Router /api/listings/autolink [post]
func (ctrl *ListingController) AutoLink(c *gin.Context) {
	var req autoLinkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_json", "detail": err.Error()})
		return
	}

	summary, err := ctrl.listingService.AutoLinkBySKU(c.Request.Context(), req.AccountID, req.Candidates)
	if err != nil {
		respondCoded(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": summary,
	})
}

// linkReq 人工关联请求体
type linkReq struct {
	AccountID int64  `json:"account_id" binding:"required"`
	RemoteID  string `json:"remote_id" binding:"required"`
	RemoteSKU string `json:"remote_sku"`
	ProductID int64  `json:"product_id" binding:"required"`
}

// Link
// @Summary 人工指定关联
// @Description 无条件创建/覆盖映射，自动关联裁决不了时的终极手段
// @Tags Listings (对账模块)
// @Accept json
// @Produce json
// @Param body body linkReq true "关联参数"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "参数错误"
// @Router /api/listings/link [post]
func (ctrl *ListingController) Link(c *gin.Context) {
	var req linkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_json", "detail": err.Error()})
		return
	}

	if err := ctrl.listingService.LinkManual(c.Request.Context(), req.AccountID, req.RemoteID, req.RemoteSKU, req.ProductID); err != nil {
		respondCoded(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "关联成功"})
}

// ignoreReq 忽略请求体
type ignoreReq struct {
	AccountID int64  `json:"account_id" binding:"required"`
	RemoteID  string `json:"remote_id" binding:"required"`
}

// Ignore
// @Summary 忽略远端在售记录
// @Description 移出后续对账视图，不改远端数据也不动内部产品
// @Tags Listings (对账模块)
// @Accept json
// @Produce json
// @Param body body ignoreReq true "忽略参数"
// @Success 200 {object} map[string]interface{}
// @Router /api/listings/ignore [post]
func (ctrl *ListingController) Ignore(c *gin.Context) {
	var req ignoreReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_json", "detail": err.Error()})
		return
	}

	if err := ctrl.listingService.Ignore(c.Request.Context(), req.AccountID, req.RemoteID); err != nil {
		respondCoded(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "已忽略"})
}

// Create
// @Summary 从远端在售记录新建内部产品
// @Description 委托目录服务建产品并回写关联，结果状态 pending
// @Tags Listings (对账模块)
// @Accept json
// @Produce json
// @Param body body ignoreReq true "remote_id 参数"
// @Success 200 {object} map[string]interface{} "product_id"
// @Failure 500 {object} map[string]string "目录服务失败"
// @Router /api/listings/create [post]
func (ctrl *ListingController) Create(c *gin.Context) {
	var req ignoreReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_json", "detail": err.Error()})
		return
	}

	productID, err := ctrl.listingService.CreateFromListing(c.Request.Context(), req.AccountID, req.RemoteID)
	if err != nil {
		respondCoded(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": gin.H{"product_id": productID},
	})
}
