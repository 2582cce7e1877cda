package controller

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Souid83/Gestion-Stock-sub001/internal/service"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/ebay"
)

type AuthController struct {
	authService *service.AuthService

	// ConnectedURL 授权成功后 302 跳转的前端路由
	ConnectedURL string
}

func NewAuthController(s *service.AuthService, connectedURL string) *AuthController {
	return &AuthController{authService: s, ConnectedURL: connectedURL}
}

// Login
// @Summary 获取 eBay 授权链接
// @Description 为账号生成 OAuth 授权跳转链接；初次授权时 account_id 为空，必传 environment
// @Tags Auth (授权模块)
// @Accept json
// @Produce json
// @Param account_id query int false "账号 ID (Database Primary Key)，初次授权时为空"
// @Param environment query string false "sandbox 或 production，默认 production"
// @Success 200 {object} map[string]interface{} "auth_url"
// @Failure 400 {object} map[string]string "错误信息"
// @Router /api/auth/login [get]
func (ctrl *AuthController) Login(c *gin.Context) {
	// 1. 获取 environment
	environment := c.Query("environment")
	if environment == "" {
		environment = ebay.EnvProduction
	}

	// 2. 获取 account_id (可空)
	var accountID int64 = 0
	if raw := c.Query("account_id"); raw != "" {
		var err error
		accountID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "account_id 必须是数字"})
			return
		}
	}

	// 3. 调用 Service
	url, err := ctrl.authService.BuildAuthorizationURL(c.Request.Context(), accountID, environment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "生成失败",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "获取成功",
		"auth_url": url,
	})
}

// Callback
// @Summary eBay 授权回调
// @Description 接收 eBay 返回的 code 和 state，换取 Token 并入库，成功后跳转前端
// @Tags Auth (授权模块)
// @Produce json
// @Param code query string true "授权码"
// @Param state query string true "安全校验码"
// @Success 302 {string} string "跳转到已连接页面"
// @Failure 400 {object} map[string]string "拒绝授权/参数错误"
// @Failure 502 {object} map[string]string "平台拒绝换 Token"
// @Router /api/auth/callback [get]
func (ctrl *AuthController) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	errParam := c.Query("error")

	if errParam != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "用户拒绝了授权", "provider_msg": errParam})
		return
	}

	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少必要参数 code 或 state"})
		return
	}

	// 调用业务层换 Token
	account, err := ctrl.authService.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		// 平台明确拒绝换 Token -> 502，其余 -> 500
		var exchangeErr *service.OAuthExchangeError
		if errors.As(err, &exchangeErr) {
			log.Printf("[Auth] 换 Token 被拒绝: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{
				"error":  "平台拒绝授权",
				"detail": exchangeErr.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "授权失败",
			"detail": err.Error(),
		})
		return
	}

	log.Printf("[Auth] 账号绑定成功: id=%d shop=%s env=%s", account.ID, account.ShopName, account.Environment)

	// 授权成功，302 回前端已连接页面
	c.Redirect(http.StatusFound, ctrl.ConnectedURL)
}

// Refresh 手动强制刷新 Token
// @Summary 刷新账号 Token
// @Description 手动触发一次 access_token 刷新；刷新失败不报错，返回 refreshed=false
// @Tags Auth (授权模块)
// @Produce json
// @Param account_id query int true "账号 ID (Database Primary Key)"
// @Success 200 {object} map[string]interface{} "refreshed + 下一次过期时间"
// @Failure 400 {object} map[string]string "错误信息"
// @Failure 404 {object} map[string]string "账号不存在"
// @Router /api/auth/refresh [post]
func (ctrl *AuthController) Refresh(c *gin.Context) {
	accountID := parseAccountID(c)
	if accountID == 0 {
		return
	}

	account, err := ctrl.authService.Accounts.GetByID(c.Request.Context(), accountID)
	if err != nil {
		log.Printf("account id : %d, refresh token err:%v", accountID, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "查询账号出错"})
		return
	}

	tokenResp, _ := ctrl.authService.RefreshAccessToken(c.Request.Context(), account)
	if tokenResp == nil {
		// 刷新失败按约定不抛异常，原样告知前端引导重新授权
		c.JSON(http.StatusOK, gin.H{
			"refreshed": false,
			"message":   "刷新失败，请重新授权",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refreshed":  true,
		"expires_in": tokenResp.ExpiresIn,
	})
}
