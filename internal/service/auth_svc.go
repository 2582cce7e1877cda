package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
	"github.com/Souid83/Gestion-Stock-sub001/internal/repository"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/ebay"
	netpkg "github.com/Souid83/Gestion-Stock-sub001/pkg/net"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/secret"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/utils"
)

// AuthService OAuth Token 生命周期
// 职责：授权链接生成、回调换 Token、刷新、凭证解析
// refresh_token / client_secret 的加解密统一走 pkg/secret
type AuthService struct {
	Accounts    repository.AccountRepository
	Tokens      repository.TokenRepository
	Credentials repository.CredentialRepository

	HTTP        *http.Client
	CryptoKey   []byte
	RedirectURI string

	// Endpoints 非空时覆盖按环境解析的入口地址 (测试注入 stub 用)
	Endpoints *ebay.Endpoints
}

// NewAuthService 工厂方法
func NewAuthService(accounts repository.AccountRepository, tokens repository.TokenRepository,
	credentials repository.CredentialRepository, cryptoKey []byte, redirectURI string) *AuthService {
	return &AuthService{
		Accounts:    accounts,
		Tokens:      tokens,
		Credentials: credentials,
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		CryptoKey:   cryptoKey,
		RedirectURI: redirectURI,
	}
}

func (s *AuthService) endpoints(environment string) ebay.Endpoints {
	if s.Endpoints != nil {
		return *s.Endpoints
	}
	return ebay.EndpointsFor(environment)
}

// ==================== 凭证解析 ====================

type resolvedCredentials struct {
	ClientID     string
	ClientSecret string
}

// resolveCredentials 解析账号的应用凭证
// 优先用账号自带的，缺失时回退 (provider, environment) 维度的凭证表
// 都解不出来就报错，决不猜
func (s *AuthService) resolveCredentials(ctx context.Context, account *model.MarketplaceAccount) (*resolvedCredentials, error) {
	if account.HasOwnCredentials() {
		plain, err := secret.Decrypt(account.ClientSecretEncrypted, account.ClientSecretIV, s.CryptoKey)
		if err != nil {
			return nil, fmt.Errorf("解密账号级 client_secret 失败: %v", err)
		}
		return &resolvedCredentials{ClientID: account.ClientID, ClientSecret: plain}, nil
	}
	return s.resolveEnvCredentials(ctx, account.Provider, account.Environment)
}

func (s *AuthService) resolveEnvCredentials(ctx context.Context, provider, environment string) (*resolvedCredentials, error) {
	cred, err := s.Credentials.GetByProviderEnv(ctx, provider, environment)
	if err != nil {
		return nil, fmt.Errorf("未配置 %s/%s 的应用凭证: %v", provider, environment, err)
	}
	plain, err := secret.Decrypt(cred.ClientSecretEncrypted, cred.EncryptionIV, s.CryptoKey)
	if err != nil {
		return nil, fmt.Errorf("解密应用凭证失败: %v", err)
	}
	return &resolvedCredentials{ClientID: cred.ClientID, ClientSecret: plain}, nil
}

// ==================== 授权链接 ====================

// BuildAuthorizationURL 生成 eBay 授权链接
// accountID 为 0 表示初次授权，environment 决定打 sandbox 还是生产
func (s *AuthService) BuildAuthorizationURL(ctx context.Context, accountID int64, environment string) (string, error) {
	// 1. 解析凭证
	var creds *resolvedCredentials
	var err error
	if accountID > 0 {
		account, err2 := s.Accounts.GetByID(ctx, accountID)
		if err2 != nil {
			return "", err2
		}
		environment = account.Environment
		creds, err = s.resolveCredentials(ctx, account)
	} else {
		creds, err = s.resolveEnvCredentials(ctx, model.ProviderEbay, environment)
	}
	if err != nil {
		return "", err
	}

	// 2. 生成 state 并缓存 (格式 "environment:account_id")
	state, err := utils.GenerateRandomString(16)
	if err != nil {
		return "", err
	}
	utils.SetCache(state, fmt.Sprintf("%s:%d", environment, accountID))

	// 3. 拼接授权 URL
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", creds.ClientID)
	q.Set("redirect_uri", s.RedirectURI)
	q.Set("scope", strings.Join(ebay.DefaultScopes, " "))
	q.Set("state", state)

	return s.endpoints(environment).AuthURL + "?" + q.Encode(), nil
}

// ==================== 回调换 Token ====================

// HandleCallback 处理 eBay 回调 -> 换 Token -> 账号与 Token 入库
// 账号按自然键 (provider, environment, external_account_id) UPSERT，
// refresh_token 加密后落库，access_token 明文 (短命且不出服务端)
func (s *AuthService) HandleCallback(ctx context.Context, code, state string) (*model.MarketplaceAccount, error) {
	// 1. 校验 State 取缓存
	cachedVal, exists := utils.GetCache(state)
	if !exists {
		return nil, fmt.Errorf("授权超时或 State 无效，请重新发起")
	}
	utils.DeleteCache(state)

	// 2. 解析缓存 "environment:account_id"
	parts := strings.Split(cachedVal, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("缓存数据格式错误，预期 'environment:accountID'，实际: %s", cachedVal)
	}
	environment := parts[0]
	hintID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("缓存中的 AccountID 无效: %v", err)
	}

	// 3. 解析应用凭证
	var creds *resolvedCredentials
	if hintID > 0 {
		account, err := s.Accounts.GetByID(ctx, hintID)
		if err != nil {
			return nil, err
		}
		creds, err = s.resolveCredentials(ctx, account)
		if err != nil {
			return nil, err
		}
	} else {
		creds, err = s.resolveEnvCredentials(ctx, model.ProviderEbay, environment)
		if err != nil {
			return nil, err
		}
	}

	// 4. 授权码换 Token
	tokenResp, err := s.exchangeCode(ctx, environment, creds, code)
	if err != nil {
		return nil, err
	}

	// 5. 取卖家身份，作为自然键的 external_account_id
	identity, err := s.fetchIdentity(ctx, environment, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("获取卖家身份失败: %v", err)
	}

	// 6. 账号 UPSERT (生产回调的既定策略，冲突即更新)
	account := &model.MarketplaceAccount{
		Provider:          model.ProviderEbay,
		Environment:       environment,
		ExternalAccountID: identity.UserID,
		ShopName:          identity.Username,
		IsActive:          true,
	}
	if err := s.Accounts.UpsertByNaturalKey(ctx, account); err != nil {
		return nil, fmt.Errorf("账号入库失败: %v", err)
	}

	// 7. refresh_token 加密落库
	var cipherText, iv string
	if tokenResp.RefreshToken != "" {
		cipherText, iv, err = secret.Encrypt(tokenResp.RefreshToken, s.CryptoKey)
		if err != nil {
			return nil, fmt.Errorf("加密 refresh_token 失败: %v", err)
		}
	}

	scopes := ebay.DefaultScopes
	if tokenResp.Scope != "" {
		scopes = strings.Fields(tokenResp.Scope)
	}

	token := &model.OAuthToken{
		AccountID:             account.ID,
		AccessToken:           tokenResp.AccessToken,
		RefreshTokenEncrypted: cipherText,
		EncryptionIV:          iv,
		TokenType:             tokenResp.TokenType,
		Scopes:                scopes,
		ExpiresAt:             time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}
	if err := s.Tokens.Insert(ctx, token); err != nil {
		return nil, fmt.Errorf("token 入库失败: %v", err)
	}

	return account, nil
}

// exchangeCode 授权码 grant
// 非 2xx 整个操作失败，错误里带平台原始响应体
func (s *AuthService) exchangeCode(ctx context.Context, environment string, creds *resolvedCredentials, code string) (*ebay.TokenResp, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", s.RedirectURI)

	tokenURL := s.endpoints(environment).TokenURL
	resp, err := netpkg.FetchWithRetry(ctx, s.HTTP, func() (*http.Request, error) {
		return netpkg.BuildTokenRequest(ctx, tokenURL, data, creds.ClientID, creds.ClientSecret)
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("token 端点请求失败: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &OAuthExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp ebay.TokenResp
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("token 响应解析失败: %v", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, &OAuthExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &tokenResp, nil
}

// fetchIdentity 取当前授权卖家的平台身份
func (s *AuthService) fetchIdentity(ctx context.Context, environment, accessToken string) (*ebay.IdentityResp, error) {
	identityURL := s.endpoints(environment).APIBaseURL + ebay.IdentityPath

	resp, err := netpkg.FetchWithRetry(ctx, s.HTTP, func() (*http.Request, error) {
		return netpkg.BuildAPIGetRequest(ctx, identityURL, accessToken)
	}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("identity 接口返回 %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var identity ebay.IdentityResp
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, err
	}
	if identity.UserID == "" {
		return nil, errors.New("identity 响应缺少 userId")
	}
	return &identity, nil
}

// ==================== Token 刷新 ====================

// RefreshAccessToken 刷新账号的 access_token
//
// 约定：任何失败 (凭证解不出、网络、非 2xx、响应异常) 都返回 (nil, nil)，
// 不抛错误。刷新是可选的优化路径，不允许把批处理中的调用方打崩——
// 调用方把 nil 当 "没拿到新 Token" 处理即可。
// 成功时只做字段级覆写 (access_token/expires_at)，refresh_token 不轮换
// (eBay 刷新响应不返回新 refresh_token)
func (s *AuthService) RefreshAccessToken(ctx context.Context, account *model.MarketplaceAccount) (*ebay.TokenResp, error) {
	// 1. 凭证解析，解不出直接放弃，绝不瞎猜
	creds, err := s.resolveCredentials(ctx, account)
	if err != nil {
		log.Printf("[Auth] 账号 %d 凭证解析失败，放弃刷新: %v", account.ID, err)
		return nil, nil
	}

	// 2. 取当前 Token 行
	token, err := s.Tokens.GetCurrent(ctx, account.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Auth] 账号 %d 查询 Token 失败: %v", account.ID, err)
		}
		return nil, nil
	}
	if token.RefreshTokenEncrypted == "" {
		log.Printf("[Auth] 账号 %d 没有 refresh_token，无法刷新", account.ID)
		return nil, nil
	}

	refreshToken, err := secret.Decrypt(token.RefreshTokenEncrypted, token.EncryptionIV, s.CryptoKey)
	if err != nil {
		log.Printf("[Auth] 账号 %d refresh_token 解密失败: %v", account.ID, err)
		return nil, nil
	}

	// 3. refresh_token grant
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	if len(token.Scopes) > 0 {
		data.Set("scope", strings.Join(token.Scopes, " "))
	}

	tokenURL := s.endpoints(account.Environment).TokenURL
	resp, err := netpkg.FetchWithRetry(ctx, s.HTTP, func() (*http.Request, error) {
		return netpkg.BuildTokenRequest(ctx, tokenURL, data, creds.ClientID, creds.ClientSecret)
	}, nil)
	if err != nil {
		log.Printf("[Auth] 账号 %d 刷新网络失败: %v", account.ID, err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[Auth] 账号 %d 刷新被拒绝: %d %s", account.ID, resp.StatusCode, truncate(string(body), 256))
		return nil, nil
	}

	var tokenResp ebay.TokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		log.Printf("[Auth] 账号 %d 刷新响应解析失败: %v", account.ID, err)
		return nil, nil
	}
	if tokenResp.AccessToken == "" {
		log.Printf("[Auth] 账号 %d 刷新响应缺少 access_token", account.ID)
		return nil, nil
	}

	// 4. 字段级覆写入库，顶起 updated_at
	expiresAt := time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	if err := s.Tokens.UpdateAccessToken(ctx, token.ID, tokenResp.AccessToken, expiresAt); err != nil {
		log.Printf("[Auth] 账号 %d 新 Token 入库失败: %v", account.ID, err)
		return nil, nil
	}

	return &tokenResp, nil
}

// truncate 摘录前 n 个字节，日志和错误信息里不回显完整原文
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
