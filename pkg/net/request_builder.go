package net

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// BuildAPIRequest 通用 eBay 业务请求构建器
// 适用方：ListingService, MigrationService, StockService 等所有业务服务
// 职责：统一封装鉴权头 (Authorization: Bearer) 和标准 JSON 头
// locale 非空时附加 Accept-Language (批量迁移的 25709 兜底要用)
func BuildAPIRequest(ctx context.Context, method, url string, body io.Reader, accessToken, locale string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if locale != "" {
		req.Header.Set("Accept-Language", locale)
	}

	return req, nil
}

// BuildAPIGetRequest 构建 GET 请求
func BuildAPIGetRequest(ctx context.Context, url, accessToken string) (*http.Request, error) {
	return BuildAPIRequest(ctx, http.MethodGet, url, nil, accessToken, "")
}

// BuildTokenRequest 构建 OAuth Token 端点请求
// eBay 要求 Basic base64(client_id:client_secret) + form-urlencoded
func BuildTokenRequest(ctx context.Context, tokenURL string, form url.Values, clientID, clientSecret string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(clientID, clientSecret)

	return req, nil
}
