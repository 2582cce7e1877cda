package ebay

import (
	"encoding/json"
	"strings"
)

// ==================== Token 相关 ====================

// TokenResp OAuth Token 端点的成功响应
// authorization_code 和 refresh_token 两种 grant 共用此结构
// refresh 响应里没有 refresh_token 字段，保持零值即可
type TokenResp struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	ExpiresIn             int    `json:"expires_in"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in,omitempty"`
	TokenType             string `json:"token_type"`
	Scope                 string `json:"scope,omitempty"`
}

// TokenErrorResp OAuth Token 端点的失败响应
type TokenErrorResp struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// IdentityResp commerce/identity 用户信息 (取 externalAccountID 用)
type IdentityResp struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ==================== 业务错误对象 ====================

// APIError eBay 标准错误对象
type APIError struct {
	ErrorID     int64  `json:"errorId"`
	Domain      string `json:"domain,omitempty"`
	Category    string `json:"category,omitempty"`
	Message     string `json:"message"`
	LongMessage string `json:"longMessage,omitempty"`
}

// ErrorBody 非 2xx 响应的通用错误体 {"errors":[...]}
type ErrorBody struct {
	Errors []APIError `json:"errors"`
}

// ParseErrors 尝试从原始响应体里解析错误列表
// 解析失败返回 nil，由调用方降级为原文摘录
func ParseErrors(body []byte) []APIError {
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return nil
	}
	return eb.Errors
}

// ContainsErrorID 判断响应体中是否携带指定错误码
func ContainsErrorID(body []byte, errorID int64) bool {
	for _, e := range ParseErrors(body) {
		if e.ErrorID == errorID {
			return true
		}
	}
	return false
}

// ==================== 批量迁移 ====================

// MigrateItemResult 批量迁移的单条结果
// eBay 响应里 listingId 的大小写不统一 (listingId / listingID)，
// 必须用自定义解码兼容两种写法
type MigrateItemResult struct {
	ListingID  string     `json:"listingId"`
	SKU        string     `json:"sku,omitempty"`
	OfferID    string     `json:"offerId,omitempty"`
	StatusCode int        `json:"statusCode,omitempty"`
	Errors     []APIError `json:"errors,omitempty"`
}

func (r *MigrateItemResult) UnmarshalJSON(data []byte) error {
	type raw struct {
		ListingID  string     `json:"listingId"`
		ListingID2 string     `json:"listingID"`
		SKU        string     `json:"sku"`
		OfferID    string     `json:"offerId"`
		StatusCode int        `json:"statusCode"`
		Errors     []APIError `json:"errors"`
	}
	var v raw
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.ListingID = v.ListingID
	if r.ListingID == "" {
		r.ListingID = v.ListingID2
	}
	r.SKU = v.SKU
	r.OfferID = v.OfferID
	r.StatusCode = v.StatusCode
	r.Errors = v.Errors
	return nil
}

// BulkMigrateResp 批量迁移响应
// 老版本网关返回 results，新版本返回 responses，两边都要认
type BulkMigrateResp struct {
	Responses []MigrateItemResult `json:"responses"`
	Results   []MigrateItemResult `json:"results"`
}

// Items 统一取出逐条结果，没有明细时返回 nil
func (r *BulkMigrateResp) Items() []MigrateItemResult {
	if len(r.Responses) > 0 {
		return r.Responses
	}
	if len(r.Results) > 0 {
		return r.Results
	}
	return nil
}

// ==================== Offer 列表 ====================

// OfferPage getOffers 分页响应
type OfferPage struct {
	Total  int     `json:"total"`
	Size   int     `json:"size"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Offers []Offer `json:"offers"`
}

// Offer 远端在售记录 (仅保留对账需要的字段)
type Offer struct {
	OfferID           string          `json:"offerId"`
	SKU               string          `json:"sku"`
	AvailableQuantity int             `json:"availableQuantity"`
	Listing           *OfferListing   `json:"listing,omitempty"`
	PricingSummary    *PricingSummary `json:"pricingSummary,omitempty"`
	ListingDesc       string          `json:"listingDescription,omitempty"`
}

type OfferListing struct {
	ListingID string `json:"listingId"`
	Title     string `json:"title,omitempty"`
}

type PricingSummary struct {
	Price *Money `json:"price,omitempty"`
}

type Money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// RemoteID 对账用的远端唯一标识：优先 listingId，缺失时退回 offerId
func (o *Offer) RemoteID() string {
	if o.Listing != nil && strings.TrimSpace(o.Listing.ListingID) != "" {
		return o.Listing.ListingID
	}
	return o.OfferID
}
