package service

import "fmt"

// ==================== 机器可读错误码 ====================

// CodedError 带机器码的前置检查错误
// Code 会原样进响应体，供 UI / 调用方分支判断
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// 前置检查错误：在任何网络调用之前 fail fast，绝不重试
var (
	ErrAccountNotFound  = &CodedError{Code: "account_not_found", Message: "账号不存在或已停用"}
	ErrTokenMissing     = &CodedError{Code: "token_missing", Message: "账号没有可用 Token，请先完成授权"}
	ErrMissingAccountID = &CodedError{Code: "missing_account_id", Message: "缺少 account_id 参数"}
	ErrNoListingIDs     = &CodedError{Code: "no_listing_ids", Message: "listing_ids 为空"}
	ErrBadJSON          = &CodedError{Code: "bad_json", Message: "请求体不是合法 JSON"}
)

// OAuthExchangeError 授权码换 Token 被平台拒绝
// 保留原始响应体，排查时直接看平台原文
type OAuthExchangeError struct {
	StatusCode int
	Body       string
}

func (e *OAuthExchangeError) Error() string {
	return fmt.Sprintf("oauth exchange failed: status %d: %s", e.StatusCode, e.Body)
}
