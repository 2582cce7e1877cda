package service

import (
	"context"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
	"github.com/Souid83/Gestion-Stock-sub001/internal/repository"
)

// resolveAccountAndToken 迁移/对账/库存推送共用的前置检查
// 规则：账号必须存在、启用且平台匹配；Token 必须存在且不是占位值。
// 两者缺一立即失败，绝不发起任何网络调用
func resolveAccountAndToken(ctx context.Context, accounts repository.AccountRepository,
	tokens repository.TokenRepository, accountID int64) (*model.MarketplaceAccount, *model.OAuthToken, error) {

	account, err := accounts.GetActive(ctx, accountID, model.ProviderEbay)
	if err != nil {
		return nil, nil, ErrAccountNotFound
	}

	token, err := tokens.GetCurrent(ctx, accountID)
	if err != nil || token.IsPlaceholder() {
		return nil, nil, ErrTokenMissing
	}

	return account, token, nil
}
