package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
)

// CredentialRepository 应用凭证仓储接口
type CredentialRepository interface {
	GetByProviderEnv(ctx context.Context, provider, environment string) (*model.ProviderCredential, error)
	Save(ctx context.Context, cred *model.ProviderCredential) error
}

type credentialRepo struct {
	db *gorm.DB
}

// NewCredentialRepository 创建应用凭证仓储
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) GetByProviderEnv(ctx context.Context, provider, environment string) (*model.ProviderCredential, error) {
	var cred model.ProviderCredential
	err := r.db.WithContext(ctx).
		Where("provider = ? AND environment = ?", provider, environment).
		First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepo) Save(ctx context.Context, cred *model.ProviderCredential) error {
	return r.db.WithContext(ctx).Save(cred).Error
}
