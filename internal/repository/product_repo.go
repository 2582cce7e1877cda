package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
)

// ProductRepository 产品目录仓储接口 (对账引擎的只读协作方)
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	// FindBySKU 精确匹配，返回全部命中行，歧义由调用方裁决
	FindBySKU(ctx context.Context, sku string) ([]model.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
	Create(ctx context.Context, product *model.Product) error
}

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建产品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}
