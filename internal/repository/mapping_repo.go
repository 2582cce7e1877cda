package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
)

// ==================== 过滤条件 ====================

// MappingFilter 对账视图过滤条件
type MappingFilter struct {
	RemoteSKU  string
	SyncStatus string // 空表示不筛选
	Page       int
	PageSize   int
}

// ==================== 接口定义 ====================

// MappingRepository 远端在售记录映射仓储接口
type MappingRepository interface {
	GetByRemoteID(ctx context.Context, accountID int64, remoteID string) (*model.ListingMapping, error)
	// UpsertSnapshot 首次见到某 remote_id 时建行 (unmapped)，
	// 已存在时只刷新远端快照字段，不动关联状态
	UpsertSnapshot(ctx context.Context, mapping *model.ListingMapping) error
	// Link 建立/覆盖 remote_id -> product_id 的关联
	Link(ctx context.Context, accountID int64, remoteID, remoteSKU string, productID int64, source, status string) error
	SetIgnored(ctx context.Context, accountID int64, remoteID string) error
	UpdateSyncStatus(ctx context.Context, accountID int64, remoteID, status string) error
	// List 工作集分页 (排除已忽略)
	List(ctx context.Context, accountID int64, filter MappingFilter) ([]model.ListingMapping, int64, error)
	// ListMapped 取已关联且未忽略的全部行 (库存收敛用)
	ListMapped(ctx context.Context, accountID int64) ([]model.ListingMapping, error)
}

// ==================== 仓储实现 ====================

type mappingRepo struct {
	db *gorm.DB
}

// NewMappingRepository 创建映射仓储
func NewMappingRepository(db *gorm.DB) MappingRepository {
	return &mappingRepo{db: db}
}

func (r *mappingRepo) GetByRemoteID(ctx context.Context, accountID int64, remoteID string) (*model.ListingMapping, error) {
	var mapping model.ListingMapping
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND remote_id = ?", accountID, remoteID).
		First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *mappingRepo) UpsertSnapshot(ctx context.Context, mapping *model.ListingMapping) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"remote_sku", "remote_title", "remote_quantity",
			"price_amount", "currency_code", "updated_at",
		}),
	}).Create(mapping).Error
}

func (r *mappingRepo) Link(ctx context.Context, accountID int64, remoteID, remoteSKU string, productID int64, source, status string) error {
	mapping := &model.ListingMapping{
		AccountID:  accountID,
		RemoteID:   remoteID,
		RemoteSKU:  remoteSKU,
		ProductID:  productID,
		SyncStatus: status,
		LinkSource: source,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"remote_sku", "product_id", "sync_status", "link_source", "updated_at",
		}),
	}).Create(mapping).Error
}

func (r *mappingRepo) SetIgnored(ctx context.Context, accountID int64, remoteID string) error {
	return r.db.WithContext(ctx).
		Model(&model.ListingMapping{}).
		Where("account_id = ? AND remote_id = ?", accountID, remoteID).
		Update("ignored", true).Error
}

func (r *mappingRepo) UpdateSyncStatus(ctx context.Context, accountID int64, remoteID, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.ListingMapping{}).
		Where("account_id = ? AND remote_id = ?", accountID, remoteID).
		Update("sync_status", status).Error
}

func (r *mappingRepo) List(ctx context.Context, accountID int64, filter MappingFilter) ([]model.ListingMapping, int64, error) {
	var mappings []model.ListingMapping
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.ListingMapping{}).
		Where("account_id = ? AND ignored = ?", accountID, false)

	if filter.RemoteSKU != "" {
		query = query.Where("remote_sku = ?", filter.RemoteSKU)
	}
	if filter.SyncStatus != "" {
		query = query.Where("sync_status = ?", filter.SyncStatus)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("id ASC").Limit(filter.PageSize).Offset(offset).Find(&mappings).Error; err != nil {
		return nil, 0, err
	}

	return mappings, total, nil
}

func (r *mappingRepo) ListMapped(ctx context.Context, accountID int64) ([]model.ListingMapping, error) {
	var mappings []model.ListingMapping
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND product_id > 0 AND ignored = ?", accountID, false).
		Order("id ASC").
		Find(&mappings).Error
	return mappings, err
}
