package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/database"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

// ListingRepository 房源仓储
type ListingRepository struct {
	db *gorm.DB
}

// NewListingRepository 创建房源仓储
func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create 创建房源
func (r *ListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

// GetByID 根据 ID 获取房源
func (r *ListingRepository) GetByID(ctx context.Context, id int64) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).First(&listing, id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// Update 更新房源
func (r *ListingRepository) Update(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Save(listing).Error
}

// List 分页查询房源
func (r *ListingRepository) List(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.Listing, int64, error) {
	var listings []models.Listing
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Listing{})

	if hostID, ok := filters["host_id"]; ok {
		query = query.Where("host_id = ?", hostID)
	}
	if city, ok := filters["city"]; ok {
		query = query.Where("city = ?", city)
	}
	if status, ok := filters["status"]; ok {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(database.OrderByCreatedDesc, database.Paginate(page, pageSize)).
		Find(&listings).Error
	return listings, total, err
}
