package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/database"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

// DisputeRepository 纠纷仓储
type DisputeRepository struct {
	db *gorm.DB
}

// NewDisputeRepository 创建纠纷仓储
func NewDisputeRepository(db *gorm.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create 创建纠纷
func (r *DisputeRepository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

// GetByID 根据 ID 获取纠纷
func (r *DisputeRepository) GetByID(ctx context.Context, id int64) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).First(&dispute, id).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// Update 更新纠纷
func (r *DisputeRepository) Update(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Save(dispute).Error
}

// UpdateTx 事务内更新纠纷
func (r *DisputeRepository) UpdateTx(tx *gorm.DB, dispute *models.Dispute) error {
	return tx.Save(dispute).Error
}

// HasOpenDispute 判断预订是否存在未了结的纠纷
func (r *DisputeRepository) HasOpenDispute(ctx context.Context, bookingID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Dispute{}).
		Where("booking_id = ?", bookingID).
		Where("status IN ?", []domain.DisputeStatus{domain.DisputeStatusOpened, domain.DisputeStatusUnderReview}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List 分页查询纠纷
func (r *DisputeRepository) List(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.Dispute, int64, error) {
	var disputes []models.Dispute
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Dispute{})

	if bookingID, ok := filters["booking_id"]; ok {
		query = query.Where("booking_id = ?", bookingID)
	}
	if status, ok := filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if category, ok := filters["category"]; ok {
		query = query.Where("category = ?", category)
	}
	if raisedByID, ok := filters["raised_by_id"]; ok {
		query = query.Where("raised_by_id = ?", raisedByID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(database.OrderByCreatedDesc, database.Paginate(page, pageSize)).
		Find(&disputes).Error
	return disputes, total, err
}
