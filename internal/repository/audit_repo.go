package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/database"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

// AuditLogRepository 审计日志仓储
// 审计日志只追加，不提供更新与删除
type AuditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create 写入审计日志
func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// CreateTx 事务内写入审计日志
func (r *AuditLogRepository) CreateTx(tx *gorm.DB, log *models.AuditLog) error {
	return tx.Create(log).Error
}

// ListByResource 查询某资源的审计轨迹
func (r *AuditLogRepository) ListByResource(ctx context.Context, resourceType string, resourceID int64) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at").
		Find(&logs).Error
	return logs, err
}

// List 分页查询审计日志
func (r *AuditLogRepository) List(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&models.AuditLog{})

	if userID, ok := filters["user_id"]; ok {
		query = query.Where("user_id = ?", userID)
	}
	if action, ok := filters["action"]; ok {
		query = query.Where("action = ?", action)
	}
	if resourceType, ok := filters["resource_type"]; ok {
		query = query.Where("resource_type = ?", resourceType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(database.OrderByCreatedDesc, database.Paginate(page, pageSize)).
		Find(&logs).Error
	return logs, total, err
}
