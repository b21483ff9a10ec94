// Package audit 提供审计轨迹服务
package audit

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
)

// 审计资源类型
const (
	ResourceBooking = "booking"
	ResourcePayment = "payment"
	ResourceRefund  = "refund"
	ResourcePayout  = "payout"
	ResourceDispute = "dispute"
	ResourceListing = "listing"
)

// AuditService 审计服务
type AuditService struct {
	auditRepo *repository.AuditLogRepository
}

// NewAuditService 创建审计服务
func NewAuditService(auditRepo *repository.AuditLogRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

// Entry 一条待记录的审计事件
type Entry struct {
	UserID       *int64
	Action       string
	ResourceType string
	ResourceID   *int64
	OldValues    interface{}
	NewValues    interface{}
	IP           string
	UserAgent    string
}

func buildLog(e *Entry) *models.AuditLog {
	log := &models.AuditLog{
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
	}
	// 空值落 NULL 而不是空串
	if e.IP != "" {
		log.IP = &e.IP
	}
	if e.UserAgent != "" {
		log.UserAgent = &e.UserAgent
	}
	if e.OldValues != nil {
		if data, err := json.Marshal(e.OldValues); err == nil {
			_ = json.Unmarshal(data, &log.OldValues)
		}
	}
	if e.NewValues != nil {
		if data, err := json.Marshal(e.NewValues); err == nil {
			_ = json.Unmarshal(data, &log.NewValues)
		}
	}
	return log
}

// Record 记录审计事件
func (s *AuditService) Record(ctx context.Context, e *Entry) error {
	if err := s.auditRepo.Create(ctx, buildLog(e)); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// RecordTx 事务内记录审计事件，与业务写入同生共死
func (s *AuditService) RecordTx(tx *gorm.DB, e *Entry) error {
	return s.auditRepo.CreateTx(tx, buildLog(e))
}

// RecordStateChange 记录状态流转
func (s *AuditService) RecordStateChange(tx *gorm.DB, userID *int64, resourceType string, resourceID int64, action, from, to string) error {
	return s.RecordTx(tx, &Entry{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   &resourceID,
		OldValues:    map[string]interface{}{"status": from},
		NewValues:    map[string]interface{}{"status": to},
	})
}

// ListByResource 查询某资源的全部审计记录
func (s *AuditService) ListByResource(ctx context.Context, resourceType string, resourceID int64) ([]models.AuditLog, error) {
	logs, err := s.auditRepo.ListByResource(ctx, resourceType, resourceID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return logs, nil
}

// List 分页查询审计记录
func (s *AuditService) List(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.AuditLog, int64, error) {
	logs, total, err := s.auditRepo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return logs, total, nil
}
