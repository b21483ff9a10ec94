// Package dispute 提供争议仲裁服务
package dispute

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/common/logger"
	"github.com/voloteam/volo-stay-backend/internal/common/metrics"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
	"github.com/voloteam/volo-stay-backend/internal/service/audit"
	"github.com/voloteam/volo-stay-backend/internal/service/finance"
)

// DisputeService 争议服务
type DisputeService struct {
	db            *gorm.DB
	disputeRepo   *repository.DisputeRepository
	bookingRepo   *repository.BookingRepository
	payoutRepo    *repository.PayoutRepository
	settlementSvc *finance.SettlementService
	auditSvc      *audit.AuditService
	metrics       *metrics.Metrics
}

// NewDisputeService 创建争议服务
func NewDisputeService(
	db *gorm.DB,
	disputeRepo *repository.DisputeRepository,
	bookingRepo *repository.BookingRepository,
	payoutRepo *repository.PayoutRepository,
	settlementSvc *finance.SettlementService,
	auditSvc *audit.AuditService,
	m *metrics.Metrics,
) *DisputeService {
	return &DisputeService{
		db:            db,
		disputeRepo:   disputeRepo,
		bookingRepo:   bookingRepo,
		payoutRepo:    payoutRepo,
		settlementSvc: settlementSvc,
		auditSvc:      auditSvc,
		metrics:       m,
	}
}

// OpenRequest 开启争议请求
type OpenRequest struct {
	BookingID    int64    `json:"booking_id" binding:"required"`
	AgainstID    int64    `json:"against_id" binding:"required"`
	Category     string   `json:"category" binding:"required"`
	Description  string   `json:"description" binding:"required"`
	EvidenceURLs []string `json:"evidence_urls"`
}

// ResolveRequest 裁决请求
type ResolveRequest struct {
	ResolutionType   string `json:"resolution_type" binding:"required"`
	ResolutionNotes  string `json:"resolution_notes"`
	AdjustmentAmount int64  `json:"adjustment_amount"`
}

// GetDispute 获取争议
func (s *DisputeService) GetDispute(ctx context.Context, id int64) (*models.Dispute, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrDisputeNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return dispute, nil
}

// ListDisputes 分页查询争议
func (s *DisputeService) ListDisputes(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.Dispute, int64, error) {
	disputes, total, err := s.disputeRepo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return disputes, total, nil
}

// Open 开启争议
// 同一预订同时只允许一起未结争议，开启时记零金额账本标记
func (s *DisputeService) Open(ctx context.Context, raisedByID int64, req *OpenRequest) (*models.Dispute, error) {
	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	open, err := s.disputeRepo.HasOpenDispute(ctx, booking.ID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if open {
		return nil, errors.ErrDisputeOpen
	}

	evidence := make(models.JSONArray, 0, len(req.EvidenceURLs))
	for _, u := range req.EvidenceURLs {
		evidence = append(evidence, u)
	}

	dispute := &models.Dispute{
		BookingID:    booking.ID,
		RaisedByID:   raisedByID,
		AgainstID:    req.AgainstID,
		Category:     req.Category,
		Description:  req.Description,
		EvidenceURLs: evidence,
		Status:       domain.DisputeStatusOpened,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dispute).Error; err != nil {
			return err
		}
		if err := s.settlementSvc.RecordDisputeOpenedTx(tx, dispute); err != nil {
			return err
		}
		return s.auditSvc.RecordTx(tx, &audit.Entry{
			UserID:       &raisedByID,
			Action:       "dispute.open",
			ResourceType: audit.ResourceDispute,
			ResourceID:   &dispute.ID,
			NewValues: map[string]interface{}{
				"booking_id": booking.ID,
				"category":   dispute.Category,
				"status":     string(dispute.Status),
			},
		})
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordDispute(dispute.Category, string(dispute.Status))
	return dispute, nil
}

// StartReview 进入审理
func (s *DisputeService) StartReview(ctx context.Context, disputeID, operatorID int64) (*models.Dispute, error) {
	dispute, err := s.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if err := domain.AssertDisputeTransition(dispute.Status, domain.DisputeStatusUnderReview); err != nil {
		return nil, err
	}

	from := dispute.Status
	dispute.Status = domain.DisputeStatusUnderReview

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(dispute).Error; err != nil {
			return err
		}
		return s.auditSvc.RecordStateChange(tx, &operatorID, audit.ResourceDispute, dispute.ID, "dispute.start_review", string(from), string(dispute.Status))
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return dispute, nil
}

// Resolve 裁决争议
// payout_reversal 裁决会冲减或冲正对应放款单
func (s *DisputeService) Resolve(ctx context.Context, disputeID, operatorID int64, req *ResolveRequest) (*models.Dispute, error) {
	dispute, err := s.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	resolution := domain.ResolutionType(req.ResolutionType)
	if !resolution.Valid() {
		return nil, errors.ErrDisputeInvalid.WithMessagef("未知裁决类型: %s", req.ResolutionType)
	}
	if req.AdjustmentAmount < 0 {
		return nil, errors.ErrDisputeInvalid.WithMessage("调整金额不能为负")
	}
	if resolution == domain.ResolutionNoAction && req.AdjustmentAmount != 0 {
		return nil, errors.ErrDisputeInvalid.WithMessage("无动作裁决不允许调整金额")
	}
	if err := domain.AssertDisputeTransition(dispute.Status, domain.DisputeStatusResolved); err != nil {
		return nil, err
	}

	from := dispute.Status
	now := time.Now()
	dispute.Status = domain.DisputeStatusResolved
	dispute.ResolutionType = &resolution
	dispute.AdjustmentAmount = req.AdjustmentAmount
	dispute.ResolvedByID = &operatorID
	dispute.ResolvedAt = &now
	if req.ResolutionNotes != "" {
		dispute.ResolutionNotes = &req.ResolutionNotes
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(dispute).Error; err != nil {
			return err
		}
		if resolution == domain.ResolutionPayoutReversal || resolution == domain.ResolutionChargebackLost {
			if err := s.applyPayoutAdjustmentTx(tx, dispute, operatorID); err != nil {
				return err
			}
		}
		if dispute.AdjustmentAmount > 0 {
			if err := s.settlementSvc.RecordDisputeResolvedTx(tx, dispute, dispute.AdjustmentAmount); err != nil {
				return err
			}
		}
		return s.auditSvc.RecordTx(tx, &audit.Entry{
			UserID:       &operatorID,
			Action:       "dispute.resolve",
			ResourceType: audit.ResourceDispute,
			ResourceID:   &dispute.ID,
			OldValues:    map[string]interface{}{"status": string(from)},
			NewValues: map[string]interface{}{
				"status":            string(dispute.Status),
				"resolution_type":   string(resolution),
				"adjustment_amount": dispute.AdjustmentAmount,
			},
		})
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordDispute(dispute.Category, string(dispute.Status))
	logger.Info("争议已裁决",
		logger.Int64("dispute_id", dispute.ID),
		logger.String("resolution", string(resolution)),
		logger.Amount(dispute.AdjustmentAmount))

	return dispute, nil
}

// applyPayoutAdjustmentTx 裁决金额大于等于放款额则整单冲正，否则按差额扣减
func (s *DisputeService) applyPayoutAdjustmentTx(tx *gorm.DB, dispute *models.Dispute, operatorID int64) error {
	payout, err := s.payoutRepo.GetByBookingTx(tx, dispute.BookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	if payout.Status == domain.PayoutStatusReversed {
		return nil
	}

	if dispute.AdjustmentAmount >= payout.Amount {
		from := payout.Status
		if err := domain.AssertPayoutTransition(payout.Status, domain.PayoutStatusReversed); err != nil {
			return err
		}
		payout.Status = domain.PayoutStatusReversed
		if err := s.payoutRepo.UpdateTx(tx, payout); err != nil {
			return err
		}
		if from == domain.PayoutStatusReleased {
			reason := fmt.Sprintf("争议 #%d 裁决冲正", dispute.ID)
			if err := s.settlementSvc.RecordPayoutReversedTx(tx, payout, reason); err != nil {
				return err
			}
		}
		return s.auditSvc.RecordStateChange(tx, &operatorID, audit.ResourcePayout, payout.ID, "payout.reverse", string(from), string(payout.Status))
	}

	payout.Amount -= dispute.AdjustmentAmount
	return s.payoutRepo.UpdateTx(tx, payout)
}

// Reverse 撤销裁决
// 只能撤销已裁决的争议，原调整金额按贷记回冲
func (s *DisputeService) Reverse(ctx context.Context, disputeID, operatorID int64, reason string) (*models.Dispute, error) {
	dispute, err := s.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if err := domain.AssertDisputeTransition(dispute.Status, domain.DisputeStatusReversed); err != nil {
		return nil, err
	}

	from := dispute.Status
	dispute.Status = domain.DisputeStatusReversed
	notes := fmt.Sprintf("REVERSED: %s", reason)
	if dispute.ResolutionNotes != nil {
		notes = fmt.Sprintf("%s\nREVERSED: %s", *dispute.ResolutionNotes, reason)
	}
	dispute.ResolutionNotes = &notes

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(dispute).Error; err != nil {
			return err
		}
		if dispute.AdjustmentAmount > 0 {
			if err := s.settlementSvc.RecordDisputeReversedTx(tx, dispute, dispute.AdjustmentAmount, reason); err != nil {
				return err
			}
		}
		return s.auditSvc.RecordTx(tx, &audit.Entry{
			UserID:       &operatorID,
			Action:       "dispute.reverse",
			ResourceType: audit.ResourceDispute,
			ResourceID:   &dispute.ID,
			OldValues:    map[string]interface{}{"status": string(from)},
			NewValues:    map[string]interface{}{"status": string(dispute.Status), "reason": reason},
		})
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordDispute(dispute.Category, string(dispute.Status))
	return dispute, nil
}
