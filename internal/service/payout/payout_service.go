// Package payout 提供房东放款服务
package payout

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/common/idempotency"
	"github.com/voloteam/volo-stay-backend/internal/common/logger"
	"github.com/voloteam/volo-stay-backend/internal/common/metrics"
	"github.com/voloteam/volo-stay-backend/internal/common/tracing"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
	"github.com/voloteam/volo-stay-backend/internal/service/audit"
	"github.com/voloteam/volo-stay-backend/internal/service/finance"
)

// PayoutService 放款服务
type PayoutService struct {
	db            *gorm.DB
	payoutRepo    *repository.PayoutRepository
	bookingRepo   *repository.BookingRepository
	paymentRepo   *repository.PaymentRepository
	settlementSvc *finance.SettlementService
	auditSvc      *audit.AuditService
	guard         *idempotency.Guard
	metrics       *metrics.Metrics
}

// NewPayoutService 创建放款服务
func NewPayoutService(
	db *gorm.DB,
	payoutRepo *repository.PayoutRepository,
	bookingRepo *repository.BookingRepository,
	paymentRepo *repository.PaymentRepository,
	settlementSvc *finance.SettlementService,
	auditSvc *audit.AuditService,
	guard *idempotency.Guard,
	m *metrics.Metrics,
) *PayoutService {
	return &PayoutService{
		db:            db,
		payoutRepo:    payoutRepo,
		bookingRepo:   bookingRepo,
		paymentRepo:   paymentRepo,
		settlementSvc: settlementSvc,
		auditSvc:      auditSvc,
		guard:         guard,
		metrics:       m,
	}
}

// GetPayout 获取放款单
func (s *PayoutService) GetPayout(ctx context.Context, id int64) (*models.HostPayout, error) {
	payout, err := s.payoutRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPayoutNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return payout, nil
}

// ListPayouts 分页查询放款单
func (s *PayoutService) ListPayouts(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.HostPayout, int64, error) {
	payouts, total, err := s.payoutRepo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return payouts, total, nil
}

// checkGate 放款闸门：取消、退款、未收款、预订未完结都会拦下
func (s *PayoutService) checkGate(ctx context.Context, payout *models.HostPayout) error {
	if payout.BookingID == nil {
		return errors.ErrPayoutStateBlocked.WithMessage("放款单缺少预订引用")
	}
	booking, err := s.bookingRepo.GetByID(ctx, *payout.BookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrPayoutStateBlocked.WithMessage("预订不存在")
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	if ok, reason := domain.CanReleasePayout(booking.Status, booking.PaymentState); !ok {
		return errors.ErrPayoutStateBlocked.WithMessage(reason)
	}
	return nil
}

// checkGateTx 事务内持预订行锁过闸门，挡住与退款的并发竞争
func (s *PayoutService) checkGateTx(tx *gorm.DB, payout *models.HostPayout) error {
	if payout.BookingID == nil {
		return errors.ErrPayoutStateBlocked.WithMessage("放款单缺少预订引用")
	}
	booking, err := s.bookingRepo.GetByIDForUpdateTx(tx, *payout.BookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrPayoutStateBlocked.WithMessage("预订不存在")
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	if ok, reason := domain.CanReleasePayout(booking.Status, booking.PaymentState); !ok {
		return errors.ErrPayoutStateBlocked.WithMessage(reason)
	}
	return nil
}

// MarkEligible 到期标记可放款，需通过放款闸门
func (s *PayoutService) MarkEligible(ctx context.Context, payoutID, operatorID int64) (*models.HostPayout, error) {
	payout, err := s.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	if err := domain.AssertPayoutTransition(payout.Status, domain.PayoutStatusEligible); err != nil {
		return nil, err
	}
	if err := s.checkGate(ctx, payout); err != nil {
		return nil, err
	}

	from := payout.Status
	payout.Status = domain.PayoutStatusEligible

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(payout).Error; err != nil {
			return err
		}
		return s.auditSvc.RecordStateChange(tx, &operatorID, audit.ResourcePayout, payout.ID, "payout.mark_eligible", string(from), string(payout.Status))
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordPayout(string(payout.Status))
	return payout, nil
}

// Release 放款
// 幂等保护下再次过闸门，成功后记放款分录
func (s *PayoutService) Release(ctx context.Context, payoutID, operatorID int64) (*models.HostPayout, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "payout.release",
		tracing.WithPayoutID(payoutID),
		tracing.WithOperation(idempotency.OpPayoutRelease))
	defer span.End()

	if err := s.guard.Acquire(ctx, idempotency.OpPayoutRelease, payoutID, nil); err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.ErrDuplicateOperation.Code {
			s.metrics.RecordIdempotencyHit()
		}
		return nil, err
	}

	payout, err := s.release(ctx, payoutID, operatorID)
	if err != nil {
		tracing.SetError(ctx, err)
		s.releaseGuard(ctx, idempotency.OpPayoutRelease, payoutID)
		return nil, err
	}
	return payout, nil
}

func (s *PayoutService) release(ctx context.Context, payoutID, operatorID int64) (*models.HostPayout, error) {
	var payout *models.HostPayout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		// 持行锁读取并在锁内校验，并发的放款与退款在此串行化
		payout, err = s.payoutRepo.GetByIDForUpdateTx(tx, payoutID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrPayoutNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		if err := domain.AssertPayoutTransition(payout.Status, domain.PayoutStatusReleased); err != nil {
			return err
		}
		// 标记可放款之后预订可能被取消或退款，放款前重查
		if err := s.checkGateTx(tx, payout); err != nil {
			return err
		}

		from := payout.Status
		now := time.Now()
		payout.Status = domain.PayoutStatusReleased
		payout.ProcessedAt = &now

		if err := tx.Save(payout).Error; err != nil {
			return err
		}
		if err := s.settlementSvc.RecordPayoutReleasedTx(tx, payout); err != nil {
			return err
		}
		return s.auditSvc.RecordStateChange(tx, &operatorID, audit.ResourcePayout, payout.ID, "payout.release", string(from), string(payout.Status))
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordPayout(string(payout.Status))
	logger.Info("放款完成",
		logger.String("payout_no", payout.PayoutNo),
		logger.Int64("host_id", payout.HostID),
		logger.Amount(payout.Amount))

	return payout, nil
}

// Reverse 冲正放款
// 已放款的冲正记贷记分录，未放款的只改状态
func (s *PayoutService) Reverse(ctx context.Context, payoutID, operatorID int64, reason string) (*models.HostPayout, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "payout.reverse",
		tracing.WithPayoutID(payoutID),
		tracing.WithOperation(idempotency.OpPayoutReverse))
	defer span.End()

	if err := s.guard.Acquire(ctx, idempotency.OpPayoutReverse, payoutID, nil); err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.ErrDuplicateOperation.Code {
			s.metrics.RecordIdempotencyHit()
		}
		return nil, err
	}

	payout, err := s.reverse(ctx, payoutID, operatorID, reason)
	if err != nil {
		tracing.SetError(ctx, err)
		s.releaseGuard(ctx, idempotency.OpPayoutReverse, payoutID)
		return nil, err
	}
	return payout, nil
}

func (s *PayoutService) reverse(ctx context.Context, payoutID, operatorID int64, reason string) (*models.HostPayout, error) {
	var payout *models.HostPayout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		payout, err = s.payoutRepo.GetByIDForUpdateTx(tx, payoutID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrPayoutNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		if err := domain.AssertPayoutTransition(payout.Status, domain.PayoutStatusReversed); err != nil {
			return err
		}

		from := payout.Status
		payout.Status = domain.PayoutStatusReversed

		if err := tx.Save(payout).Error; err != nil {
			return err
		}
		if from == domain.PayoutStatusReleased {
			if err := s.settlementSvc.RecordPayoutReversedTx(tx, payout, reason); err != nil {
				return err
			}
		}
		return s.auditSvc.RecordTx(tx, &audit.Entry{
			UserID:       &operatorID,
			Action:       "payout.reverse",
			ResourceType: audit.ResourcePayout,
			ResourceID:   &payout.ID,
			OldValues:    map[string]interface{}{"status": string(from)},
			NewValues:    map[string]interface{}{"status": string(payout.Status), "reason": reason},
		})
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordPayout(string(payout.Status))
	return payout, nil
}

// SweepDueEligible 定时任务：到期且过闸门的待放款单批量转为可放款
func (s *PayoutService) SweepDueEligible(ctx context.Context, asOf time.Time, limit int) (int, error) {
	due, err := s.payoutRepo.ListDuePending(ctx, asOf, limit)
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}

	marked := 0
	for i := range due {
		payout := &due[i]
		if err := s.checkGate(ctx, payout); err != nil {
			continue
		}
		payout.Status = domain.PayoutStatusEligible
		if err := s.payoutRepo.Update(ctx, payout); err != nil {
			logger.Warn("放款扫描更新失败", logger.Int64("payout_id", payout.ID), logger.Err(err))
			continue
		}
		marked++
	}

	if marked > 0 {
		logger.Info("放款到期扫描", logger.Int("marked_eligible", marked))
	}
	return marked, nil
}

func (s *PayoutService) releaseGuard(ctx context.Context, op string, entityID int64) {
	if err := s.guard.Release(ctx, op, entityID, nil); err != nil {
		logger.Warn("释放幂等键失败", logger.String("operation", op), logger.Err(err))
	}
}
