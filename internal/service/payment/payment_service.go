// Package payment 提供支付与退款服务
package payment

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/common/idempotency"
	"github.com/voloteam/volo-stay-backend/internal/common/logger"
	"github.com/voloteam/volo-stay-backend/internal/common/metrics"
	"github.com/voloteam/volo-stay-backend/internal/common/tracing"
	"github.com/voloteam/volo-stay-backend/internal/common/utils"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
	"github.com/voloteam/volo-stay-backend/internal/service/audit"
	"github.com/voloteam/volo-stay-backend/internal/service/finance"
	"github.com/voloteam/volo-stay-backend/pkg/gateway"
)

// PaymentService 支付服务
type PaymentService struct {
	db            *gorm.DB
	paymentRepo   *repository.PaymentRepository
	refundRepo    *repository.RefundRepository
	bookingRepo   *repository.BookingRepository
	payoutRepo    *repository.PayoutRepository
	settlementSvc *finance.SettlementService
	auditSvc      *audit.AuditService
	guard         *idempotency.Guard
	gatewayClient *gateway.Client
	metrics       *metrics.Metrics
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	db *gorm.DB,
	paymentRepo *repository.PaymentRepository,
	refundRepo *repository.RefundRepository,
	bookingRepo *repository.BookingRepository,
	payoutRepo *repository.PayoutRepository,
	settlementSvc *finance.SettlementService,
	auditSvc *audit.AuditService,
	guard *idempotency.Guard,
	gatewayClient *gateway.Client,
	m *metrics.Metrics,
) *PaymentService {
	return &PaymentService{
		db:            db,
		paymentRepo:   paymentRepo,
		refundRepo:    refundRepo,
		bookingRepo:   bookingRepo,
		payoutRepo:    payoutRepo,
		settlementSvc: settlementSvc,
		auditSvc:      auditSvc,
		guard:         guard,
		gatewayClient: gatewayClient,
		metrics:       m,
	}
}

// CreatePayment 为预订创建支付单并在网关下单
func (s *PaymentService) CreatePayment(ctx context.Context, bookingID, guestID int64) (*models.Payment, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if booking.Status == domain.BookingStatusCancelled {
		return nil, errors.ErrBookingCancelled
	}
	if booking.IsExternalSource() {
		return nil, errors.ErrInvalidParams.WithMessage("外部渠道预订的资金不经平台")
	}

	payment := &models.Payment{
		PaymentNo: utils.GenerateReferenceNo("PAY"),
		BookingID: booking.ID,
		GuestID:   booking.GuestID,
		Amount:    booking.TotalPrice,
		Currency:  booking.Currency,
		Gateway:   s.gatewayClient.Name(),
		Status:    domain.PaymentStatusPending,
	}

	charge, err := s.gatewayClient.CreateCharge(ctx, &gateway.ChargeRequest{
		ReferenceNo: payment.PaymentNo,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Description: "预订 " + booking.BookingNumber,
	})
	if err != nil {
		return nil, errors.ErrGatewayError.WithError(err)
	}
	payment.GatewayTransactionID = &charge.TransactionID

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordPayment(payment.Gateway, string(payment.Status))
	return payment, nil
}

// GetPayment 获取支付单
func (s *PaymentService) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return payment, nil
}

// ListPayments 分页查询支付单
func (s *PaymentService) ListPayments(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.Payment, int64, error) {
	payments, total, err := s.paymentRepo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return payments, total, nil
}

// MarkPaid 确认收款
// 幂等窗口内重复确认直接拒绝；收款分录与状态流转在同一事务
func (s *PaymentService) MarkPaid(ctx context.Context, paymentID, operatorID int64, gatewayTransactionID string) (*models.Payment, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "payment.mark_paid",
		tracing.WithOperation(idempotency.OpPaymentMarkPaid))
	defer span.End()

	if err := s.guard.Acquire(ctx, idempotency.OpPaymentMarkPaid, paymentID, nil); err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.ErrDuplicateOperation.Code {
			s.metrics.RecordIdempotencyHit()
		}
		return nil, err
	}

	var payment *models.Payment
	var booking *models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		// 持行锁读取并在锁内校验，并发确认与退款在此串行化
		payment, err = s.paymentRepo.GetByIDForUpdateTx(tx, paymentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrPaymentNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		tracing.SetAttributes(ctx, tracing.WithBookingID(payment.BookingID))

		booking, err = s.bookingRepo.GetByIDForUpdateTx(tx, payment.BookingID)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if err := s.markPaidChecks(payment, booking); err != nil {
			return err
		}

		from := payment.Status
		now := time.Now()
		payment.Status = domain.PaymentStatusCompleted
		payment.PaidAt = &now
		if gatewayTransactionID != "" {
			payment.GatewayTransactionID = &gatewayTransactionID
		}
		booking.PaymentState = domain.BookingPaymentPaid

		if err := tx.Save(payment).Error; err != nil {
			return err
		}
		if err := tx.Save(booking).Error; err != nil {
			return err
		}
		if err := s.settlementSvc.RecordPaymentReceivedTx(tx, booking, payment); err != nil {
			return err
		}
		return s.auditSvc.RecordStateChange(tx, &operatorID, audit.ResourcePayment, payment.ID, "payment.mark_paid", string(from), string(payment.Status))
	})
	if err != nil {
		s.releaseGuard(ctx, idempotency.OpPaymentMarkPaid, paymentID, nil)
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordPayment(payment.Gateway, string(payment.Status))
	logger.Info("确认收款",
		logger.String("payment_no", payment.PaymentNo),
		logger.BookingNo(booking.BookingNumber),
		logger.Amount(payment.Amount))

	return payment, nil
}

func (s *PaymentService) markPaidChecks(payment *models.Payment, booking *models.Booking) error {
	if booking.Status == domain.BookingStatusCancelled {
		return errors.ErrBookingCancelled
	}
	return domain.AssertPaymentTransition(payment.Status, domain.PaymentStatusCompleted)
}

// RefundRequest 退款请求
type RefundRequest struct {
	Amount int64  `json:"amount" binding:"required,min=1"`
	Reason string `json:"reason" binding:"required"`
}

// Refund 发起退款
// 幂等键含金额与原因；超额退款拒绝；全额退款冲正放款，部分退款按净额扣减
func (s *PaymentService) Refund(ctx context.Context, paymentID, operatorID int64, req *RefundRequest) (*models.Refund, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "payment.refund",
		tracing.WithOperation(idempotency.OpRefundCreate))
	defer span.End()

	idemParams := map[string]interface{}{"amount": req.Amount, "reason": req.Reason}
	if err := s.guard.Acquire(ctx, idempotency.OpRefundCreate, paymentID, idemParams); err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.ErrDuplicateOperation.Code {
			s.metrics.RecordIdempotencyHit()
		}
		return nil, err
	}

	refund, err := s.refund(ctx, paymentID, operatorID, req)
	if err != nil {
		tracing.SetError(ctx, err)
		s.releaseGuard(ctx, idempotency.OpRefundCreate, paymentID, idemParams)
		return nil, err
	}
	return refund, nil
}

func (s *PaymentService) refund(ctx context.Context, paymentID, operatorID int64, req *RefundRequest) (*models.Refund, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if payment.Status != domain.PaymentStatusCompleted {
		return nil, errors.ErrPaymentNotSettled.WithMessage("仅已收款的支付单可退款")
	}

	refunded, err := s.refundRepo.SumByPayment(ctx, payment.ID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if req.Amount+refunded > payment.Amount {
		return nil, errors.ErrRefundAmountExceed.WithMessagef("累计退款 %d 超出支付金额 %d", req.Amount+refunded, payment.Amount)
	}

	booking, err := s.bookingRepo.GetByID(ctx, payment.BookingID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	refund := &models.Refund{
		RefundNo:  utils.GenerateReferenceNo("RF"),
		PaymentID: payment.ID,
		BookingID: booking.ID,
		Amount:    req.Amount,
		Currency:  payment.Currency,
		Reason:    req.Reason,
		Status:    models.RefundStatusApproved,
	}

	// 先走网关，网关失败则什么都不落库
	if payment.GatewayTransactionID != nil {
		resp, err := s.gatewayClient.ProcessRefund(ctx, &gateway.RefundRequest{
			TransactionID: *payment.GatewayTransactionID,
			RefundNo:      refund.RefundNo,
			Amount:        refund.Amount,
			Reason:        refund.Reason,
		})
		if err != nil {
			return nil, errors.ErrGatewayError.WithError(err)
		}
		refund.GatewayRefundID = &resp.RefundID
	}

	var fullyRefunded bool

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 网关调用之后重新持行锁校验，并发的退款与放款在此串行化
		payment, err = s.paymentRepo.GetByIDForUpdateTx(tx, payment.ID)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		booking, err = s.bookingRepo.GetByIDForUpdateTx(tx, booking.ID)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if payment.Status != domain.PaymentStatusCompleted {
			return errors.ErrPaymentNotSettled.WithMessage("仅已收款的支付单可退款")
		}
		refunded, err = s.refundRepo.SumByPaymentTx(tx, payment.ID)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if req.Amount+refunded > payment.Amount {
			return errors.ErrRefundAmountExceed.WithMessagef("累计退款 %d 超出支付金额 %d", req.Amount+refunded, payment.Amount)
		}
		fullyRefunded = refunded+req.Amount >= payment.Amount

		now := time.Now()
		refund.ProcessedAt = &now
		if err := s.refundRepo.CreateTx(tx, refund); err != nil {
			return err
		}

		if fullyRefunded {
			if err := domain.AssertPaymentTransition(payment.Status, domain.PaymentStatusRefunded); err != nil {
				return err
			}
			payment.Status = domain.PaymentStatusRefunded
			booking.PaymentState = domain.BookingPaymentRefunded
		} else {
			booking.PaymentState = domain.BookingPaymentPartiallyRefunded
		}
		booking.RefundAmount += req.Amount

		if err := tx.Save(payment).Error; err != nil {
			return err
		}
		if err := tx.Save(booking).Error; err != nil {
			return err
		}

		if err := s.settlementSvc.RecordRefundIssuedTx(tx, booking, refund); err != nil {
			return err
		}

		if err := s.adjustPayoutTx(tx, booking, refund, fullyRefunded, operatorID); err != nil {
			return err
		}

		return s.auditSvc.RecordTx(tx, &audit.Entry{
			UserID:       &operatorID,
			Action:       "refund.create",
			ResourceType: audit.ResourceRefund,
			ResourceID:   &refund.ID,
			NewValues: map[string]interface{}{
				"refund_no": refund.RefundNo,
				"amount":    refund.Amount,
				"reason":    refund.Reason,
			},
		})
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordRefund(req.Reason, req.Amount)
	logger.Info("退款完成",
		logger.String("refund_no", refund.RefundNo),
		logger.BookingNo(booking.BookingNumber),
		logger.Amount(refund.Amount))

	return refund, nil
}

// adjustPayoutTx 退款后的放款调整
// 全额退款冲正放款；部分退款从放款中扣除退款净额（退款额减去对应佣金），下限 0
func (s *PaymentService) adjustPayoutTx(tx *gorm.DB, booking *models.Booking, refund *models.Refund, fullyRefunded bool, operatorID int64) error {
	payout, err := s.payoutRepo.GetByBookingTx(tx, booking.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	if payout.Status == domain.PayoutStatusReversed {
		return nil
	}

	if fullyRefunded {
		from := payout.Status
		if err := domain.AssertPayoutTransition(payout.Status, domain.PayoutStatusReversed); err != nil {
			return err
		}
		payout.Status = domain.PayoutStatusReversed
		if err := tx.Save(payout).Error; err != nil {
			return err
		}
		if from == domain.PayoutStatusReleased {
			if err := s.settlementSvc.RecordPayoutReversedTx(tx, payout, "全额退款"); err != nil {
				return err
			}
		}
		return s.auditSvc.RecordStateChange(tx, &operatorID, audit.ResourcePayout, payout.ID, "payout.reverse", string(from), string(payout.Status))
	}

	refundCommission := domain.RoundHalfUpBps(refund.Amount, booking.CommissionBps)
	deduction := refund.Amount - refundCommission
	payout.Amount -= deduction
	if payout.Amount < 0 {
		payout.Amount = 0
	}
	refund.DeductedFromPayoutID = &payout.ID
	if err := tx.Save(refund).Error; err != nil {
		return err
	}
	return tx.Save(payout).Error
}

// ListRefunds 查询预订的退款记录
func (s *PaymentService) ListRefunds(ctx context.Context, bookingID int64) ([]models.Refund, error) {
	refunds, err := s.refundRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return refunds, nil
}

func (s *PaymentService) releaseGuard(ctx context.Context, op string, entityID int64, params map[string]interface{}) {
	if err := s.guard.Release(ctx, op, entityID, params); err != nil {
		logger.Warn("释放幂等键失败", logger.String("operation", op), logger.Err(err))
	}
}
