// Package finance 提供结算账本、财务快照与对账服务
package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
)

// SettlementService 结算账本服务
// 所有分录通过本服务写入，写入前做重复与金额校验
type SettlementService struct {
	db         *gorm.DB
	ledgerRepo *repository.LedgerRepository
	periodRepo *repository.PeriodRepository
	currency   string
}

// NewSettlementService 创建结算账本服务
func NewSettlementService(db *gorm.DB, ledgerRepo *repository.LedgerRepository, periodRepo *repository.PeriodRepository, currency string) *SettlementService {
	return &SettlementService{
		db:         db,
		ledgerRepo: ledgerRepo,
		periodRepo: periodRepo,
		currency:   currency,
	}
}

// 各分录类型的唯一性引用列
var entryRefColumns = map[string]string{
	models.EntryPaymentReceived: "payment_id",
	models.EntryRefundIssued:    "refund_id",
	models.EntryPayoutReleased:  "payout_id",
	models.EntryPayoutReversed:  "payout_id",
	models.EntryDisputeOpened:   "dispute_id",
	models.EntryDisputeResolved: "dispute_id",
	models.EntryDisputeReversed: "dispute_id",
}

// isUniqueViolation 识别唯一索引冲突，postgres 与 sqlite 的报错文案不同
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func refID(entry *models.SettlementLedgerEntry, column string) *int64 {
	switch column {
	case "payment_id":
		return entry.PaymentID
	case "refund_id":
		return entry.RefundID
	case "payout_id":
		return entry.PayoutID
	case "dispute_id":
		return entry.DisputeID
	}
	return nil
}

// appendEntryTx 校验并写入一条分录
// 金额必须非负，纠纷标记分录可为 0；同一单据同类型分录只允许一条
func (s *SettlementService) appendEntryTx(tx *gorm.DB, entry *models.SettlementLedgerEntry) error {
	if entry.Amount < 0 {
		return errors.ErrLedgerAmountInvalid.WithMessagef("分录金额不能为负: %d", entry.Amount)
	}
	if entry.Amount == 0 && entry.EntryType != models.EntryDisputeOpened {
		return errors.ErrLedgerAmountInvalid.WithMessage("分录金额必须为正数")
	}

	column := entryRefColumns[entry.EntryType]
	id := refID(entry, column)
	if id != nil {
		exists, err := s.ledgerRepo.ExistsEntryTx(tx, entry.EntryType, column, *id)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if exists {
			return errors.ErrDuplicateLedgerEntry.WithMessagef("分录已存在: %s", entry.EntryType)
		}
	}

	if entry.Currency == "" {
		entry.Currency = s.currency
	}
	if entry.EffectiveDate.IsZero() {
		now := time.Now()
		entry.EffectiveDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	// 读检查只拦住先后到达的重复，并发插入靠唯一索引兜底
	if err := s.ledgerRepo.CreateTx(tx, entry); err != nil {
		if isUniqueViolation(err) {
			return errors.ErrDuplicateLedgerEntry.WithMessagef("分录已存在: %s", entry.EntryType)
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// RecordPaymentReceivedTx 记录收款分录（贷记）
func (s *SettlementService) RecordPaymentReceivedTx(tx *gorm.DB, booking *models.Booking, payment *models.Payment) error {
	return s.appendEntryTx(tx, &models.SettlementLedgerEntry{
		EntryType:            models.EntryPaymentReceived,
		Direction:            models.DirectionCredit,
		Amount:               payment.Amount,
		BookingID:            &booking.ID,
		PaymentID:            &payment.ID,
		CounterpartyType:     models.CounterpartyGuest,
		CounterpartyID:       &payment.GuestID,
		Gateway:              &payment.Gateway,
		GatewayTransactionID: payment.GatewayTransactionID,
		Description:          fmt.Sprintf("收款 %s 预订 %s", payment.PaymentNo, booking.BookingNumber),
	})
}

// RecordRefundIssuedTx 记录退款分录（借记）
func (s *SettlementService) RecordRefundIssuedTx(tx *gorm.DB, booking *models.Booking, refund *models.Refund) error {
	return s.appendEntryTx(tx, &models.SettlementLedgerEntry{
		EntryType:        models.EntryRefundIssued,
		Direction:        models.DirectionDebit,
		Amount:           refund.Amount,
		BookingID:        &booking.ID,
		PaymentID:        &refund.PaymentID,
		RefundID:         &refund.ID,
		CounterpartyType: models.CounterpartyGuest,
		Description:      fmt.Sprintf("退款 %s 预订 %s: %s", refund.RefundNo, booking.BookingNumber, refund.Reason),
	})
}

// RecordPayoutReleasedTx 记录放款分录（借记）
func (s *SettlementService) RecordPayoutReleasedTx(tx *gorm.DB, payout *models.HostPayout) error {
	return s.appendEntryTx(tx, &models.SettlementLedgerEntry{
		EntryType:        models.EntryPayoutReleased,
		Direction:        models.DirectionDebit,
		Amount:           payout.Amount,
		BookingID:        payout.BookingID,
		PayoutID:         &payout.ID,
		CounterpartyType: models.CounterpartyHost,
		CounterpartyID:   &payout.HostID,
		Description:      fmt.Sprintf("放款 %s", payout.PayoutNo),
	})
}

// RecordPayoutReversedTx 记录放款冲正分录（贷记），仅对已放款的单据记账
func (s *SettlementService) RecordPayoutReversedTx(tx *gorm.DB, payout *models.HostPayout, reason string) error {
	return s.appendEntryTx(tx, &models.SettlementLedgerEntry{
		EntryType:        models.EntryPayoutReversed,
		Direction:        models.DirectionCredit,
		Amount:           payout.Amount,
		BookingID:        payout.BookingID,
		PayoutID:         &payout.ID,
		CounterpartyType: models.CounterpartyHost,
		CounterpartyID:   &payout.HostID,
		Description:      fmt.Sprintf("放款冲正 %s: %s", payout.PayoutNo, reason),
	})
}

// RecordDisputeOpenedTx 记录纠纷立案标记分录（借记，金额 0）
func (s *SettlementService) RecordDisputeOpenedTx(tx *gorm.DB, dispute *models.Dispute) error {
	return s.appendEntryTx(tx, &models.SettlementLedgerEntry{
		EntryType:        models.EntryDisputeOpened,
		Direction:        models.DirectionDebit,
		Amount:           0,
		BookingID:        &dispute.BookingID,
		DisputeID:        &dispute.ID,
		CounterpartyType: models.CounterpartyDispute,
		Description:      fmt.Sprintf("纠纷立案 #%d: %s", dispute.ID, dispute.Category),
	})
}

// RecordDisputeResolvedTx 记录纠纷裁决分录（借记，调整金额）
func (s *SettlementService) RecordDisputeResolvedTx(tx *gorm.DB, dispute *models.Dispute, adjustment int64) error {
	return s.appendEntryTx(tx, &models.SettlementLedgerEntry{
		EntryType:        models.EntryDisputeResolved,
		Direction:        models.DirectionDebit,
		Amount:           adjustment,
		BookingID:        &dispute.BookingID,
		DisputeID:        &dispute.ID,
		CounterpartyType: models.CounterpartyDispute,
		Description:      fmt.Sprintf("纠纷裁决 #%d", dispute.ID),
	})
}

// RecordDisputeReversedTx 记录纠纷裁决撤销分录（贷记）
func (s *SettlementService) RecordDisputeReversedTx(tx *gorm.DB, dispute *models.Dispute, amount int64, reason string) error {
	return s.appendEntryTx(tx, &models.SettlementLedgerEntry{
		EntryType:        models.EntryDisputeReversed,
		Direction:        models.DirectionCredit,
		Amount:           amount,
		BookingID:        &dispute.BookingID,
		DisputeID:        &dispute.ID,
		CounterpartyType: models.CounterpartyDispute,
		Description:      fmt.Sprintf("纠纷裁决撤销 #%d: %s", dispute.ID, reason),
	})
}

// GetBookingLedger 查询预订的全部分录
func (s *SettlementService) GetBookingLedger(ctx context.Context, bookingID int64) ([]models.SettlementLedgerEntry, error) {
	entries, err := s.ledgerRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return entries, nil
}

// CheckLedgerBalance 校验账本余额恒等式：贷记合计不得小于借记合计
func (s *SettlementService) CheckLedgerBalance(ctx context.Context) (credits, debits int64, err error) {
	credits, err = s.ledgerRepo.SumByDirection(ctx, models.DirectionCredit)
	if err != nil {
		return 0, 0, errors.ErrDatabaseError.WithError(err)
	}
	debits, err = s.ledgerRepo.SumByDirection(ctx, models.DirectionDebit)
	if err != nil {
		return 0, 0, errors.ErrDatabaseError.WithError(err)
	}
	if credits < debits {
		return credits, debits, errors.ErrLedgerImbalance.WithMessagef("贷记 %d 小于借记 %d", credits, debits)
	}
	return credits, debits, nil
}

// RefreshPeriodTotals 重算某对账周期的汇总
// 净头寸 = 收款 − 退款 − 放款 + 冲正
func (s *SettlementService) RefreshPeriodTotals(ctx context.Context, periodType string, at time.Time) (*models.ReconciliationPeriod, error) {
	period, err := s.periodRepo.GetOrCreate(ctx, periodType, at)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	payments, paymentCount, err := s.ledgerRepo.SumByTypeAndDateRange(ctx, models.EntryPaymentReceived, period.PeriodStart, period.PeriodEnd)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	refunds, refundCount, err := s.ledgerRepo.SumByTypeAndDateRange(ctx, models.EntryRefundIssued, period.PeriodStart, period.PeriodEnd)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	payouts, payoutCount, err := s.ledgerRepo.SumByTypeAndDateRange(ctx, models.EntryPayoutReleased, period.PeriodStart, period.PeriodEnd)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	reversals, reversalCount, err := s.ledgerRepo.SumByTypeAndDateRange(ctx, models.EntryPayoutReversed, period.PeriodStart, period.PeriodEnd)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	now := time.Now()
	period.TotalPayments = payments
	period.TotalRefunds = refunds
	period.TotalPayouts = payouts
	period.TotalReversals = reversals
	period.NetPosition = payments - refunds - payouts + reversals
	period.PaymentCount = int(paymentCount)
	period.RefundCount = int(refundCount)
	period.PayoutCount = int(payoutCount)
	period.ReversalCount = int(reversalCount)
	period.LastRecalculatedAt = &now

	if err := s.periodRepo.Update(ctx, period); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return period, nil
}
