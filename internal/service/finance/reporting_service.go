package finance

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
)

// ReportingService 财务报表服务，全部从账本与快照聚合，不回查业务表算钱
type ReportingService struct {
	ledgerRepo   *repository.LedgerRepository
	snapshotRepo *repository.SnapshotRepository
	payoutRepo   *repository.PayoutRepository
	refundRepo   *repository.RefundRepository
	userRepo     *repository.UserRepository
	currency     string
}

// NewReportingService 创建报表服务
func NewReportingService(
	ledgerRepo *repository.LedgerRepository,
	snapshotRepo *repository.SnapshotRepository,
	payoutRepo *repository.PayoutRepository,
	refundRepo *repository.RefundRepository,
	userRepo *repository.UserRepository,
	currency string,
) *ReportingService {
	if currency == "" {
		currency = "PKR"
	}
	return &ReportingService{
		ledgerRepo:   ledgerRepo,
		snapshotRepo: snapshotRepo,
		payoutRepo:   payoutRepo,
		refundRepo:   refundRepo,
		userRepo:     userRepo,
		currency:     currency,
	}
}

// ledgerTotals 窗口内各分录类型的金额与笔数
type ledgerTotals struct {
	payments      int64
	refunds       int64
	payouts       int64
	reversals     int64
	paymentCount  int64
	refundCount   int64
	payoutCount   int64
	reversalCount int64
}

func (s *ReportingService) sumLedger(ctx context.Context, from, to time.Time) (*ledgerTotals, error) {
	t := &ledgerTotals{}
	var err error
	if t.payments, t.paymentCount, err = s.ledgerRepo.SumByTypeAndDateRange(ctx, models.EntryPaymentReceived, from, to); err != nil {
		return nil, err
	}
	if t.refunds, t.refundCount, err = s.ledgerRepo.SumByTypeAndDateRange(ctx, models.EntryRefundIssued, from, to); err != nil {
		return nil, err
	}
	if t.payouts, t.payoutCount, err = s.ledgerRepo.SumByTypeAndDateRange(ctx, models.EntryPayoutReleased, from, to); err != nil {
		return nil, err
	}
	if t.reversals, t.reversalCount, err = s.ledgerRepo.SumByTypeAndDateRange(ctx, models.EntryPayoutReversed, from, to); err != nil {
		return nil, err
	}
	return t, nil
}

// DailySummary 日结算汇总
func (s *ReportingService) DailySummary(ctx context.Context, date time.Time) (*models.DailySettlementSummary, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)

	t, err := s.sumLedger(ctx, day, next)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	return &models.DailySettlementSummary{
		ReportDate:            day,
		TotalPaymentsReceived: t.payments,
		TotalRefundsIssued:    t.refunds,
		TotalPayoutsReleased:  t.payouts,
		TotalPayoutsReversed:  t.reversals,
		NetPosition:           t.payments - t.refunds - t.payouts + t.reversals,
		PaymentCount:          t.paymentCount,
		RefundCount:           t.refundCount,
		PayoutCount:           t.payoutCount,
		ReversalCount:         t.reversalCount,
		Currency:              s.currency,
	}, nil
}

// MonthlySummary 月结算汇总，佣金与预订数来自快照
func (s *ReportingService) MonthlySummary(ctx context.Context, year, month int) (*models.MonthlySettlementSummary, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	t, err := s.sumLedger(ctx, start, end)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	agg, err := s.snapshotRepo.AggregateByDateRange(ctx, start, end)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	return &models.MonthlySettlementSummary{
		Year:                  year,
		Month:                 month,
		PeriodStart:           start,
		PeriodEnd:             end,
		TotalPaymentsReceived: t.payments,
		TotalRefundsIssued:    t.refunds,
		TotalPayoutsReleased:  t.payouts,
		TotalPayoutsReversed:  t.reversals,
		NetPosition:           t.payments - t.refunds - t.payouts + t.reversals,
		TotalCommissionEarned: agg.Commission,
		PaymentCount:          t.paymentCount,
		RefundCount:           t.refundCount,
		PayoutCount:           t.payoutCount,
		BookingCount:          agg.Count,
		Currency:              s.currency,
	}, nil
}

// PlatformRevenue 平台佣金收入报表
func (s *ReportingService) PlatformRevenue(ctx context.Context, from, to time.Time) (*models.PlatformRevenueReport, error) {
	agg, err := s.snapshotRepo.AggregateByDateRange(ctx, from, to)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	bySource, err := s.snapshotRepo.CommissionBySource(ctx, from, to)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	avgBps, err := s.snapshotRepo.AverageCommissionBps(ctx, from, to)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	return &models.PlatformRevenueReport{
		PeriodStart:           from,
		PeriodEnd:             to,
		TotalBookingValue:     agg.TotalPrice,
		TotalCommissionEarned: agg.Commission,
		AverageCommissionBps:  avgBps,
		BookingCount:          agg.Count,
		BySource:              bySource,
		Currency:              s.currency,
	}, nil
}

// HostEarnings 房东收益报表与明细行
func (s *ReportingService) HostEarnings(ctx context.Context, hostID int64, from, to time.Time) (*models.HostEarningsStatement, []models.HostEarningsLineItem, error) {
	host, err := s.userRepo.GetByID(ctx, hostID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, errors.ErrUserNotFound
		}
		return nil, nil, errors.ErrDatabaseError.WithError(err)
	}

	snapshots, err := s.snapshotRepo.ListByHostAndDateRange(ctx, hostID, from, to)
	if err != nil {
		return nil, nil, errors.ErrDatabaseError.WithError(err)
	}

	bookingIDs := make([]int64, 0, len(snapshots))
	for _, snap := range snapshots {
		bookingIDs = append(bookingIDs, snap.BookingID)
	}
	refundsByBooking, err := s.refundRepo.SumByBookingIDs(ctx, bookingIDs)
	if err != nil {
		return nil, nil, errors.ErrDatabaseError.WithError(err)
	}

	statement := &models.HostEarningsStatement{
		HostID:      hostID,
		HostEmail:   host.Email,
		PeriodStart: from,
		PeriodEnd:   to,
		Currency:    s.currency,
	}
	items := make([]models.HostEarningsLineItem, 0, len(snapshots))

	for _, snap := range snapshots {
		refunded := refundsByBooking[snap.BookingID]
		statement.TotalBookings++
		statement.TotalNights += int64(snap.Nights)
		statement.GrossEarnings += snap.GuestTotal
		statement.CommissionPaid += snap.Commission
		statement.RefundsDeducted += refunded
		statement.NetEarnings += snap.HostPayout - refunded

		items = append(items, models.HostEarningsLineItem{
			BookingID:     snap.BookingID,
			BookingNumber: snap.BookingNumber,
			CheckIn:       snap.CheckIn,
			CheckOut:      snap.CheckOut,
			Nights:        snap.Nights,
			GuestTotal:    snap.GuestTotal,
			CommissionBps: snap.CommissionBps,
			Commission:    snap.Commission,
			HostPayout:    snap.HostPayout,
			RefundAmount:  refunded,
			SnapshotAt:    snap.SnapshotAt,
		})
	}

	released, err := s.payoutRepo.SumByHostAndStatus(ctx, hostID, domain.PayoutStatusReleased)
	if err != nil {
		return nil, nil, errors.ErrDatabaseError.WithError(err)
	}
	pending, err := s.payoutRepo.SumByHostAndStatus(ctx, hostID, domain.PayoutStatusPending)
	if err != nil {
		return nil, nil, errors.ErrDatabaseError.WithError(err)
	}
	eligible, err := s.payoutRepo.SumByHostAndStatus(ctx, hostID, domain.PayoutStatusEligible)
	if err != nil {
		return nil, nil, errors.ErrDatabaseError.WithError(err)
	}
	statement.PayoutsReleased = released
	statement.PayoutsPending = pending + eligible

	return statement, items, nil
}
