package finance

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/common/logger"
	"github.com/voloteam/volo-stay-backend/internal/common/metrics"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
)

// 检查项名称
const (
	CheckSnapshotCoverage      = "booking_snapshot_coverage"
	CheckDuplicateSnapshots    = "duplicate_snapshots"
	CheckLedgerReferences      = "ledger_references"
	CheckLedgerMath            = "ledger_math_consistency"
	CheckPayoutBookingState    = "payout_booking_state"
	CheckRefundPaymentState    = "refund_payment_state"
	CheckLedgerSnapshotPairing = "ledger_snapshot_requirement"
	CheckOrphanPayouts         = "orphan_payouts"
)

// maxDetailItems 单项检查最多附带的明细条数
const maxDetailItems = 10

// CheckResult 单项检查结果
type CheckResult struct {
	Name    string        `json:"name"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Details []interface{} `json:"details,omitempty"`
}

// HealthReport 一次巡检的完整结果
type HealthReport struct {
	Status       string           `json:"status"`
	Checks       []CheckResult    `json:"checks"`
	EntityCounts map[string]int64 `json:"entity_counts"`
	StartedAt    time.Time        `json:"started_at"`
	DurationMs   int64            `json:"duration_ms"`
}

// HealthService 财务一致性巡检
// 只读校验，发现问题只上报不修复
type HealthService struct {
	bookingRepo  *repository.BookingRepository
	snapshotRepo *repository.SnapshotRepository
	ledgerRepo   *repository.LedgerRepository
	payoutRepo   *repository.PayoutRepository
	paymentRepo  *repository.PaymentRepository
	refundRepo   *repository.RefundRepository
	healthRepo   *repository.HealthRunRepository
	metrics      *metrics.Metrics
}

// NewHealthService 创建巡检服务
func NewHealthService(
	bookingRepo *repository.BookingRepository,
	snapshotRepo *repository.SnapshotRepository,
	ledgerRepo *repository.LedgerRepository,
	payoutRepo *repository.PayoutRepository,
	paymentRepo *repository.PaymentRepository,
	refundRepo *repository.RefundRepository,
	healthRepo *repository.HealthRunRepository,
	m *metrics.Metrics,
) *HealthService {
	return &HealthService{
		bookingRepo:  bookingRepo,
		snapshotRepo: snapshotRepo,
		ledgerRepo:   ledgerRepo,
		payoutRepo:   payoutRepo,
		paymentRepo:  paymentRepo,
		refundRepo:   refundRepo,
		healthRepo:   healthRepo,
		metrics:      m,
	}
}

func statusValue(status string) float64 {
	switch status {
	case models.HealthStatusWarning:
		return 1
	case models.HealthStatusError:
		return 2
	default:
		return 0
	}
}

// worse 取两个结论中更差的一个
func worse(a, b string) string {
	rank := map[string]int{
		models.HealthStatusOK:      0,
		models.HealthStatusWarning: 1,
		models.HealthStatusError:   2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Run 执行一次完整巡检并落库
func (s *HealthService) Run(ctx context.Context, trigger string) (*HealthReport, error) {
	started := time.Now()

	checks := []CheckResult{
		s.checkSnapshotCoverage(ctx),
		s.checkDuplicateSnapshots(ctx),
		s.checkLedgerReferences(ctx),
		s.checkLedgerMath(ctx),
		s.checkPayoutBookingState(ctx),
		s.checkRefundPaymentState(ctx),
		s.checkLedgerSnapshotPairing(ctx),
		s.checkOrphanPayouts(ctx),
	}

	overall := models.HealthStatusOK
	for _, c := range checks {
		overall = worse(overall, c.Status)
		s.metrics.SetHealthCheckStatus(c.Name, statusValue(c.Status))
	}

	counts, err := s.entityCounts(ctx)
	if err != nil {
		logger.Warn("巡检实体计数失败", logger.Err(err))
		counts = map[string]int64{}
	}

	duration := time.Since(started)
	s.metrics.RecordHealthRunDuration(duration)

	report := &HealthReport{
		Status:       overall,
		Checks:       checks,
		EntityCounts: counts,
		StartedAt:    started,
		DurationMs:   duration.Milliseconds(),
	}

	if err := s.persistRun(ctx, report, trigger); err != nil {
		logger.Error("巡检结果落库失败", logger.Err(err))
	}

	if overall != models.HealthStatusOK {
		logger.Warn("财务巡检发现异常",
			logger.String("status", overall),
			logger.String("trigger", trigger),
			logger.Int64("duration_ms", report.DurationMs))
	} else {
		logger.Info("财务巡检通过",
			logger.String("trigger", trigger),
			logger.Int64("duration_ms", report.DurationMs))
	}

	return report, nil
}

func (s *HealthService) persistRun(ctx context.Context, report *HealthReport, trigger string) error {
	checksJSON := make(models.JSON)
	for _, c := range report.Checks {
		entry := map[string]interface{}{
			"status":  c.Status,
			"message": c.Message,
		}
		if len(c.Details) > 0 {
			entry["details"] = c.Details
		}
		checksJSON[c.Name] = entry
	}

	countsJSON := make(models.JSON)
	for k, v := range report.EntityCounts {
		countsJSON[k] = v
	}

	completed := report.StartedAt.Add(time.Duration(report.DurationMs) * time.Millisecond)
	run := &models.FinanceHealthRun{
		Status:       report.Status,
		Checks:       checksJSON,
		EntityCounts: countsJSON,
		Trigger:      trigger,
		StartedAt:    report.StartedAt,
		CompletedAt:  &completed,
		DurationMs:   report.DurationMs,
	}
	return s.healthRepo.Create(ctx, run)
}

func (s *HealthService) entityCounts(ctx context.Context) (map[string]int64, error) {
	bookings, err := s.bookingRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.snapshotRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledgerRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int64{
		"bookings":       bookings,
		"snapshots":      snapshots,
		"ledger_entries": entries,
	}, nil
}

func errResult(name string, err error) CheckResult {
	return CheckResult{
		Name:    name,
		Status:  models.HealthStatusError,
		Message: "检查执行失败: " + err.Error(),
	}
}

func okResult(name, message string) CheckResult {
	return CheckResult{Name: name, Status: models.HealthStatusOK, Message: message}
}

// checkSnapshotCoverage 每个已完成预订必须有财务快照
func (s *HealthService) checkSnapshotCoverage(ctx context.Context) CheckResult {
	missing, err := s.bookingRepo.ListCompletedWithoutSnapshot(ctx, maxDetailItems)
	if err != nil {
		return errResult(CheckSnapshotCoverage, err)
	}
	if len(missing) == 0 {
		return okResult(CheckSnapshotCoverage, "所有已完成预订均有财务快照")
	}

	details := make([]interface{}, 0, len(missing))
	for _, b := range missing {
		details = append(details, map[string]interface{}{
			"booking_id":     b.ID,
			"booking_number": b.BookingNumber,
		})
	}
	return CheckResult{
		Name:    CheckSnapshotCoverage,
		Status:  models.HealthStatusError,
		Message: "存在已完成但缺少财务快照的预订",
		Details: details,
	}
}

// checkDuplicateSnapshots 同一预订不允许多条快照
func (s *HealthService) checkDuplicateSnapshots(ctx context.Context) CheckResult {
	dups, err := s.snapshotRepo.ListDuplicateBookingIDs(ctx, maxDetailItems)
	if err != nil {
		return errResult(CheckDuplicateSnapshots, err)
	}
	if len(dups) == 0 {
		return okResult(CheckDuplicateSnapshots, "无重复快照")
	}

	details := make([]interface{}, 0, len(dups))
	for _, id := range dups {
		details = append(details, map[string]interface{}{"booking_id": id})
	}
	return CheckResult{
		Name:    CheckDuplicateSnapshots,
		Status:  models.HealthStatusError,
		Message: "存在同一预订的多条财务快照",
		Details: details,
	}
}

// checkLedgerReferences 分录引用的预订必须存在
func (s *HealthService) checkLedgerReferences(ctx context.Context) CheckResult {
	dangling, err := s.ledgerRepo.ListDanglingBookingRefs(ctx, maxDetailItems)
	if err != nil {
		return errResult(CheckLedgerReferences, err)
	}
	if len(dangling) == 0 {
		return okResult(CheckLedgerReferences, "账本引用完整")
	}

	details := make([]interface{}, 0, len(dangling))
	for _, e := range dangling {
		details = append(details, map[string]interface{}{
			"entry_id":   e.ID,
			"entry_type": e.EntryType,
			"booking_id": e.BookingID,
		})
	}
	return CheckResult{
		Name:    CheckLedgerReferences,
		Status:  models.HealthStatusError,
		Message: "存在引用已不存在预订的账本分录",
		Details: details,
	}
}

// checkLedgerMath 分录金额必须为正（争议开启标记除外），贷方合计不小于借方合计，
// 且每个快照预订的收款流水合计须等于快照应收
func (s *HealthService) checkLedgerMath(ctx context.Context) CheckResult {
	bad, err := s.ledgerRepo.ListNonPositive(ctx, maxDetailItems)
	if err != nil {
		return errResult(CheckLedgerMath, err)
	}
	if len(bad) > 0 {
		details := make([]interface{}, 0, len(bad))
		for _, e := range bad {
			details = append(details, map[string]interface{}{
				"entry_id":   e.ID,
				"entry_type": e.EntryType,
				"amount":     e.Amount,
			})
		}
		return CheckResult{
			Name:    CheckLedgerMath,
			Status:  models.HealthStatusError,
			Message: "存在金额非法的账本分录",
			Details: details,
		}
	}

	credits, err := s.ledgerRepo.SumByDirection(ctx, models.DirectionCredit)
	if err != nil {
		return errResult(CheckLedgerMath, err)
	}
	debits, err := s.ledgerRepo.SumByDirection(ctx, models.DirectionDebit)
	if err != nil {
		return errResult(CheckLedgerMath, err)
	}
	if credits < debits {
		return CheckResult{
			Name:    CheckLedgerMath,
			Status:  models.HealthStatusError,
			Message: "账本借方合计超过贷方合计",
			Details: []interface{}{map[string]interface{}{
				"total_credits": credits,
				"total_debits":  debits,
			}},
		}
	}

	mismatches, err := s.ledgerRepo.ListSnapshotPaymentMismatches(ctx, maxDetailItems)
	if err != nil {
		return errResult(CheckLedgerMath, err)
	}
	if len(mismatches) > 0 {
		details := make([]interface{}, 0, len(mismatches))
		for _, m := range mismatches {
			details = append(details, map[string]interface{}{
				"booking_id":  m.BookingID,
				"guest_total": m.GuestTotal,
				"recorded":    m.Recorded,
			})
		}
		return CheckResult{
			Name:    CheckLedgerMath,
			Status:  models.HealthStatusError,
			Message: "存在收款流水合计与快照应收不一致的预订",
			Details: details,
		}
	}
	return okResult(CheckLedgerMath, "账本金额一致")
}

// checkPayoutBookingState 已放款的放款单对应预订必须已完成且已收款
func (s *HealthService) checkPayoutBookingState(ctx context.Context) CheckResult {
	released, err := s.payoutRepo.ListByDateRange(ctx, time.Time{}, time.Now().AddDate(1, 0, 0), string(domain.PayoutStatusReleased))
	if err != nil {
		return errResult(CheckPayoutBookingState, err)
	}

	var details []interface{}
	for _, p := range released {
		if p.BookingID == nil {
			continue
		}
		booking, err := s.bookingRepo.GetByID(ctx, *p.BookingID)
		if err != nil {
			continue
		}
		// 放款后发生的部分退款会从放款净额中扣减，属正常状态
		if booking.PaymentState == domain.BookingPaymentPartiallyRefunded {
			continue
		}
		if ok, reason := domain.CanReleasePayout(booking.Status, booking.PaymentState); !ok {
			details = append(details, map[string]interface{}{
				"payout_id":  p.ID,
				"payout_no":  p.PayoutNo,
				"booking_id": booking.ID,
				"reason":     reason,
			})
			if len(details) >= maxDetailItems {
				break
			}
		}
	}

	if len(details) > 0 {
		return CheckResult{
			Name:    CheckPayoutBookingState,
			Status:  models.HealthStatusError,
			Message: "存在放款后预订状态不满足放款条件的放款单",
			Details: details,
		}
	}
	return okResult(CheckPayoutBookingState, "放款单与预订状态一致")
}

// checkRefundPaymentState 已批准退款的累计金额不得超过原支付金额，
// 且退款只能挂在已完成（或因退款关闭）的支付单上
func (s *HealthService) checkRefundPaymentState(ctx context.Context) CheckResult {
	payments, err := s.paymentRepo.ListByDateRange(ctx, time.Time{}, time.Now().AddDate(1, 0, 0))
	if err != nil {
		return errResult(CheckRefundPaymentState, err)
	}

	var details []interface{}
	for _, p := range payments {
		refunded, err := s.refundRepo.SumByPayment(ctx, p.ID)
		if err != nil {
			return errResult(CheckRefundPaymentState, err)
		}
		if refunded > p.Amount {
			details = append(details, map[string]interface{}{
				"payment_id": p.ID,
				"payment_no": p.PaymentNo,
				"amount":     p.Amount,
				"refunded":   refunded,
			})
		} else if refunded > 0 &&
			p.Status != domain.PaymentStatusCompleted &&
			p.Status != domain.PaymentStatusRefunded {
			details = append(details, map[string]interface{}{
				"payment_id":     p.ID,
				"payment_no":     p.PaymentNo,
				"payment_status": string(p.Status),
				"refunded":       refunded,
			})
		}
		if len(details) >= maxDetailItems {
			break
		}
	}

	if len(details) > 0 {
		return CheckResult{
			Name:    CheckRefundPaymentState,
			Status:  models.HealthStatusError,
			Message: "存在退款金额或退款所挂支付状态异常的支付记录",
			Details: details,
		}
	}
	return okResult(CheckRefundPaymentState, "退款金额与支付一致")
}

// checkLedgerSnapshotPairing 有账本活动的预订完成后应有快照，缺失降级为警告
func (s *HealthService) checkLedgerSnapshotPairing(ctx context.Context) CheckResult {
	count, bookingIDs, err := s.ledgerRepo.CountBookingsWithoutSnapshot(ctx)
	if err != nil {
		return errResult(CheckLedgerSnapshotPairing, err)
	}
	if count == 0 {
		return okResult(CheckLedgerSnapshotPairing, "账本活动与快照匹配")
	}

	// 进行中的预订尚未完成，没有快照是正常的，只对已完成的告警
	var details []interface{}
	bookings, err := s.bookingRepo.ListByIDs(ctx, bookingIDs)
	if err != nil {
		return errResult(CheckLedgerSnapshotPairing, err)
	}
	for _, b := range bookings {
		if b.Status != domain.BookingStatusCompleted {
			continue
		}
		details = append(details, map[string]interface{}{
			"booking_id":     b.ID,
			"booking_number": b.BookingNumber,
		})
	}
	if len(details) == 0 {
		return okResult(CheckLedgerSnapshotPairing, "账本活动与快照匹配")
	}
	return CheckResult{
		Name:    CheckLedgerSnapshotPairing,
		Status:  models.HealthStatusWarning,
		Message: "存在有账本活动但缺少快照的已完成预订",
		Details: details,
	}
}

// checkOrphanPayouts 放款单引用的预订必须存在
func (s *HealthService) checkOrphanPayouts(ctx context.Context) CheckResult {
	orphans, err := s.payoutRepo.ListOrphans(ctx, maxDetailItems)
	if err != nil {
		return errResult(CheckOrphanPayouts, err)
	}
	if len(orphans) == 0 {
		return okResult(CheckOrphanPayouts, "无孤儿放款单")
	}

	details := make([]interface{}, 0, len(orphans))
	for _, p := range orphans {
		details = append(details, map[string]interface{}{
			"payout_id": p.ID,
			"payout_no": p.PayoutNo,
		})
	}
	return CheckResult{
		Name:    CheckOrphanPayouts,
		Status:  models.HealthStatusError,
		Message: "存在引用已不存在预订的放款单",
		Details: details,
	}
}

// LatestRun 最近一次巡检记录
func (s *HealthService) LatestRun(ctx context.Context) (*models.FinanceHealthRun, error) {
	run, err := s.healthRepo.Latest(ctx)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound.WithMessage("暂无巡检记录")
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return run, nil
}

// ListRuns 巡检历史
func (s *HealthService) ListRuns(ctx context.Context, page, pageSize int) ([]models.FinanceHealthRun, int64, error) {
	runs, total, err := s.healthRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return runs, total, nil
}
