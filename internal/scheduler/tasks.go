// Package scheduler 提供定时任务
package scheduler

import (
	"context"
	"time"

	"github.com/voloteam/volo-stay-backend/internal/common/logger"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
	bookingService "github.com/voloteam/volo-stay-backend/internal/service/booking"
	financeService "github.com/voloteam/volo-stay-backend/internal/service/finance"
	payoutService "github.com/voloteam/volo-stay-backend/internal/service/payout"
)

// systemOperatorID 定时任务落库时使用的操作者ID，0 表示系统
const systemOperatorID = 0

// TaskHandler 任务处理器
type TaskHandler struct {
	bookingRepo       *repository.BookingRepository
	bookingService    *bookingService.BookingService
	payoutService     *payoutService.PayoutService
	settlementService *financeService.SettlementService
	healthService     *financeService.HealthService
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(
	bookingRepo *repository.BookingRepository,
	bookingSvc *bookingService.BookingService,
	payoutSvc *payoutService.PayoutService,
	settlementSvc *financeService.SettlementService,
	healthSvc *financeService.HealthService,
) *TaskHandler {
	return &TaskHandler{
		bookingRepo:       bookingRepo,
		bookingService:    bookingSvc,
		payoutService:     payoutSvc,
		settlementService: settlementSvc,
		healthService:     healthSvc,
	}
}

// CompleteStaleCheckouts 退房日已过仍在住的预订自动完成
func (h *TaskHandler) CompleteStaleCheckouts(ctx context.Context) error {
	stale, err := h.bookingRepo.ListStaleCheckouts(ctx, time.Now(), 100)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	completed := 0
	for _, booking := range stale {
		if _, err := h.bookingService.CompleteBooking(ctx, booking.ID, systemOperatorID); err != nil {
			logger.Warn("自动完成预订失败",
				logger.BookingID(booking.ID),
				logger.Err(err))
			continue
		}
		completed++
	}

	logger.Info("过期退房扫描",
		logger.Int("found", len(stale)),
		logger.Int("completed", completed))
	return nil
}

// SweepDuePayouts 到期待放款单标记为可放款
func (h *TaskHandler) SweepDuePayouts(ctx context.Context) error {
	_, err := h.payoutService.SweepDueEligible(ctx, time.Now(), 200)
	return err
}

// RefreshReconciliationPeriods 重算当期对账汇总
func (h *TaskHandler) RefreshReconciliationPeriods(ctx context.Context) error {
	now := time.Now()
	for _, periodType := range []string{models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly} {
		if _, err := h.settlementService.RefreshPeriodTotals(ctx, periodType, now); err != nil {
			return err
		}
	}
	return nil
}

// RunFinanceHealth 例行财务巡检
func (h *TaskHandler) RunFinanceHealth(ctx context.Context) error {
	_, err := h.healthService.Run(ctx, models.HealthTriggerScheduled)
	return err
}

// Register 把所有任务挂到调度器上
func (h *TaskHandler) Register(s *Scheduler) {
	s.AddTask("complete_stale_checkouts", 1*time.Hour, h.CompleteStaleCheckouts)
	s.AddTask("sweep_due_payouts", 30*time.Minute, h.SweepDuePayouts)
	s.AddTask("refresh_reconciliation_periods", 15*time.Minute, h.RefreshReconciliationPeriods)
	s.AddTask("finance_health_run", 6*time.Hour, h.RunFinanceHealth)
}
