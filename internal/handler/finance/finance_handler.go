// Package finance 提供财务报表与巡检相关的 HTTP Handler，全部为管理端接口
package finance

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voloteam/volo-stay-backend/internal/common/handler"
	"github.com/voloteam/volo-stay-backend/internal/common/response"
	"github.com/voloteam/volo-stay-backend/internal/models"
	financeService "github.com/voloteam/volo-stay-backend/internal/service/finance"
)

// Handler 财务处理器
type Handler struct {
	settlementService *financeService.SettlementService
	reportingService  *financeService.ReportingService
	exportService     *financeService.ExportService
	healthService     *financeService.HealthService
}

// NewHandler 创建财务处理器
func NewHandler(
	settlementSvc *financeService.SettlementService,
	reportingSvc *financeService.ReportingService,
	exportSvc *financeService.ExportService,
	healthSvc *financeService.HealthService,
) *Handler {
	return &Handler{
		settlementService: settlementSvc,
		reportingService:  reportingSvc,
		exportService:     exportSvc,
		healthService:     healthSvc,
	}
}

// GetBookingLedger 查询预订账本流水
// @Summary 查询预订账本流水
// @Tags 财务
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=[]models.SettlementLedgerEntry}
// @Router /api/v1/admin/finance/bookings/{id}/ledger [get]
func (h *Handler) GetBookingLedger(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "预订")
	if !ok {
		return
	}

	result, err := h.settlementService.GetBookingLedger(c.Request.Context(), id)
	handler.MustSucceed(c, err, result)
}

// DailySummary 日结算汇总
// @Summary 日结算汇总
// @Tags 财务
// @Produce json
// @Security Bearer
// @Param date query string true "日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=models.DailySettlementSummary}
// @Router /api/v1/admin/finance/reports/daily [get]
func (h *Handler) DailySummary(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	date, err := handler.ParseDate(c.DefaultQuery("date", time.Now().Format("2006-01-02")))
	if err != nil {
		response.BadRequest(c, "无效的日期格式")
		return
	}

	result, err := h.reportingService.DailySummary(c.Request.Context(), date)
	handler.MustSucceed(c, err, result)
}

// MonthlySummary 月结算汇总
// @Summary 月结算汇总
// @Tags 财务
// @Produce json
// @Security Bearer
// @Param year query int true "年份"
// @Param month query int true "月份"
// @Success 200 {object} response.Response{data=models.MonthlySettlementSummary}
// @Router /api/v1/admin/finance/reports/monthly [get]
func (h *Handler) MonthlySummary(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year < 2000 || year > 2100 {
		response.BadRequest(c, "无效的年份")
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		response.BadRequest(c, "无效的月份")
		return
	}

	result, err := h.reportingService.MonthlySummary(c.Request.Context(), year, month)
	handler.MustSucceed(c, err, result)
}

// PlatformRevenue 平台佣金收入报表
// @Summary 平台佣金收入报表
// @Tags 财务
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=models.PlatformRevenueReport}
// @Router /api/v1/admin/finance/reports/revenue [get]
func (h *Handler) PlatformRevenue(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	from, to, ok := handler.ParseRequiredQueryDateRange(c)
	if !ok {
		return
	}

	result, err := h.reportingService.PlatformRevenue(c.Request.Context(), from, to)
	handler.MustSucceed(c, err, result)
}

// HostEarnings 房东收益报表
// @Summary 房东收益报表
// @Tags 财务
// @Produce json
// @Security Bearer
// @Param id path int true "房东ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/finance/hosts/{id}/earnings [get]
func (h *Handler) HostEarnings(c *gin.Context) {
	_, hostID, ok := handler.RequireAdminAndParseID(c, "房东")
	if !ok {
		return
	}

	from, to, ok := handler.ParseRequiredQueryDateRange(c)
	if !ok {
		return
	}

	statement, items, err := h.reportingService.HostEarnings(c.Request.Context(), hostID, from, to)
	if handler.HandleError(c, err) {
		return
	}
	response.Success(c, gin.H{
		"statement": statement,
		"items":     items,
	})
}

type refreshPeriodRequest struct {
	PeriodType string `json:"period_type" binding:"required,oneof=daily weekly monthly"`
	Date       string `json:"date" binding:"required"`
}

// RefreshPeriod 重算对账周期汇总
// @Summary 重算对账周期汇总
// @Tags 财务
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=models.ReconciliationPeriod}
// @Router /api/v1/admin/finance/periods/refresh [post]
func (h *Handler) RefreshPeriod(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	var req refreshPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	at, err := handler.ParseDate(req.Date)
	if err != nil {
		response.BadRequest(c, "无效的日期格式")
		return
	}

	result, err := h.settlementService.RefreshPeriodTotals(c.Request.Context(), req.PeriodType, at)
	handler.MustSucceed(c, err, result)
}

// exportCSV 统一的 CSV 下载响应
func exportCSV(c *gin.Context, data []byte, filename string, err error) {
	if handler.HandleError(c, err) {
		return
	}
	response.CSVAttachment(c, filename, data)
}

// ExportLedger 导出账本流水
// @Summary 导出账本流水
// @Tags 财务
// @Produce text/csv
// @Security Bearer
// @Router /api/v1/admin/finance/export/ledger [get]
func (h *Handler) ExportLedger(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	from, to, ok := handler.ParseRequiredQueryDateRange(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportLedger(c.Request.Context(), from, to)
	exportCSV(c, data, filename, err)
}

// ExportSnapshots 导出财务快照
// @Summary 导出财务快照
// @Tags 财务
// @Produce text/csv
// @Security Bearer
// @Router /api/v1/admin/finance/export/snapshots [get]
func (h *Handler) ExportSnapshots(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	from, to, ok := handler.ParseRequiredQueryDateRange(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportSnapshots(c.Request.Context(), from, to)
	exportCSV(c, data, filename, err)
}

// ExportPayouts 导出放款单
// @Summary 导出放款单
// @Tags 财务
// @Produce text/csv
// @Security Bearer
// @Router /api/v1/admin/finance/export/payouts [get]
func (h *Handler) ExportPayouts(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	from, to, ok := handler.ParseRequiredQueryDateRange(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportPayouts(c.Request.Context(), from, to, c.Query("status"))
	exportCSV(c, data, filename, err)
}

// ExportHostEarnings 导出房东收益明细
// @Summary 导出房东收益明细
// @Tags 财务
// @Produce text/csv
// @Security Bearer
// @Param id path int true "房东ID"
// @Router /api/v1/admin/finance/hosts/{id}/earnings/export [get]
func (h *Handler) ExportHostEarnings(c *gin.Context) {
	_, hostID, ok := handler.RequireAdminAndParseID(c, "房东")
	if !ok {
		return
	}

	from, to, ok := handler.ParseRequiredQueryDateRange(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportHostEarnings(c.Request.Context(), hostID, from, to)
	exportCSV(c, data, filename, err)
}

// RunHealthCheck 手动触发财务巡检
// @Summary 手动触发财务巡检
// @Tags 财务
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=financeService.HealthReport}
// @Router /api/v1/admin/finance/health/run [post]
func (h *Handler) RunHealthCheck(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	result, err := h.healthService.Run(c.Request.Context(), models.HealthTriggerManual)
	handler.MustSucceed(c, err, result)
}

// LatestHealthRun 最近一次巡检结果
// @Summary 最近一次巡检结果
// @Tags 财务
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=models.FinanceHealthRun}
// @Router /api/v1/admin/finance/health/latest [get]
func (h *Handler) LatestHealthRun(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	result, err := h.healthService.LatestRun(c.Request.Context())
	handler.MustSucceed(c, err, result)
}

// ListHealthRuns 巡检历史
// @Summary 巡检历史
// @Tags 财务
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/admin/finance/health/runs [get]
func (h *Handler) ListHealthRuns(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	pagination := handler.BindPagination(c)
	list, total, err := h.healthService.ListRuns(c.Request.Context(), pagination.Page, pagination.PageSize)
	handler.MustSucceedPage(c, err, list, total, pagination.Page, pagination.PageSize)
}
