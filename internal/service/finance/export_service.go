// Package finance 提供财务管理服务
package finance

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/common/utils"
	"github.com/voloteam/volo-stay-backend/internal/repository"
)

// ExportService 报表导出服务
type ExportService struct {
	ledgerRepo   *repository.LedgerRepository
	snapshotRepo *repository.SnapshotRepository
	payoutRepo   *repository.PayoutRepository
	reportingSvc *ReportingService
}

// NewExportService 创建报表导出服务
func NewExportService(
	ledgerRepo *repository.LedgerRepository,
	snapshotRepo *repository.SnapshotRepository,
	payoutRepo *repository.PayoutRepository,
	reportingSvc *ReportingService,
) *ExportService {
	return &ExportService{
		ledgerRepo:   ledgerRepo,
		snapshotRepo: snapshotRepo,
		payoutRepo:   payoutRepo,
		reportingSvc: reportingSvc,
	}
}

// newCSVBuffer 带 BOM 的缓冲区，Excel 打开中文表头不乱码
func newCSVBuffer() (*bytes.Buffer, *csv.Writer) {
	buf := new(bytes.Buffer)
	buf.Write([]byte{0xEF, 0xBB, 0xBF})
	return buf, csv.NewWriter(buf)
}

func formatRef(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}

// ExportLedger 导出窗口内账本分录为 CSV
func (s *ExportService) ExportLedger(ctx context.Context, from, to time.Time) ([]byte, string, error) {
	entries, err := s.ledgerRepo.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	buf, writer := newCSVBuffer()

	headers := []string{
		"分录ID", "类型", "方向", "金额", "币种", "预订ID", "支付ID", "退款ID",
		"打款ID", "争议ID", "对手方", "描述", "生效日期", "创建时间",
	}
	if err := writer.Write(headers); err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	for _, e := range entries {
		row := []string{
			fmt.Sprintf("%d", e.ID),
			e.EntryType,
			e.Direction,
			utils.FormatMoney(e.Amount),
			e.Currency,
			formatRef(e.BookingID),
			formatRef(e.PaymentID),
			formatRef(e.RefundID),
			formatRef(e.PayoutID),
			formatRef(e.DisputeID),
			e.CounterpartyType,
			e.Description,
			e.EffectiveDate.Format("2006-01-02"),
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(row); err != nil {
			return nil, "", errors.ErrExportFailed.WithError(err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	filename := fmt.Sprintf("ledger_%s_%s.csv", from.Format("20060102"), to.Format("20060102"))
	return buf.Bytes(), filename, nil
}

// ExportSnapshots 导出窗口内财务快照为 CSV
func (s *ExportService) ExportSnapshots(ctx context.Context, from, to time.Time) ([]byte, string, error) {
	snapshots, err := s.snapshotRepo.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	buf, writer := newCSVBuffer()

	headers := []string{
		"预订编号", "入住", "退房", "晚数", "房费小计", "清洁费", "服务费", "税费",
		"订单总额", "佣金率(bps)", "平台佣金", "房东应得", "渠道", "快照时间",
	}
	if err := writer.Write(headers); err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	for _, snap := range snapshots {
		row := []string{
			snap.BookingNumber,
			snap.CheckIn.Format("2006-01-02"),
			snap.CheckOut.Format("2006-01-02"),
			fmt.Sprintf("%d", snap.Nights),
			utils.FormatMoney(snap.Subtotal),
			utils.FormatMoney(snap.CleaningFee),
			utils.FormatMoney(snap.ServiceFee),
			utils.FormatMoney(snap.Taxes),
			utils.FormatMoney(snap.GuestTotal),
			fmt.Sprintf("%d", snap.CommissionBps),
			utils.FormatMoney(snap.Commission),
			utils.FormatMoney(snap.HostPayout),
			snap.Source,
			snap.SnapshotAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(row); err != nil {
			return nil, "", errors.ErrExportFailed.WithError(err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	filename := fmt.Sprintf("snapshots_%s_%s.csv", from.Format("20060102"), to.Format("20060102"))
	return buf.Bytes(), filename, nil
}

// ExportPayouts 导出窗口内放款单为 CSV，status 为空导出全部
func (s *ExportService) ExportPayouts(ctx context.Context, from, to time.Time, status string) ([]byte, string, error) {
	payouts, err := s.payoutRepo.ListByDateRange(ctx, from, to, status)
	if err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	buf, writer := newCSVBuffer()

	headers := []string{
		"放款单号", "房东ID", "预订ID", "金额", "币种", "状态", "计划放款日", "实际放款时间", "创建时间",
	}
	if err := writer.Write(headers); err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	for _, p := range payouts {
		processedAt := ""
		if p.ProcessedAt != nil {
			processedAt = p.ProcessedAt.Format("2006-01-02 15:04:05")
		}
		row := []string{
			p.PayoutNo,
			fmt.Sprintf("%d", p.HostID),
			formatRef(p.BookingID),
			utils.FormatMoney(p.Amount),
			p.Currency,
			string(p.Status),
			p.PayoutDate.Format("2006-01-02"),
			processedAt,
			p.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(row); err != nil {
			return nil, "", errors.ErrExportFailed.WithError(err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	filename := fmt.Sprintf("payouts_%s_%s.csv", from.Format("20060102"), to.Format("20060102"))
	return buf.Bytes(), filename, nil
}

// ExportHostEarnings 导出房东收益明细为 CSV，末行附合计
func (s *ExportService) ExportHostEarnings(ctx context.Context, hostID int64, from, to time.Time) ([]byte, string, error) {
	statement, items, err := s.reportingSvc.HostEarnings(ctx, hostID, from, to)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, "", appErr
		}
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	buf, writer := newCSVBuffer()

	headers := []string{
		"预订编号", "入住", "退房", "晚数", "订单总额", "佣金率(bps)", "平台佣金", "房东应得", "已退款",
	}
	if err := writer.Write(headers); err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	for _, item := range items {
		row := []string{
			item.BookingNumber,
			item.CheckIn.Format("2006-01-02"),
			item.CheckOut.Format("2006-01-02"),
			fmt.Sprintf("%d", item.Nights),
			utils.FormatMoney(item.GuestTotal),
			fmt.Sprintf("%d", item.CommissionBps),
			utils.FormatMoney(item.Commission),
			utils.FormatMoney(item.HostPayout),
			utils.FormatMoney(item.RefundAmount),
		}
		if err := writer.Write(row); err != nil {
			return nil, "", errors.ErrExportFailed.WithError(err)
		}
	}

	totals := []string{
		"合计",
		"", "",
		fmt.Sprintf("%d", statement.TotalNights),
		utils.FormatMoney(statement.GrossEarnings),
		"",
		utils.FormatMoney(statement.CommissionPaid),
		utils.FormatMoney(statement.NetEarnings),
		utils.FormatMoney(statement.RefundsDeducted),
	}
	if err := writer.Write(totals); err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", errors.ErrExportFailed.WithError(err)
	}

	filename := fmt.Sprintf("host_%d_earnings_%s_%s.csv", hostID, from.Format("20060102"), to.Format("20060102"))
	return buf.Bytes(), filename, nil
}
