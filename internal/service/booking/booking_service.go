// Package booking 提供预订生命周期服务
package booking

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/common/logger"
	"github.com/voloteam/volo-stay-backend/internal/common/metrics"
	"github.com/voloteam/volo-stay-backend/internal/common/tracing"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
	"github.com/voloteam/volo-stay-backend/internal/service/audit"
	"github.com/voloteam/volo-stay-backend/internal/service/pricing"
)

// BookingService 预订服务
type BookingService struct {
	db            *gorm.DB
	bookingRepo   *repository.BookingRepository
	listingRepo   *repository.ListingRepository
	calendarRepo  *repository.CalendarBlockRepository
	extensionRepo *repository.ExtensionRepository
	paymentRepo   *repository.PaymentRepository
	payoutRepo    *repository.PayoutRepository
	snapshotRepo  *repository.SnapshotRepository
	pricingSvc    *pricing.PricingService
	auditSvc      *audit.AuditService
	metrics       *metrics.Metrics
	minNights     int
	maxNights     int
}

// NewBookingService 创建预订服务
func NewBookingService(
	db *gorm.DB,
	bookingRepo *repository.BookingRepository,
	listingRepo *repository.ListingRepository,
	calendarRepo *repository.CalendarBlockRepository,
	extensionRepo *repository.ExtensionRepository,
	paymentRepo *repository.PaymentRepository,
	payoutRepo *repository.PayoutRepository,
	snapshotRepo *repository.SnapshotRepository,
	pricingSvc *pricing.PricingService,
	auditSvc *audit.AuditService,
	m *metrics.Metrics,
	minNights, maxNights int,
) *BookingService {
	return &BookingService{
		db:            db,
		bookingRepo:   bookingRepo,
		listingRepo:   listingRepo,
		calendarRepo:  calendarRepo,
		extensionRepo: extensionRepo,
		paymentRepo:   paymentRepo,
		payoutRepo:    payoutRepo,
		snapshotRepo:  snapshotRepo,
		pricingSvc:    pricingSvc,
		auditSvc:      auditSvc,
		metrics:       m,
		minNights:     minNights,
		maxNights:     maxNights,
	}
}

// GenerateBookingNumber 生成预订号，VOLO- 加 6 位大写十六进制
func GenerateBookingNumber() string {
	u := uuid.New()
	return "VOLO-" + strings.ToUpper(hex.EncodeToString(u[:3]))
}

// CreateBookingRequest 创建预订请求
type CreateBookingRequest struct {
	ListingID  int64     `json:"listing_id" binding:"required"`
	Source     string    `json:"source" binding:"required"`
	CheckIn    time.Time `json:"check_in" binding:"required"`
	CheckOut   time.Time `json:"check_out" binding:"required"`
	Adults     int       `json:"adults" binding:"required,min=1"`
	Children   int       `json:"children" binding:"min=0"`
	Infants    int       `json:"infants" binding:"min=0"`
	ServiceFee int64     `json:"service_fee" binding:"min=0"`
	Taxes      int64     `json:"taxes" binding:"min=0"`
}

// CreateBooking 创建预订
// 可用性检查与占用写入在同一事务内，对房源加咨询锁串行化
func (s *BookingService) CreateBooking(ctx context.Context, guestID int64, req *CreateBookingRequest) (*models.Booking, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "booking.create",
		tracing.WithUserID(guestID),
		tracing.WithOperation("booking_create"))
	defer span.End()

	listing, err := s.listingRepo.GetByID(ctx, req.ListingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrListingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if listing.Status != models.ListingStatusApproved {
		return nil, errors.ErrListingNotActive
	}
	if listing.HostID == guestID {
		return nil, errors.ErrSelfBooking
	}
	if req.Adults+req.Children > listing.MaxGuests {
		return nil, errors.ErrCapacityExceeded.WithMessagef("房源最多可住 %d 人", listing.MaxGuests)
	}

	nights := int(req.CheckOut.Sub(req.CheckIn).Hours() / 24)
	if nights < 1 {
		return nil, errors.ErrInvalidParams.WithMessage("退房日期必须晚于入住日期")
	}
	minNights, maxNights := s.nightBounds(listing)
	if nights < minNights || nights > maxNights {
		return nil, errors.ErrNightsOutOfRange.WithMessagef("入住晚数须在 %d 到 %d 之间", minNights, maxNights)
	}

	quote := s.pricingSvc.QuoteBooking(req.Source, nights, listing.NightlyRate, listing.CleaningFee, req.ServiceFee, req.Taxes)

	status := domain.BookingStatusPending
	var confirmedAt *time.Time
	if listing.InstantBooking {
		status = domain.BookingStatusConfirmed
		now := time.Now()
		confirmedAt = &now
	}

	booking := &models.Booking{
		BookingNumber: GenerateBookingNumber(),
		ListingID:     listing.ID,
		GuestID:       guestID,
		HostID:        listing.HostID,
		Source:        req.Source,
		CheckIn:       req.CheckIn,
		CheckOut:      req.CheckOut,
		Nights:        nights,
		Adults:        req.Adults,
		Children:      req.Children,
		Infants:       req.Infants,
		NightlyRate:   quote.NightlyRate,
		Subtotal:      quote.Subtotal,
		CleaningFee:   quote.CleaningFee,
		ServiceFee:    quote.ServiceFee,
		Taxes:         quote.Taxes,
		TotalPrice:    quote.TotalPrice,
		Currency:      quote.Currency,
		CommissionBps: quote.CommissionBps,
		Commission:    quote.Commission,
		HostPayout:    quote.HostPayout,
		Status:        status,
		PaymentState:  domain.BookingPaymentUnpaid,
		ConfirmedAt:   confirmedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.calendarRepo.LockListing(tx, listing.ID); err != nil {
			return err
		}

		overlap, err := s.calendarRepo.HasOverlapTx(tx, listing.ID, req.CheckIn, req.CheckOut, nil)
		if err != nil {
			return err
		}
		if overlap {
			return errors.ErrDatesUnavailable
		}

		if err := tx.Create(booking).Error; err != nil {
			return err
		}

		block := &models.CalendarBlock{
			ListingID: listing.ID,
			StartDate: req.CheckIn,
			EndDate:   req.CheckOut,
			BlockType: models.BlockTypeVoloBooking,
			BookingID: &booking.ID,
		}
		if err := tx.Create(block).Error; err != nil {
			return err
		}

		return s.auditSvc.RecordTx(tx, &audit.Entry{
			UserID:       &guestID,
			Action:       "booking.create",
			ResourceType: audit.ResourceBooking,
			ResourceID:   &booking.ID,
			NewValues: map[string]interface{}{
				"booking_number": booking.BookingNumber,
				"status":         string(booking.Status),
				"total_price":    booking.TotalPrice,
			},
		})
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	tracing.AddEvent(ctx, "booking.created", tracing.WithBookingID(booking.ID))
	s.metrics.RecordBooking(booking.Source, string(booking.Status))
	logger.Info("创建预订",
		logger.String("booking_number", booking.BookingNumber),
		logger.Int64("listing_id", listing.ID),
		logger.Int64("total_price", booking.TotalPrice))

	return booking, nil
}

func (s *BookingService) nightBounds(listing *models.Listing) (int, int) {
	minNights, maxNights := s.minNights, s.maxNights
	if listing.MinNights > 0 {
		minNights = listing.MinNights
	}
	if listing.MaxNights > 0 {
		maxNights = listing.MaxNights
	}
	return minNights, maxNights
}

// GetBooking 获取预订详情
func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByIDWithDetails(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return booking, nil
}

// ListBookings 分页查询预订
func (s *BookingService) ListBookings(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.Booking, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	bookings, total, err := s.bookingRepo.List(ctx, filters, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return bookings, total, nil
}

// ConfirmBooking 房东接单，pending 到 confirmed
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, operatorID int64) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if err := domain.AssertBookingTransition(booking.Status, domain.BookingStatusConfirmed); err != nil {
		return nil, err
	}

	from := booking.Status
	now := time.Now()
	booking.Status = domain.BookingStatusConfirmed
	booking.ConfirmedAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(booking).Error; err != nil {
			return err
		}
		return s.auditSvc.RecordStateChange(tx, &operatorID, audit.ResourceBooking, booking.ID, "booking.confirm", string(from), string(booking.Status))
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return booking, nil
}

// CancelBookingRequest 取消预订请求
type CancelBookingRequest struct {
	CancelledBy string `json:"cancelled_by" binding:"required,oneof=guest host admin"`
	Reason      string `json:"reason" binding:"required"`
}

// CancelResult 取消结果，含按政策应退金额
type CancelResult struct {
	Booking      *models.Booking `json:"booking"`
	RefundDue    int64           `json:"refund_due"`
	RefundPolicy string          `json:"refund_policy"`
}

// CancelBooking 取消预订并释放日历
// 已收款的预订按退订政策计算应退金额，退款本身走退款操作
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, operatorID int64, req *CancelBookingRequest) (*CancelResult, error) {
	booking, err := s.bookingRepo.GetByIDWithDetails(ctx, bookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if err := domain.AssertBookingTransition(booking.Status, domain.BookingStatusCancelled); err != nil {
		return nil, err
	}

	var policy string
	if booking.Listing != nil {
		policy = booking.Listing.CancellationPolicy
	}

	now := time.Now()
	var refundDue int64
	if booking.PaymentState == domain.BookingPaymentPaid {
		refundDue = s.pricingSvc.RefundAmount(policy, booking.TotalPrice, booking.CheckIn, now, req.CancelledBy)
	}

	from := booking.Status
	booking.Status = domain.BookingStatusCancelled
	booking.CancelledBy = &req.CancelledBy
	booking.CancelReason = &req.Reason
	booking.CancelledAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(booking).Error; err != nil {
			return err
		}
		if err := s.calendarRepo.DeleteByBookingTx(tx, booking.ID); err != nil {
			return err
		}
		return s.auditSvc.RecordTx(tx, &audit.Entry{
			UserID:       &operatorID,
			Action:       "booking.cancel",
			ResourceType: audit.ResourceBooking,
			ResourceID:   &booking.ID,
			OldValues:    map[string]interface{}{"status": string(from)},
			NewValues: map[string]interface{}{
				"status":       string(booking.Status),
				"cancelled_by": req.CancelledBy,
				"reason":       req.Reason,
				"refund_due":   refundDue,
			},
		})
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordBooking(booking.Source, string(booking.Status))
	logger.Info("取消预订",
		logger.String("booking_number", booking.BookingNumber),
		logger.String("cancelled_by", req.CancelledBy),
		logger.Int64("refund_due", refundDue))

	return &CancelResult{Booking: booking, RefundDue: refundDue, RefundPolicy: policy}, nil
}

// CheckIn 办理入住，要求已收款
func (s *BookingService) CheckIn(ctx context.Context, bookingID, operatorID int64) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if err := domain.AssertBookingTransition(booking.Status, domain.BookingStatusCheckedIn); err != nil {
		return nil, err
	}
	if booking.PaymentState != domain.BookingPaymentPaid {
		return nil, errors.ErrPaymentNotSettled.WithMessage("未收款的预订不能办理入住")
	}

	from := booking.Status
	now := time.Now()
	booking.Status = domain.BookingStatusCheckedIn
	booking.CheckedInAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(booking).Error; err != nil {
			return err
		}
		return s.auditSvc.RecordStateChange(tx, &operatorID, audit.ResourceBooking, booking.ID, "booking.check_in", string(from), string(booking.Status))
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return booking, nil
}

// CompleteBooking 完成预订
// 同一事务内写入财务快照（每预订恰好一次）并为已收款预订排期放款
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID, operatorID int64) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if err := domain.AssertBookingTransition(booking.Status, domain.BookingStatusCompleted); err != nil {
		return nil, err
	}

	from := booking.Status
	now := time.Now()
	booking.Status = domain.BookingStatusCompleted
	booking.CompletedAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(booking).Error; err != nil {
			return err
		}

		exists, err := s.snapshotRepo.ExistsForBookingTx(tx, booking.ID)
		if err != nil {
			return err
		}
		if exists {
			return errors.ErrSnapshotExists
		}
		if err := s.snapshotRepo.CreateTx(tx, buildSnapshot(booking, now)); err != nil {
			return err
		}

		if booking.PaymentState == domain.BookingPaymentPaid && !booking.IsExternalSource() {
			if _, err := s.payoutRepo.GetByBookingTx(tx, booking.ID); err == nil {
				// 已有放款单则不重复创建
			} else if err != gorm.ErrRecordNotFound {
				return err
			} else {
				payout := &models.HostPayout{
					PayoutNo:   fmt.Sprintf("PO-%s", strings.TrimPrefix(booking.BookingNumber, "VOLO-")),
					BookingID:  &booking.ID,
					HostID:     booking.HostID,
					Amount:     booking.HostPayout,
					Currency:   booking.Currency,
					Status:     domain.PayoutStatusPending,
					PayoutDate: booking.CheckOut,
				}
				if err := s.payoutRepo.CreateTx(tx, payout); err != nil {
					return err
				}
			}
		}

		return s.auditSvc.RecordStateChange(tx, &operatorID, audit.ResourceBooking, booking.ID, "booking.complete", string(from), string(booking.Status))
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordBooking(booking.Source, string(booking.Status))
	return booking, nil
}

func buildSnapshot(booking *models.Booking, at time.Time) *models.BookingFinancialSnapshot {
	return &models.BookingFinancialSnapshot{
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		GuestTotal:    booking.TotalPrice,
		Subtotal:      booking.Subtotal,
		CleaningFee:   booking.CleaningFee,
		ServiceFee:    booking.ServiceFee,
		Taxes:         booking.Taxes,
		CommissionBps: booking.CommissionBps,
		Commission:    booking.Commission,
		HostPayout:    booking.HostPayout,
		Currency:      booking.Currency,
		CheckIn:       booking.CheckIn,
		CheckOut:      booking.CheckOut,
		Nights:        booking.Nights,
		NightlyRate:   booking.NightlyRate,
		GuestID:       booking.GuestID,
		HostID:        booking.HostID,
		ListingID:     booking.ListingID,
		Source:        booking.Source,
		SnapshotAt:    at,
	}
}

// RequestExtensionRequest 延住申请请求
type RequestExtensionRequest struct {
	NewCheckOut time.Time `json:"new_check_out" binding:"required"`
}

// RequestExtension 发起延住申请
// 仅检查延长窗口 [当前退房日, 新退房日) 的可用性，闪订房源自动批准
func (s *BookingService) RequestExtension(ctx context.Context, bookingID, guestID int64, req *RequestExtensionRequest) (*models.BookingExtension, error) {
	booking, err := s.bookingRepo.GetByIDWithDetails(ctx, bookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if booking.Status != domain.BookingStatusConfirmed && booking.Status != domain.BookingStatusCheckedIn {
		return nil, errors.ErrExtensionInvalid.WithMessage("仅已确认或已入住的预订可申请延住")
	}
	if !req.NewCheckOut.After(booking.CheckOut) {
		return nil, errors.ErrExtensionInvalid.WithMessage("新退房日期必须晚于当前退房日期")
	}

	additionalNights := int(req.NewCheckOut.Sub(booking.CheckOut).Hours() / 24)
	quote := s.pricingSvc.QuoteExtension(booking, additionalNights)

	ext := &models.BookingExtension{
		BookingID:        booking.ID,
		OriginalCheckOut: booking.CheckOut,
		NewCheckOut:      req.NewCheckOut,
		AdditionalNights: additionalNights,
		AdditionalAmount: quote.TotalPrice,
		Commission:       quote.Commission,
		HostAdditional:   quote.HostPayout,
		Status:           models.ExtensionStatusPending,
	}

	autoApprove := booking.Listing != nil && booking.Listing.InstantBooking

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.calendarRepo.LockListing(tx, booking.ListingID); err != nil {
			return err
		}
		overlap, err := s.calendarRepo.HasOverlapTx(tx, booking.ListingID, booking.CheckOut, req.NewCheckOut, &booking.ID)
		if err != nil {
			return err
		}
		if overlap {
			return errors.ErrDatesUnavailable
		}
		if err := tx.Create(ext).Error; err != nil {
			return err
		}
		if autoApprove {
			return s.approveExtensionTx(tx, booking, ext, guestID)
		}
		return s.auditSvc.RecordTx(tx, &audit.Entry{
			UserID:       &guestID,
			Action:       "booking.extension_request",
			ResourceType: audit.ResourceBooking,
			ResourceID:   &booking.ID,
			NewValues: map[string]interface{}{
				"new_check_out":     req.NewCheckOut.Format("2006-01-02"),
				"additional_amount": ext.AdditionalAmount,
			},
		})
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	return ext, nil
}

// DecideExtension 房东审批延住申请
func (s *BookingService) DecideExtension(ctx context.Context, extensionID, operatorID int64, approve bool) (*models.BookingExtension, error) {
	ext, err := s.extensionRepo.GetByID(ctx, extensionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrExtensionNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if ext.Status != models.ExtensionStatusPending {
		return nil, errors.ErrExtensionInvalid.WithMessage("申请已处理")
	}

	booking, err := s.bookingRepo.GetByID(ctx, ext.BookingID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !approve {
			now := time.Now()
			ext.Status = models.ExtensionStatusRejected
			ext.DecidedAt = &now
			if err := tx.Save(ext).Error; err != nil {
				return err
			}
			return s.auditSvc.RecordTx(tx, &audit.Entry{
				UserID:       &operatorID,
				Action:       "booking.extension_reject",
				ResourceType: audit.ResourceBooking,
				ResourceID:   &booking.ID,
			})
		}

		// 批准前重查延长窗口，申请期间日历可能已被占用
		if err := s.calendarRepo.LockListing(tx, booking.ListingID); err != nil {
			return err
		}
		overlap, err := s.calendarRepo.HasOverlapTx(tx, booking.ListingID, ext.OriginalCheckOut, ext.NewCheckOut, &booking.ID)
		if err != nil {
			return err
		}
		if overlap {
			return errors.ErrDatesUnavailable
		}
		return s.approveExtensionTx(tx, booking, ext, operatorID)
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	return ext, nil
}

// approveExtensionTx 批准延住：改写预订账务并延长日历占用
func (s *BookingService) approveExtensionTx(tx *gorm.DB, booking *models.Booking, ext *models.BookingExtension, operatorID int64) error {
	now := time.Now()
	ext.Status = models.ExtensionStatusApproved
	ext.DecidedAt = &now
	if err := tx.Save(ext).Error; err != nil {
		return err
	}

	booking.CheckOut = ext.NewCheckOut
	booking.Nights += ext.AdditionalNights
	booking.Subtotal += ext.AdditionalAmount
	booking.TotalPrice += ext.AdditionalAmount
	booking.Commission += ext.Commission
	booking.HostPayout += ext.HostAdditional
	if err := tx.Save(booking).Error; err != nil {
		return err
	}

	if err := s.calendarRepo.ExtendByBookingTx(tx, booking.ID, ext.NewCheckOut); err != nil {
		return err
	}

	return s.auditSvc.RecordTx(tx, &audit.Entry{
		UserID:       &operatorID,
		Action:       "booking.extension_approve",
		ResourceType: audit.ResourceBooking,
		ResourceID:   &booking.ID,
		NewValues: map[string]interface{}{
			"new_check_out": ext.NewCheckOut.Format("2006-01-02"),
			"total_price":   booking.TotalPrice,
		},
	})
}
