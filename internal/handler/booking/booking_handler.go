// Package booking 提供预订相关的 HTTP Handler
package booking

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voloteam/volo-stay-backend/internal/common/handler"
	"github.com/voloteam/volo-stay-backend/internal/common/response"
	bookingService "github.com/voloteam/volo-stay-backend/internal/service/booking"
)

// Handler 预订处理器
type Handler struct {
	bookingService *bookingService.BookingService
}

// NewHandler 创建预订处理器
func NewHandler(bookingSvc *bookingService.BookingService) *Handler {
	return &Handler{bookingService: bookingSvc}
}

// CreateBooking 创建预订
// @Summary 创建预订
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body bookingService.CreateBookingRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Booking}
// @Router /api/v1/bookings [post]
func (h *Handler) CreateBooking(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req bookingService.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.bookingService.CreateBooking(c.Request.Context(), userID, &req)
	handler.MustSucceed(c, err, result)
}

// GetBooking 查询预订
// @Summary 查询预订
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Booking}
// @Router /api/v1/bookings/{id} [get]
func (h *Handler) GetBooking(c *gin.Context) {
	_, id, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	result, err := h.bookingService.GetBooking(c.Request.Context(), id)
	handler.MustSucceed(c, err, result)
}

// ListBookings 分页查询预订
// @Summary 分页查询预订
// @Tags 预订
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/bookings [get]
func (h *Handler) ListBookings(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	pagination := handler.BindPagination(c)
	filters := map[string]interface{}{"guest_id": userID}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if listingID := c.Query("listing_id"); listingID != "" {
		if id, err := strconv.ParseInt(listingID, 10, 64); err == nil {
			filters["listing_id"] = id
		}
	}

	list, total, err := h.bookingService.ListBookings(c.Request.Context(), filters, pagination.Page, pagination.PageSize)
	handler.MustSucceedPage(c, err, list, total, pagination.Page, pagination.PageSize)
}

// ConfirmBooking 确认预订
// @Summary 确认预订
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Booking}
// @Router /api/v1/bookings/{id}/confirm [post]
func (h *Handler) ConfirmBooking(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	result, err := h.bookingService.ConfirmBooking(c.Request.Context(), id, userID)
	handler.MustSucceed(c, err, result)
}

// CancelBooking 取消预订
// @Summary 取消预订
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Param request body bookingService.CancelBookingRequest true "请求参数"
// @Success 200 {object} response.Response{data=bookingService.CancelResult}
// @Router /api/v1/bookings/{id}/cancel [post]
func (h *Handler) CancelBooking(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	var req bookingService.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.bookingService.CancelBooking(c.Request.Context(), id, userID, &req)
	handler.MustSucceed(c, err, result)
}

// CheckIn 办理入住
// @Summary 办理入住
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Booking}
// @Router /api/v1/bookings/{id}/check-in [post]
func (h *Handler) CheckIn(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	result, err := h.bookingService.CheckIn(c.Request.Context(), id, userID)
	handler.MustSucceed(c, err, result)
}

// CompleteBooking 完成预订
// @Summary 完成预订
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Booking}
// @Router /api/v1/bookings/{id}/complete [post]
func (h *Handler) CompleteBooking(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	result, err := h.bookingService.CompleteBooking(c.Request.Context(), id, userID)
	handler.MustSucceed(c, err, result)
}

// RequestExtension 申请延住
// @Summary 申请延住
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Param request body bookingService.RequestExtensionRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.BookingExtension}
// @Router /api/v1/bookings/{id}/extensions [post]
func (h *Handler) RequestExtension(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	var req bookingService.RequestExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.bookingService.RequestExtension(c.Request.Context(), id, userID, &req)
	handler.MustSucceed(c, err, result)
}

type decideExtensionRequest struct {
	Approve bool `json:"approve"`
}

// DecideExtension 审批延住申请
// @Summary 审批延住申请
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "延住申请ID"
// @Success 200 {object} response.Response{data=models.BookingExtension}
// @Router /api/v1/extensions/{id}/decide [post]
func (h *Handler) DecideExtension(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "延住申请")
	if !ok {
		return
	}

	var req decideExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.bookingService.DecideExtension(c.Request.Context(), id, userID, req.Approve)
	handler.MustSucceed(c, err, result)
}
