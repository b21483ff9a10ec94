// Package payment 提供支付与退款相关的 HTTP Handler
package payment

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voloteam/volo-stay-backend/internal/common/handler"
	"github.com/voloteam/volo-stay-backend/internal/common/response"
	paymentService "github.com/voloteam/volo-stay-backend/internal/service/payment"
)

// Handler 支付处理器
type Handler struct {
	paymentService *paymentService.PaymentService
}

// NewHandler 创建支付处理器
func NewHandler(paymentSvc *paymentService.PaymentService) *Handler {
	return &Handler{paymentService: paymentSvc}
}

type createPaymentRequest struct {
	BookingID int64 `json:"booking_id" binding:"required"`
}

// CreatePayment 发起收款
// @Summary 发起收款
// @Tags 支付
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=models.Payment}
// @Router /api/v1/payments [post]
func (h *Handler) CreatePayment(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.paymentService.CreatePayment(c.Request.Context(), req.BookingID, userID)
	handler.MustSucceed(c, err, result)
}

// GetPayment 查询支付
// @Summary 查询支付
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param id path int true "支付ID"
// @Success 200 {object} response.Response{data=models.Payment}
// @Router /api/v1/payments/{id} [get]
func (h *Handler) GetPayment(c *gin.Context) {
	_, id, ok := handler.RequireUserAndParseID(c, "支付")
	if !ok {
		return
	}

	result, err := h.paymentService.GetPayment(c.Request.Context(), id)
	handler.MustSucceed(c, err, result)
}

// ListPayments 分页查询支付
// @Summary 分页查询支付
// @Tags 支付
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/admin/payments [get]
func (h *Handler) ListPayments(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	pagination := handler.BindPagination(c)
	filters := map[string]interface{}{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if gateway := c.Query("gateway"); gateway != "" {
		filters["gateway"] = gateway
	}
	if bookingID := c.Query("booking_id"); bookingID != "" {
		if id, err := strconv.ParseInt(bookingID, 10, 64); err == nil {
			filters["booking_id"] = id
		}
	}

	list, total, err := h.paymentService.ListPayments(c.Request.Context(), filters, pagination.Page, pagination.PageSize)
	handler.MustSucceedPage(c, err, list, total, pagination.Page, pagination.PageSize)
}

type markPaidRequest struct {
	GatewayTransactionID string `json:"gateway_transaction_id" binding:"required"`
}

// MarkPaid 确认收款到账
// @Summary 确认收款到账
// @Tags 支付
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "支付ID"
// @Success 200 {object} response.Response{data=models.Payment}
// @Router /api/v1/admin/payments/{id}/mark-paid [post]
func (h *Handler) MarkPaid(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "支付")
	if !ok {
		return
	}

	var req markPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.paymentService.MarkPaid(c.Request.Context(), id, adminID, req.GatewayTransactionID)
	handler.MustSucceed(c, err, result)
}

// Refund 发起退款
// @Summary 发起退款
// @Tags 支付
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "支付ID"
// @Param request body paymentService.RefundRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Refund}
// @Router /api/v1/admin/payments/{id}/refund [post]
func (h *Handler) Refund(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "支付")
	if !ok {
		return
	}

	var req paymentService.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.paymentService.Refund(c.Request.Context(), id, adminID, &req)
	handler.MustSucceed(c, err, result)
}

// ListRefunds 查询预订的退款记录
// @Summary 查询预订的退款记录
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param booking_id query int true "预订ID"
// @Success 200 {object} response.Response{data=[]models.Refund}
// @Router /api/v1/refunds [get]
func (h *Handler) ListRefunds(c *gin.Context) {
	if _, ok := handler.RequireUserID(c); !ok {
		return
	}

	bookingID, ok := handler.ParseRequiredQueryID(c, "booking_id", "预订")
	if !ok {
		return
	}

	result, err := h.paymentService.ListRefunds(c.Request.Context(), bookingID)
	handler.MustSucceed(c, err, result)
}
