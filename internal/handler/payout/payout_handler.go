// Package payout 提供放款相关的 HTTP Handler，全部为管理端接口
package payout

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voloteam/volo-stay-backend/internal/common/handler"
	"github.com/voloteam/volo-stay-backend/internal/common/response"
	payoutService "github.com/voloteam/volo-stay-backend/internal/service/payout"
)

// Handler 放款处理器
type Handler struct {
	payoutService *payoutService.PayoutService
}

// NewHandler 创建放款处理器
func NewHandler(payoutSvc *payoutService.PayoutService) *Handler {
	return &Handler{payoutService: payoutSvc}
}

// GetPayout 查询放款单
// @Summary 查询放款单
// @Tags 放款
// @Produce json
// @Security Bearer
// @Param id path int true "放款单ID"
// @Success 200 {object} response.Response{data=models.HostPayout}
// @Router /api/v1/admin/payouts/{id} [get]
func (h *Handler) GetPayout(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "放款单")
	if !ok {
		return
	}

	result, err := h.payoutService.GetPayout(c.Request.Context(), id)
	handler.MustSucceed(c, err, result)
}

// ListPayouts 分页查询放款单
// @Summary 分页查询放款单
// @Tags 放款
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/admin/payouts [get]
func (h *Handler) ListPayouts(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	pagination := handler.BindPagination(c)
	filters := map[string]interface{}{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if hostID := c.Query("host_id"); hostID != "" {
		if id, err := strconv.ParseInt(hostID, 10, 64); err == nil {
			filters["host_id"] = id
		}
	}

	list, total, err := h.payoutService.ListPayouts(c.Request.Context(), filters, pagination.Page, pagination.PageSize)
	handler.MustSucceedPage(c, err, list, total, pagination.Page, pagination.PageSize)
}

// MarkEligible 标记可放款
// @Summary 标记可放款
// @Tags 放款
// @Produce json
// @Security Bearer
// @Param id path int true "放款单ID"
// @Success 200 {object} response.Response{data=models.HostPayout}
// @Router /api/v1/admin/payouts/{id}/eligible [post]
func (h *Handler) MarkEligible(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "放款单")
	if !ok {
		return
	}

	result, err := h.payoutService.MarkEligible(c.Request.Context(), id, adminID)
	handler.MustSucceed(c, err, result)
}

// Release 放款
// @Summary 放款
// @Tags 放款
// @Produce json
// @Security Bearer
// @Param id path int true "放款单ID"
// @Success 200 {object} response.Response{data=models.HostPayout}
// @Router /api/v1/admin/payouts/{id}/release [post]
func (h *Handler) Release(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "放款单")
	if !ok {
		return
	}

	result, err := h.payoutService.Release(c.Request.Context(), id, adminID)
	handler.MustSucceed(c, err, result)
}

type reverseRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reverse 冲正放款
// @Summary 冲正放款
// @Tags 放款
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "放款单ID"
// @Success 200 {object} response.Response{data=models.HostPayout}
// @Router /api/v1/admin/payouts/{id}/reverse [post]
func (h *Handler) Reverse(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "放款单")
	if !ok {
		return
	}

	var req reverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.payoutService.Reverse(c.Request.Context(), id, adminID, req.Reason)
	handler.MustSucceed(c, err, result)
}
