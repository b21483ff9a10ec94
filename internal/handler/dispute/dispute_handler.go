// Package dispute 提供争议相关的 HTTP Handler
package dispute

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voloteam/volo-stay-backend/internal/common/handler"
	"github.com/voloteam/volo-stay-backend/internal/common/response"
	disputeService "github.com/voloteam/volo-stay-backend/internal/service/dispute"
)

// Handler 争议处理器
type Handler struct {
	disputeService *disputeService.DisputeService
}

// NewHandler 创建争议处理器
func NewHandler(disputeSvc *disputeService.DisputeService) *Handler {
	return &Handler{disputeService: disputeSvc}
}

// OpenDispute 开启争议
// @Summary 开启争议
// @Tags 争议
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body disputeService.OpenRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Dispute}
// @Router /api/v1/disputes [post]
func (h *Handler) OpenDispute(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req disputeService.OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.disputeService.Open(c.Request.Context(), userID, &req)
	handler.MustSucceed(c, err, result)
}

// GetDispute 查询争议
// @Summary 查询争议
// @Tags 争议
// @Produce json
// @Security Bearer
// @Param id path int true "争议ID"
// @Success 200 {object} response.Response{data=models.Dispute}
// @Router /api/v1/disputes/{id} [get]
func (h *Handler) GetDispute(c *gin.Context) {
	_, id, ok := handler.RequireUserAndParseID(c, "争议")
	if !ok {
		return
	}

	result, err := h.disputeService.GetDispute(c.Request.Context(), id)
	handler.MustSucceed(c, err, result)
}

// ListDisputes 分页查询争议
// @Summary 分页查询争议
// @Tags 争议
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/admin/disputes [get]
func (h *Handler) ListDisputes(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	pagination := handler.BindPagination(c)
	filters := map[string]interface{}{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if category := c.Query("category"); category != "" {
		filters["category"] = category
	}
	if bookingID := c.Query("booking_id"); bookingID != "" {
		if id, err := strconv.ParseInt(bookingID, 10, 64); err == nil {
			filters["booking_id"] = id
		}
	}

	list, total, err := h.disputeService.ListDisputes(c.Request.Context(), filters, pagination.Page, pagination.PageSize)
	handler.MustSucceedPage(c, err, list, total, pagination.Page, pagination.PageSize)
}

// StartReview 进入审理
// @Summary 进入审理
// @Tags 争议
// @Produce json
// @Security Bearer
// @Param id path int true "争议ID"
// @Success 200 {object} response.Response{data=models.Dispute}
// @Router /api/v1/admin/disputes/{id}/review [post]
func (h *Handler) StartReview(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "争议")
	if !ok {
		return
	}

	result, err := h.disputeService.StartReview(c.Request.Context(), id, adminID)
	handler.MustSucceed(c, err, result)
}

// Resolve 裁决争议
// @Summary 裁决争议
// @Tags 争议
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "争议ID"
// @Param request body disputeService.ResolveRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Dispute}
// @Router /api/v1/admin/disputes/{id}/resolve [post]
func (h *Handler) Resolve(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "争议")
	if !ok {
		return
	}

	var req disputeService.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.disputeService.Resolve(c.Request.Context(), id, adminID, &req)
	handler.MustSucceed(c, err, result)
}

type reverseRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reverse 撤销裁决
// @Summary 撤销裁决
// @Tags 争议
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "争议ID"
// @Success 200 {object} response.Response{data=models.Dispute}
// @Router /api/v1/admin/disputes/{id}/reverse [post]
func (h *Handler) Reverse(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "争议")
	if !ok {
		return
	}

	var req reverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.disputeService.Reverse(c.Request.Context(), id, adminID, req.Reason)
	handler.MustSucceed(c, err, result)
}
