// Package audit 提供审计日志查询的 HTTP Handler，仅管理端可用
package audit

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voloteam/volo-stay-backend/internal/common/handler"
	"github.com/voloteam/volo-stay-backend/internal/common/response"
	auditService "github.com/voloteam/volo-stay-backend/internal/service/audit"
)

// Handler 审计日志处理器
type Handler struct {
	auditService *auditService.AuditService
}

// NewHandler 创建审计日志处理器
func NewHandler(auditSvc *auditService.AuditService) *Handler {
	return &Handler{auditService: auditSvc}
}

// ListByResource 查询某资源的审计轨迹
// @Summary 查询某资源的审计轨迹
// @Tags 审计
// @Produce json
// @Security Bearer
// @Param resource_type query string true "资源类型"
// @Param resource_id query int true "资源ID"
// @Success 200 {object} response.Response{data=[]models.AuditLog}
// @Router /api/v1/admin/audit/resource [get]
func (h *Handler) ListByResource(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	resourceType := c.Query("resource_type")
	if resourceType == "" {
		response.BadRequest(c, "资源类型不能为空")
		return
	}
	resourceID, ok := handler.ParseRequiredQueryID(c, "resource_id", "资源")
	if !ok {
		return
	}

	result, err := h.auditService.ListByResource(c.Request.Context(), resourceType, resourceID)
	handler.MustSucceed(c, err, result)
}

// List 分页查询审计日志
// @Summary 分页查询审计日志
// @Tags 审计
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/admin/audit [get]
func (h *Handler) List(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	pagination := handler.BindPagination(c)
	filters := map[string]interface{}{}
	if action := c.Query("action"); action != "" {
		filters["action"] = action
	}
	if userID := c.Query("user_id"); userID != "" {
		if id, err := strconv.ParseInt(userID, 10, 64); err == nil {
			filters["user_id"] = id
		}
	}

	list, total, err := h.auditService.List(c.Request.Context(), filters, pagination.Page, pagination.PageSize)
	handler.MustSucceedPage(c, err, list, total, pagination.Page, pagination.PageSize)
}
