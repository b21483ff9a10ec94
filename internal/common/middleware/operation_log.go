// Package middleware 提供 HTTP 中间件
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/voloteam/volo-stay-backend/internal/common/logger"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
)

// AuditLogger 管理端写操作审计中间件
// 只记录成功的写请求，请求体截断后入库
type AuditLogger struct {
	repo *repository.AuditLogRepository
}

// NewAuditLogger 创建审计中间件
func NewAuditLogger(repo *repository.AuditLogRepository) *AuditLogger {
	return &AuditLogger{repo: repo}
}

// maxBodyBytes 入库请求体上限
const maxBodyBytes = 4096

// resourceFromPath 从路由路径推断资源类型
// /api/v1/admin/payouts/:id/release -> payout
func resourceFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if p == "admin" && i+1 < len(parts) {
			return strings.TrimSuffix(parts[i+1], "s")
		}
	}
	if len(parts) >= 3 {
		return strings.TrimSuffix(parts[2], "s")
	}
	return "unknown"
}

// actionFromRoute 方法加路径末段拼出动作名
func actionFromRoute(method, path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	last := ""
	for i := len(parts) - 1; i >= 0; i-- {
		if !strings.HasPrefix(parts[i], ":") {
			last = parts[i]
			break
		}
	}
	return strings.ToLower(method) + "." + last
}

// Middleware 返回 Gin 中间件
func (a *AuditLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != "POST" && method != "PUT" && method != "PATCH" && method != "DELETE" {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		c.Next()

		// 失败的请求不入审计，业务层自己记错误日志
		if c.Writer.Status() >= 400 {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		entry := &models.AuditLog{
			Action:       actionFromRoute(method, path),
			ResourceType: resourceFromPath(path),
		}

		if userID, exists := c.Get("user_id"); exists {
			if id, ok := userID.(int64); ok {
				entry.UserID = &id
			}
		}

		if len(body) > 0 {
			var payload map[string]interface{}
			if err := json.Unmarshal(body, &payload); err == nil {
				delete(payload, "password")
				entry.NewValues = models.JSON(payload)
			}
		}

		ip := c.ClientIP()
		ua := c.Request.UserAgent()
		if ip != "" {
			entry.IP = &ip
		}
		if ua != "" {
			entry.UserAgent = &ua
		}

		if err := a.repo.Create(c.Request.Context(), entry); err != nil {
			logger.Warn("审计日志写入失败",
				logger.String("action", entry.Action),
				logger.Err(err))
		}
	}
}
