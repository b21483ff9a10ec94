package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	return db
}

func setupAuditRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	auditLogger := NewAuditLogger(repository.NewAuditLogRepository(db))

	admin := router.Group("/api/v1/admin")
	admin.Use(func(c *gin.Context) {
		c.Set("user_id", int64(42))
		c.Next()
	})
	admin.Use(auditLogger.Middleware())
	admin.POST("/payouts/:id/release", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})
	admin.GET("/payouts/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})
	admin.POST("/disputes", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1001})
	})
	return router
}

func TestAuditLogger_RecordsWriteRequest(t *testing.T) {
	db := setupAuditTestDB(t)
	router := setupAuditRouter(db)

	body := bytes.NewBufferString(`{"reason":"manual release","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/payouts/7/release", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var log models.AuditLog
	require.NoError(t, db.Order("id DESC").First(&log).Error)
	assert.Equal(t, "post.release", log.Action)
	assert.Equal(t, "payout", log.ResourceType)
	require.NotNil(t, log.UserID)
	assert.Equal(t, int64(42), *log.UserID)
	assert.Equal(t, "manual release", log.NewValues["reason"])
	_, hasPassword := log.NewValues["password"]
	assert.False(t, hasPassword, "敏感字段不应入库")
}

func TestAuditLogger_SkipsReads(t *testing.T) {
	db := setupAuditTestDB(t)
	router := setupAuditRouter(db)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/payouts/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAuditLogger_SkipsFailedRequests(t *testing.T) {
	db := setupAuditTestDB(t)
	router := setupAuditRouter(db)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/disputes", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestResourceFromPath(t *testing.T) {
	assert.Equal(t, "payout", resourceFromPath("/api/v1/admin/payouts/:id/release"))
	assert.Equal(t, "dispute", resourceFromPath("/api/v1/admin/disputes"))
	assert.Equal(t, "booking", resourceFromPath("/api/v1/bookings/:id/cancel"))
}
