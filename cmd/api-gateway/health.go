// Package main 是应用程序入口
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "volo-stay-api"

// healthHandler 存活检查
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": time.Now().Unix(),
	})
}

// pingHandler Ping 检查
func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// readinessCheck 单项就绪检查
type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

// readyHandler 就绪检查，逐项探测依赖服务
func readyHandler(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	checks := []readinessCheck{
		{
			name: "database",
			check: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
		{
			name: "redis",
			check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	}

	return func(c *gin.Context) {
		results := make(map[string]interface{}, len(checks))
		allHealthy := true

		for _, rc := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			err := rc.check(ctx)
			cancel()
			if err != nil {
				results[rc.name] = "error: " + err.Error()
				allHealthy = false
				continue
			}
			results[rc.name] = "ok"
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		c.JSON(status, gin.H{
			"status":    statusText,
			"service":   serviceName,
			"timestamp": time.Now().Unix(),
			"checks":    results,
		})
	}
}
