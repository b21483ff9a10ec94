// Package main 是应用程序入口
package main

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/config"
	"github.com/voloteam/volo-stay-backend/internal/common/idempotency"
	"github.com/voloteam/volo-stay-backend/internal/common/jwt"
	"github.com/voloteam/volo-stay-backend/internal/common/metrics"
	commonMiddleware "github.com/voloteam/volo-stay-backend/internal/common/middleware"
	"github.com/voloteam/volo-stay-backend/internal/common/response"
	auditHandler "github.com/voloteam/volo-stay-backend/internal/handler/audit"
	authHandler "github.com/voloteam/volo-stay-backend/internal/handler/auth"
	bookingHandler "github.com/voloteam/volo-stay-backend/internal/handler/booking"
	disputeHandler "github.com/voloteam/volo-stay-backend/internal/handler/dispute"
	financeHandler "github.com/voloteam/volo-stay-backend/internal/handler/finance"
	paymentHandler "github.com/voloteam/volo-stay-backend/internal/handler/payment"
	payoutHandler "github.com/voloteam/volo-stay-backend/internal/handler/payout"
	"github.com/voloteam/volo-stay-backend/internal/middleware"
	"github.com/voloteam/volo-stay-backend/internal/repository"
	"github.com/voloteam/volo-stay-backend/internal/scheduler"
	auditService "github.com/voloteam/volo-stay-backend/internal/service/audit"
	authService "github.com/voloteam/volo-stay-backend/internal/service/auth"
	bookingService "github.com/voloteam/volo-stay-backend/internal/service/booking"
	disputeService "github.com/voloteam/volo-stay-backend/internal/service/dispute"
	financeService "github.com/voloteam/volo-stay-backend/internal/service/finance"
	paymentService "github.com/voloteam/volo-stay-backend/internal/service/payment"
	payoutService "github.com/voloteam/volo-stay-backend/internal/service/payout"
	pricingService "github.com/voloteam/volo-stay-backend/internal/service/pricing"
	"github.com/voloteam/volo-stay-backend/pkg/gateway"
)

// application 组装好的应用依赖，调度器和巡检服务在 main 里还要用
type application struct {
	taskHandler   *scheduler.TaskHandler
	healthService *financeService.HealthService
}

// setupRouter 设置路由并组装依赖
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
) *application {
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:            cfg.JWT.Secret,
		AccessExpireTime:  cfg.JWT.AccessTokenDuration(),
		RefreshExpireTime: cfg.JWT.RefreshTokenDuration(),
		Issuer:            cfg.JWT.Issuer,
	})

	m := metrics.Init(cfg.Server.Name)

	// 仓储
	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	calendarRepo := repository.NewCalendarBlockRepository(db)
	extensionRepo := repository.NewExtensionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	disputeRepo := repository.NewDisputeRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	healthRepo := repository.NewHealthRunRepository(db)
	periodRepo := repository.NewPeriodRepository(db)

	// 外部网关客户端
	gatewayClient := gateway.NewClient(&gateway.Config{
		Name:      cfg.Gateway.Name,
		BaseURL:   cfg.Gateway.BaseURL,
		APIKey:    cfg.Gateway.APIKey,
		Timeout:   cfg.Gateway.Timeout,
		IsSandbox: cfg.Gateway.IsSandbox,
	})

	// 幂等保护
	guard := idempotency.NewGuard(redisClient, cfg.Finance.IdempotencyTTLDuration())

	// 服务
	auditSvc := auditService.NewAuditService(auditRepo)
	pricingSvc := pricingService.NewPricingService(&cfg.Finance)
	settlementSvc := financeService.NewSettlementService(db, ledgerRepo, periodRepo, cfg.Finance.Currency)
	authSvc := authService.NewAuthService(db, userRepo, jwtManager)
	bookingSvc := bookingService.NewBookingService(
		db, bookingRepo, listingRepo, calendarRepo, extensionRepo,
		paymentRepo, payoutRepo, snapshotRepo, pricingSvc, auditSvc, m,
		cfg.Finance.MinNights, cfg.Finance.MaxNights,
	)
	paymentSvc := paymentService.NewPaymentService(
		db, paymentRepo, refundRepo, bookingRepo, payoutRepo,
		settlementSvc, auditSvc, guard, gatewayClient, m,
	)
	payoutSvc := payoutService.NewPayoutService(
		db, payoutRepo, bookingRepo, paymentRepo, settlementSvc, auditSvc, guard, m,
	)
	disputeSvc := disputeService.NewDisputeService(
		db, disputeRepo, bookingRepo, payoutRepo, settlementSvc, auditSvc, m,
	)
	reportingSvc := financeService.NewReportingService(
		ledgerRepo, snapshotRepo, payoutRepo, refundRepo, userRepo, cfg.Finance.Currency,
	)
	exportSvc := financeService.NewExportService(ledgerRepo, snapshotRepo, payoutRepo, reportingSvc)
	healthSvc := financeService.NewHealthService(
		bookingRepo, snapshotRepo, ledgerRepo, payoutRepo, paymentRepo, refundRepo, healthRepo, m,
	)

	// 处理器
	authH := authHandler.NewHandler(authSvc)
	bookingH := bookingHandler.NewHandler(bookingSvc)
	paymentH := paymentHandler.NewHandler(paymentSvc)
	payoutH := payoutHandler.NewHandler(payoutSvc)
	disputeH := disputeHandler.NewHandler(disputeSvc)
	financeH := financeHandler.NewHandler(settlementSvc, reportingSvc, exportSvc, healthSvc)
	auditH := auditHandler.NewHandler(auditSvc)

	// 全局中间件
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.RequestSizeLimiter(1 << 20))
	r.Use(middleware.CORS(nil))
	r.Use(middleware.AccessLog(log))
	r.Use(m.Middleware())
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "接口不存在")
	})

	// 健康检查与指标
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metrics.Handler())
	}

	v1 := r.Group("/api/v1")
	{
		// 公开接口
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authH.Register)
			auth.POST("/login", authH.Login)
			auth.POST("/refresh", authH.Refresh)
		}

		// 登录用户接口
		user := v1.Group("")
		user.Use(middleware.UserAuth(jwtManager))
		{
			user.GET("/auth/profile", authH.Profile)

			bookings := user.Group("/bookings")
			bookings.POST("", middleware.BookingRateLimit(redisClient, 10), bookingH.CreateBooking)
			bookings.GET("", bookingH.ListBookings)
			bookings.GET("/:id", bookingH.GetBooking)
			bookings.POST("/:id/confirm", bookingH.ConfirmBooking)
			bookings.POST("/:id/cancel", bookingH.CancelBooking)
			bookings.POST("/:id/check-in", bookingH.CheckIn)
			bookings.POST("/:id/complete", bookingH.CompleteBooking)
			bookings.POST("/:id/extensions", bookingH.RequestExtension)

			user.POST("/extensions/:id/decide", bookingH.DecideExtension)

			user.POST("/payments", paymentH.CreatePayment)
			user.GET("/payments/:id", paymentH.GetPayment)
			user.GET("/refunds", paymentH.ListRefunds)

			user.POST("/disputes", disputeH.OpenDispute)
			user.GET("/disputes/:id", disputeH.GetDispute)
		}

		// 管理端接口
		auditLogger := commonMiddleware.NewAuditLogger(auditRepo)
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(jwtManager), middleware.RequireAdmin(), auditLogger.Middleware())
		{
			admin.GET("/payments", paymentH.ListPayments)
			admin.POST("/payments/:id/mark-paid", paymentH.MarkPaid)
			admin.POST("/payments/:id/refund", paymentH.Refund)

			admin.GET("/payouts", payoutH.ListPayouts)
			admin.GET("/payouts/:id", payoutH.GetPayout)
			admin.POST("/payouts/:id/eligible", payoutH.MarkEligible)
			admin.POST("/payouts/:id/release", payoutH.Release)
			admin.POST("/payouts/:id/reverse", payoutH.Reverse)

			admin.GET("/disputes", disputeH.ListDisputes)
			admin.POST("/disputes/:id/review", disputeH.StartReview)
			admin.POST("/disputes/:id/resolve", disputeH.Resolve)
			admin.POST("/disputes/:id/reverse", disputeH.Reverse)

			finance := admin.Group("/finance")
			{
				finance.GET("/bookings/:id/ledger", financeH.GetBookingLedger)
				finance.GET("/reports/daily", financeH.DailySummary)
				finance.GET("/reports/monthly", financeH.MonthlySummary)
				finance.GET("/reports/revenue", financeH.PlatformRevenue)
				finance.GET("/hosts/:id/earnings", financeH.HostEarnings)
				finance.GET("/hosts/:id/earnings/export", financeH.ExportHostEarnings)
				finance.POST("/periods/refresh", financeH.RefreshPeriod)
				finance.GET("/export/ledger", financeH.ExportLedger)
				finance.GET("/export/snapshots", financeH.ExportSnapshots)
				finance.GET("/export/payouts", financeH.ExportPayouts)
				finance.POST("/health/run", financeH.RunHealthCheck)
				finance.GET("/health/latest", financeH.LatestHealthRun)
				finance.GET("/health/runs", financeH.ListHealthRuns)
			}

			admin.GET("/audit", auditH.List)
			admin.GET("/audit/resource", auditH.ListByResource)
		}
	}

	taskHandler := scheduler.NewTaskHandler(bookingRepo, bookingSvc, payoutSvc, settlementSvc, healthSvc)

	return &application{
		taskHandler:   taskHandler,
		healthService: healthSvc,
	}
}
