package router

import (
	"time"

	"frontdesk/internal/config"
	"frontdesk/internal/handler"
	"frontdesk/internal/infra"
	"frontdesk/internal/middleware"
	"frontdesk/internal/repository"
	"frontdesk/internal/service"
	"frontdesk/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository / BookingClient ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, bookingCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	bookingClient := infra.NewBookingClient(cfg.BookingServiceURL, cfg.BookingServiceToken)

	// ── Repositories ─────────────────────────────────────────────────────────
	operatorRepo := repository.NewOperatorRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(operatorRepo, cfg)
	summarySvc := service.NewSummaryService(bookingClient, rdb, time.Duration(cfg.SummaryCacheTTLSeconds)*time.Second)

	// Worker dispatcher — injected into the settlement service so a successful
	// settlement can enqueue the receipt pipeline.
	dispatcher := worker.NewDispatcher(rdb)

	settlementSvc := service.NewSettlementService(bookingClient, summarySvc, attemptRepo, receiptRepo, dispatcher, bookingCB)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	operatorsH := handler.NewOperatorsHandler(authSvc)
	paymentsH := handler.NewPaymentsHandler(settlementSvc, summarySvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, bookingCB))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Payments — every front-desk role may read and settle
		payments := v1.Group("/bookings/:id/payments", middleware.RequireRole("receptionist", "admin", "superadmin"))
		{
			payments.GET("/summary", paymentsH.Summary)
			payments.GET("/options", paymentsH.Options)
			payments.POST("/quote", paymentsH.Quote)
			payments.POST("/settle", paymentsH.Settle)
		}

		// Attempt audit trail — reconciliation is a supervisor task
		v1.GET("/bookings/:id/payments/attempts", middleware.RequireRole("admin", "superadmin"), paymentsH.Attempts)

		// Operator management
		operators := v1.Group("/operators", middleware.RequireRole("superadmin"))
		{
			operators.POST("", operatorsH.Create)
			operators.GET("", operatorsH.List)
			operators.PUT("/:id", operatorsH.Update)
			operators.DELETE("/:id", operatorsH.Deactivate)
			operators.PATCH("/:id/reactivate", operatorsH.Reactivate)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
