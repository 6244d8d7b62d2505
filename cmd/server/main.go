// Package main runs the coupon service HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/confmeal/backend/config"
	"github.com/confmeal/backend/internal/admin"
	"github.com/confmeal/backend/internal/auth"
	"github.com/confmeal/backend/internal/coupons"
	"github.com/confmeal/backend/internal/emaillogs"
	"github.com/confmeal/backend/internal/middleware"
	"github.com/confmeal/backend/internal/models"
	"github.com/confmeal/backend/internal/notify"
	"github.com/confmeal/backend/internal/scans"
	"github.com/confmeal/backend/pkg/database"
	"github.com/confmeal/backend/pkg/qr"
	"github.com/confmeal/backend/pkg/queue"
	"github.com/confmeal/backend/pkg/redis"
	"github.com/confmeal/backend/pkg/response"
	"github.com/confmeal/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting and email queue disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Coupons: registration, listing, redemption
	scanRepo := scans.NewRepository(pool)
	couponRepo := coupons.NewRepository(pool, scanRepo)

	var notifier coupons.Notifier
	var jobQueue *queue.Queue
	if rdb != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
		notifier = notify.NewQueueNotifier(jobQueue, logger)
	}
	couponService := coupons.NewService(couponRepo, qr.Renderer{}, notifier, coupons.Options{
		TokenPrefix:         cfg.Coupon.Prefix,
		MaxTokenAttempts:    cfg.Coupon.MaxTokenAttempts,
		DefaultScanLocation: cfg.Coupon.DefaultScanLocation,
	}, logger)
	couponHandler := coupons.NewHandler(couponService, logger)

	// Admin dashboard
	adminHandler := admin.NewHandler(couponRepo, scanRepo, s3Client, logger)
	emailLogRepo := emaillogs.NewRepository(pool)
	emailLogHandler := emaillogs.NewHandler(emailLogRepo, couponRepo, jobQueue, logger)

	rateWindow := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: team registration issues a coupon
	public := router.Group("/api")
	public.Use(middleware.RateLimit(rdb, cfg.RateLimit.APIRequests, rateWindow))
	{
		public.POST("/teams/register", couponHandler.Register)
	}

	// Auth (public, tighter limit against credential stuffing)
	authGroup := router.Group("/api/auth")
	authGroup.Use(middleware.RateLimit(rdb, cfg.RateLimit.AuthRequests, rateWindow))
	{
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		// Coupons (any authenticated operator)
		api.GET("/teams", couponHandler.List)
		api.GET("/teams/:token", couponHandler.ByToken)
		api.GET("/teams/:token/qr", couponHandler.QRImage)
		api.POST("/teams/scan", couponHandler.Scan)

		// Dashboard (viewer or admin)
		dash := api.Group("/admin")
		dash.Use(middleware.RequireRole(string(models.RoleAdmin), string(models.RoleViewer)))
		{
			dash.GET("/stats", adminHandler.Stats)
			dash.GET("/recent-scans", adminHandler.RecentScans)
			dash.GET("/scans/coupon/:id", adminHandler.ScanByCoupon)
			dash.GET("/coupons/:token/image-url", adminHandler.CouponImageURL)
			dash.GET("/export/csv", adminHandler.ExportCSV)
			dash.GET("/export/xlsx", adminHandler.ExportXLSX)
			dash.GET("/email-logs", emailLogHandler.List)
			dash.GET("/email-logs/coupon/:id", emailLogHandler.ByCoupon)
		}

		// Admin only
		adm := api.Group("/admin")
		adm.Use(middleware.RequireRole(string(models.RoleAdmin)))
		{
			adm.GET("/users", authHandler.List)
			adm.POST("/users", authHandler.Create)
			adm.PATCH("/users/:id/role", authHandler.UpdateRole)
			adm.POST("/email-logs/coupon/:id/resend", emailLogHandler.Resend)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
