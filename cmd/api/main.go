package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/quote-desk-api/api/swagger"
	"github.com/noah-isme/quote-desk-api/internal/handler"
	"github.com/noah-isme/quote-desk-api/internal/middleware"
	"github.com/noah-isme/quote-desk-api/internal/models"
	"github.com/noah-isme/quote-desk-api/internal/repository"
	"github.com/noah-isme/quote-desk-api/internal/service"
	"github.com/noah-isme/quote-desk-api/pkg/cache"
	"github.com/noah-isme/quote-desk-api/pkg/config"
	"github.com/noah-isme/quote-desk-api/pkg/database"
	"github.com/noah-isme/quote-desk-api/pkg/logger"
	"github.com/noah-isme/quote-desk-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/quote-desk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/quote-desk-api/pkg/middleware/requestid"
	"github.com/noah-isme/quote-desk-api/pkg/sanitize"
)

// @title Quote Desk API
// @version 1.0.0
// @description Quote request intake and moderation
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// quoteStore is what every quote backend provides.
type quoteStore interface {
	Create(ctx context.Context, quote *models.Quote) error
	GetByID(ctx context.Context, id string) (*models.Quote, error)
	List(ctx context.Context, filter models.QuoteFilter) ([]models.Quote, int, error)
	CountByStatus(ctx context.Context) (models.QuoteCounts, error)
	UpdateStatus(ctx context.Context, id string, status models.QuoteStatus) error
	UpdateTitle(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()
	checks["postgres"] = db.PingContext

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Quotes.CountsCacheTTL, logr, cacheRepo.Enabled())

	quotes, err := newQuoteStore(ctx, cfg, db, metrics)
	if err != nil {
		logr.Fatal("failed to init quote store", zap.Error(err), zap.String("store", cfg.Quotes.Store))
	}

	validate := validator.New()
	sanitizer := sanitize.New()
	caps := service.NewRoleCapabilities()
	audit := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(repository.NewUserRepository(db), audit, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	var nonces service.NonceStore
	if cfg.Quotes.ActionTokenSingleUse && cacheRepo.Enabled() {
		nonces = cacheRepo
	}
	tokenSvc := service.NewActionTokenService(service.ActionTokenConfig{
		Secret: cfg.Quotes.ActionTokenSecret,
		TTL:    cfg.Quotes.ActionTokenTTL,
		Issuer: cfg.JWT.Issuer,
	}, nonces, logr)

	notifier := service.NewNotificationService(newMailSender(cfg.Mail, logr), service.NotificationConfig{
		From:      cfg.Mail.From,
		Recipient: cfg.Mail.NotifyRecipient,
	}, metrics, logr)

	intakeSvc := service.NewIntakeService(quotes, notifier, cacheSvc, sanitizer, validate, metrics, logr)
	moderationSvc := service.NewModerationService(quotes, cacheSvc, caps, audit, sanitizer, service.ModerationConfig{
		CountsTTL: cfg.Quotes.CountsCacheTTL,
	}, logr)
	lifecycleSvc := service.NewLifecycleService(quotes, caps, tokenSvc, audit, cacheSvc, metrics, service.LifecycleConfig{
		StrictPurge: cfg.Quotes.StrictPurge,
	}, logr)
	exportSvc := service.NewExportService(quotes, cfg.Quotes.ExportMaxRows, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	quoteHandler := handler.NewQuoteHandler(intakeSvc)
	moderationHandler := handler.NewModerationHandler(moderationSvc, lifecycleSvc, tokenSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	public := api.Group("/quotes", middleware.CSRF(cfg.CSRF))
	public.GET("/form-token", quoteHandler.FormToken)
	public.POST("", quoteHandler.Submit)

	admin := api.Group("/admin/quotes", middleware.JWT(authSvc), middleware.WithResponseMeta())
	admin.GET("", moderationHandler.List)
	admin.GET("/counts", moderationHandler.Counts)
	admin.GET("/export", moderationHandler.Export)
	admin.GET("/:id", moderationHandler.Get)

	editors := admin.Group("", middleware.RequireRoles(caps.EditorRoles()...))
	editors.PATCH("/:id", moderationHandler.Rename)
	editors.POST("/action-token", moderationHandler.ActionToken)
	editors.POST("/actions", moderationHandler.Actions)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Quotes.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logr.Info("server stopped")
}

func newQuoteStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, metrics *service.MetricsService) (quoteStore, error) {
	switch cfg.Quotes.Store {
	case "", config.StorePostgres:
		return repository.NewQuoteRepository(db, metrics), nil
	case config.StoreDynamoDB:
		client, err := database.NewDynamoDB(ctx, cfg.Dynamo)
		if err != nil {
			return nil, err
		}
		return repository.NewQuoteDynamoRepository(client, cfg.Dynamo.Table, metrics), nil
	default:
		return nil, fmt.Errorf("unknown quote store %q", cfg.Quotes.Store)
	}
}

func newMailSender(cfg config.MailConfig, logr *zap.Logger) mail.Sender {
	if cfg.Provider == config.MailProviderResend && cfg.ResendAPIKey != "" {
		return mail.NewResendSender(cfg.ResendAPIKey, cfg.From, logr)
	}
	if cfg.Provider == config.MailProviderResend {
		logr.Warn("RESEND_API_KEY not set, falling back to noop mail sender")
	}
	return mail.NewNoopSender(logr)
}
