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

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sitefolio/backend/internal/cache"
	"github.com/sitefolio/backend/internal/client"
	"github.com/sitefolio/backend/internal/config"
	"github.com/sitefolio/backend/internal/db"
	"github.com/sitefolio/backend/internal/handler"
	"github.com/sitefolio/backend/internal/service"
)

func main() {
	// 로컬 개발용 .env (없으면 무시)
	_ = godotenv.Load()

	cfg := config.Load()

	if err := initSentry(cfg.Sentry); err != nil {
		log.Printf("[Sentry] init failed: %v", err)
	}
	defer sentry.Flush(2 * time.Second)

	settings, err := service.ParseAuthSettings(cfg.Auth)
	if err != nil {
		log.Fatalf("[Auth] %v", err)
	}

	ctx := context.Background()

	// PostgreSQL: principal, 시퀀스 카운터, 관리자 감사 로그
	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("[Postgres] %v", err)
	}
	defer pool.Close()

	pg := &db.Postgres{Pool: pool}
	if err := pg.EnsureAuthSchema(ctx); err != nil {
		log.Fatalf("[Postgres] failed to ensure schema: %v", err)
	}

	// Redis: refresh token, 로그인 rate limit
	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("[Redis] %v", err)
	}
	defer rdb.Close()

	refreshStore := cache.NewRefreshTokenStore(rdb, settings.RefreshTTL)
	loginLimiter := cache.NewRateLimiter(rdb, "rl:login:", settings.LoginRateMax, settings.LoginRateWindow)

	slackClient := client.NewSlackClient(cfg.Slack)
	if !slackClient.IsConfigured() {
		log.Printf("[SecurityAlert] Slack not configured, security alerts disabled")
	}

	sentryReporter := client.NewSentryReporter(sentry.CurrentHub())
	notifiers := client.Notifiers{slackClient, sentryReporter}

	authService, err := service.NewAuthService(pg, refreshStore, notifiers, settings)
	if err != nil {
		log.Fatalf("[Auth] %v", err)
	}
	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.AdminNickname); err != nil {
		log.Fatalf("[Admin] %v", err)
	}

	router, err := newRouter(cfg, authService, loginLimiter, pg, cache.Pinger{Client: rdb})
	if err != nil {
		log.Fatalf("[Server] %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[Server] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Server] %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] shutdown: %v", err)
	}
	log.Printf("[Server] stopped")
}

func newRouter(
	cfg config.Config,
	authService *service.AuthService,
	loginLimiter *cache.RateLimiter,
	postgres *db.Postgres,
	redisPinger cache.Pinger,
) (*gin.Engine, error) {
	router, err := handler.NewEngine(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	router.Use(gin.Logger(), handler.SentryRecovery())
	router.Use(handler.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.AllowCredentials))

	health := handler.NewHealthHandler(postgres, redisPinger)
	router.GET("/ping", handler.Ping)
	router.GET("/", handler.Root)
	router.GET("/healthz", health.Healthz)

	api := router.Group("/api/v1")
	api.GET("/openapi.json", handler.OpenAPIDoc)

	secured := api.Group("")
	secured.Use(handler.APIKeyMiddleware(cfg.Server.APIKeys))

	authHandler := handler.NewAuthHandler(authService)
	authGroup := secured.Group("/auth")
	authGroup.GET("/config", authHandler.Config)
	authGroup.POST("/login", handler.LoginRateLimit(loginLimiter), authHandler.Login)
	authGroup.POST("/register", handler.LoginRateLimit(loginLimiter), authHandler.Register)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/me", handler.AuthMiddleware(authService), authHandler.Me)

	adminHandler := handler.NewAdminHandler(authService)
	adminGroup := secured.Group("/admin")
	adminGroup.Use(handler.AuthMiddleware(authService), handler.RequireAdmin())
	adminGroup.POST("/admins", adminHandler.CreateAdmin)
	adminGroup.POST("/principals/:kind/:publicId/unlock", adminHandler.UnlockPrincipal)
	adminGroup.PUT("/principals/:kind/:publicId/status", adminHandler.SetPrincipalStatus)
	adminGroup.GET("/logs", adminHandler.ListAdminLogs)

	return router, nil
}

func initSentry(cfg config.SentryConfig) error {
	if cfg.DSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		AttachStacktrace: true,
	})
}
