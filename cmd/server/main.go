package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/essaybros/web/internal/config"
	"github.com/essaybros/web/internal/handler"
	"github.com/essaybros/web/internal/idp"
	"github.com/essaybros/web/internal/mailer"
	"github.com/essaybros/web/internal/middleware"
	"github.com/essaybros/web/internal/migration"
	"github.com/essaybros/web/internal/repository"
	"github.com/essaybros/web/internal/service"
	"github.com/essaybros/web/internal/session"
	"github.com/essaybros/web/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	logger.MustInit(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		ServiceName: "essaybros-web",
	})
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	dbPool, err := initDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Running database migrations...")
	if err := migration.AutoMigrate(cfg.DBUrl, cfg.MigrationsPath); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
	logger.Info("Migrations completed successfully")

	redisClient, err := initRedis(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	router := setupRouter(cfg, dbPool, redisClient)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Essay Bros starting",
			zap.String("port", cfg.Port),
			zap.String("auth_backend", cfg.AuthBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func initDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to PostgreSQL")
	return pool, nil
}

func initRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr(),
		DB:   cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Connected to Redis")
	return client, nil
}

func setupRouter(cfg *config.Config, dbPool *pgxpool.Pool, redisClient *redis.Client) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.BaseURL},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "essaybros-web",
			"timestamp": time.Now().Unix(),
		})
	})

	pages := handler.NewPages(cfg.StaticDir)
	pages.Register(router)

	switch cfg.AuthBackend {
	case config.BackendHosted:
		setupHostedAuth(cfg, router, pages)
	default:
		setupLocalAuth(cfg, router, pages, dbPool, redisClient)
	}

	return router
}

// setupLocalAuth wires the email/password backend: Postgres accounts and
// tokens, Redis sessions, outbound verification mail.
func setupLocalAuth(cfg *config.Config, router *gin.Engine, pages *handler.Pages, dbPool *pgxpool.Pool, redisClient *redis.Client) {
	accountRepo := repository.NewAccountRepository(dbPool)
	tokenRepo := repository.NewTokenRepository(dbPool)

	sessions := session.NewStore(redisClient, cfg.SessionTTL)
	cookies := session.Cookies{
		Name:   cfg.SessionCookie,
		MaxAge: int(cfg.SessionTTL.Seconds()),
		Secure: cfg.IsProduction(),
	}

	authService := service.NewAuthService(accountRepo, tokenRepo, mailer.Default(cfg), cfg.BaseURL)
	authHandler := handler.NewAuthHandler(authService, sessions, cookies)
	gate := middleware.NewGate(sessions, accountRepo, cookies)

	router.POST("/signup", authHandler.Signup)
	router.POST("/login", authHandler.Login)
	router.POST("/resend", authHandler.Resend)
	router.GET("/verify", authHandler.Verify)
	router.GET("/logout", authHandler.Logout)

	router.GET("/course", gate.RequireVerified(), pages.Course)
}

// setupHostedAuth wires the managed-user-pool backend: the browser talks to
// the pool directly, the server only gates the course page.
func setupHostedAuth(cfg *config.Config, router *gin.Engine, pages *handler.Pages) {
	verifier := idp.NewVerifier(cfg.CognitoRegion, cfg.CognitoUserPoolID, cfg.CognitoClientID)
	gate := idp.NewGate(verifier)

	router.GET("/course", gate.RequireVerified(), pages.Course)
}
