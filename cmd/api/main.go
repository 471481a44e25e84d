package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/auth"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/background"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/cache"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/config"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/database"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/handlers"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/metrics"
	middlewareCustom "github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/middleware"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/models"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/repositories"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/routes"
	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/services"
	pkgauth "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/auth"
	pkghttp "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/http"
	pkglogger "github.com/JonathanArroyaveGonzalez/sapfi-auth/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis (two-factor challenge store)
	redisClient, err := cache.New(cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	ipBlockRepo := repositories.NewIPBlockRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTIssuer,
		cfg.Auth.JWTAudience,
		cfg.Auth.AccessTokenExpiry,
	)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Email service: SES in production, log-only otherwise
	var emailService services.EmailSender
	if cfg.Server.Env == "production" {
		emailService, err = services.NewAWSSESEmailService(
			cfg.Email.AWSRegion,
			cfg.Email.FromAddress,
			cfg.Email.ResetURLBase,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		emailService = services.NewLogEmailService(logger)
	}

	// Initialize services
	attemptService := services.NewAttemptService(attemptRepo, cfg.Security, logger)
	blacklistService := services.NewBlacklistService(ipBlockRepo, cfg.Security, logger)
	lockoutService := services.NewLockoutService(userRepo, cfg.Security, logger)
	twoFactorService := services.NewTwoFactorService(redisClient, emailService, cfg.Security.TwoFactorCodeTTL, cfg.Server.Env, logger)
	refreshTokenService := services.NewRefreshTokenService(refreshTokenRepo, tokenManager, cfg.Security, logger)
	auditService := services.NewAuditService(auditLogRepo, logger)

	authService := services.NewAuthService(services.AuthServiceDeps{
		Users:       userRepo,
		IPGate:      blacklistService,
		Ledger:      attemptService,
		Locker:      lockoutService,
		Challenges:  twoFactorService,
		Sessions:    refreshTokenService,
		Recorder:    auditService,
		Email:       emailService,
		TokenMgr:    tokenManager,
		Timing:      timingDelay,
		Logger:      logger,
		AuditLogger: auditLogger,
		Env:         cfg.Server.Env,
	})

	// Background reclamation
	cleanupManager := background.NewCleanupManager(logger, cfg.Security.CleanupInterval)
	cleanupManager.Register(metrics.StoreRefreshTokens, background.ReclaimerFunc(refreshTokenService.ReclaimExpired))
	cleanupManager.Register(metrics.StoreIPBlocks, background.ReclaimerFunc(blacklistService.ReclaimExpired))
	cleanupManager.Register(metrics.StoreLoginAttempts, background.ReclaimerFunc(attemptService.Reclaim))

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	securityHandler := handlers.NewSecurityHandler(
		blacklistService, lockoutService, attemptService, auditService, auditService, auditLogger)

	// Bootstrap first admin user if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, securityHandler, tokenManager)

	router.Handle("/metrics", promhttp.Handler())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start reclamation task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("invalid admin password: %w", err)
	}

	hash, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin, err := userRepo.Create(ctx, &models.User{
		Email:        adminEmail,
		PasswordHash: hash,
		Name:         "Administrator",
		Roles:        []string{"admin", "user"},
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("user_id", admin.ID))
	return nil
}
