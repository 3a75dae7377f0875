package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"disc-assess/internal/config"
	"disc-assess/internal/db"
	"disc-assess/internal/email"
	apihttp "disc-assess/internal/http"
	"disc-assess/internal/llm"
	"disc-assess/internal/profilehook"
	"disc-assess/internal/questionnaire"
	"disc-assess/internal/repository"
	"disc-assess/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	bank, err := questionnaire.Default()
	if err != nil {
		logger.Fatal("question bank", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	assessmentRepo := repository.NewPgAssessmentRepository(pool)
	resultRepo := repository.NewPgResultRepository(pool)
	analysisRepo := repository.NewPgAnalysisRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		codeLimiter service.LoginCodeLimiter
		tokenStore  service.RefreshTokenStore
		fastCache   service.AnalysisCache
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			codeLimiter = service.NewRedisLoginCodeLimiter(redisClient, 10*time.Minute, 3)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			if rc, err := service.NewRedisAnalysisCache(redisClient, cfg.AnalysisCacheTTL()); err != nil {
				logger.Warn("redis analysis cache init failed", zap.Error(err))
			} else {
				fastCache = rc
			}
		}
		cancel()
	}

	jwtSvc := service.NewJWTServiceWithStore(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), tokenStore)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	llmClient, err := llm.New(ctx, llm.Options{
		Provider:        cfg.LLMProvider,
		APIKey:          cfg.LLMAPIKey,
		BaseURL:         cfg.LLMBaseURL,
		Model:           cfg.LLMModel,
		AssistantID:     cfg.LLMAssistantID,
		PollInterval:    cfg.LLMPollInterval(),
		MaxPollAttempts: cfg.LLMPollMaxAttempts,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GeminiModel:     cfg.GeminiModel,
	}, logger)
	if err != nil {
		logger.Fatal("llm client", zap.Error(err))
	}

	queue := service.NewAnalysisQueue(
		llmClient,
		service.NewTieredAnalysisCache(fastCache, analysisRepo, logger),
		service.AnalysisQueueConfig{
			MaxAttempts: cfg.AnalysisMaxAttempts,
			Backoff:     cfg.AnalysisBackoff(),
			QueueSize:   cfg.AnalysisQueueSize,
		},
		logger,
	)
	defer queue.Close()

	userSvc := service.NewUserService(logger, userRepo, emailSender, codeLimiter).
		WithAdminEmails(cfg.AdminEmails).
		WithProfileFetcher(profilehook.New(cfg.ProfileWebhookURL, cfg.ProfileWebhookTimeout(), logger))
	assessmentSvc := service.NewAssessmentService(assessmentRepo, resultRepo, bank, logger)
	reportSvc := service.NewReportService(assessmentSvc, userSvc, queue, logger)

	router := apihttp.NewRouter(
		logger,
		jwtSvc,
		apihttp.NewUserHandler(logger, userSvc, jwtSvc),
		apihttp.NewAssessmentHandler(logger, bank, assessmentSvc),
		apihttp.NewResultHandler(logger, assessmentSvc, reportSvc),
		apihttp.NewAdminHandler(logger, userSvc, assessmentSvc, queue),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("llm_provider", cfg.LLMProvider))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}
