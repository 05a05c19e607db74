package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agency-chat/internal/config"
	"agency-chat/internal/email"
	apihttp "agency-chat/internal/http"
	"agency-chat/internal/llm"
	"agency-chat/internal/logging"
	"agency-chat/internal/repository"
	"agency-chat/internal/responder"
	"agency-chat/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// replyScheduler es el productor de respuestas que ademas permite esperar las pendientes.
type replyScheduler interface {
	service.ReplyProducer
	Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	gw, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init", zap.Error(err))
	}
	defer closeStore()

	sessionRepo := repository.NewGatewayChatSessionRepository(gw)
	messageRepo := repository.NewGatewayChatMessageRepository(gw)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUser,
			Password:   cfg.SMTPPass,
			From:       cfg.SMTPFrom,
			FromName:   cfg.SMTPFromName,
			UseTLS:     cfg.SMTPUseTLS,
			ConsoleURL: cfg.ConsoleURL,
		})
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		messageLimiter service.RateLimiter
		loginLimiter   service.RateLimiter
		tokenStore     service.RefreshTokenStore
		redisClient    *redis.Client
	)
	if cfg.MessageRateLimit > 0 {
		messageLimiter = service.NewRateLimiter(time.Minute, cfg.MessageRateLimit)
	}
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			if cfg.MessageRateLimit > 0 {
				messageLimiter = service.NewRedisRateLimiter(redisClient, "chat:ratelimit:message:", time.Minute, cfg.MessageRateLimit)
			}
			loginLimiter = service.NewRedisRateLimiter(redisClient, "chat:ratelimit:login:", 10*time.Minute, 5)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}
	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	hub := service.NewHub(logger)
	messageLog := service.NewMessageLog(logger, messageRepo, sessionRepo, hub)
	notifier := service.NewEmailSessionNotifier(emailSender, cfg.NotifyEmail)
	manager := service.NewSessionManager(logger, sessionRepo, messageLog, notifier)

	var replies replyScheduler
	switch cfg.Responder {
	case "llm":
		llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
		replies = responder.NewLLMResponder(logger, messageLog, messageLog, llmClient, nil)
	default:
		replies = responder.NewCannedResponder(logger, messageLog, nil)
	}

	chatSvc := service.NewChatService(logger, manager, sessionRepo, messageLog, messageLimiter, replies)
	adminAuth := service.NewAdminAuthService(logger, cfg.AdminEmail, cfg.AdminPasswordHash, loginLimiter)
	if cfg.AdminEmail == "" || cfg.AdminPasswordHash == "" {
		logger.Warn("admin credentials not configured, console login disabled")
	}
	console := service.NewAdminConsole(logger, sessionRepo, messageLog)

	chatHandler := apihttp.NewChatHandler(logger, chatSvc, hub, apihttp.ChatOptions{
		CookieSecure:   cfg.CookieSecure,
		OriginPatterns: cfg.WSOriginPatterns,
	})
	adminHandler := apihttp.NewAdminHandler(logger, adminAuth, jwtSvc, console, manager, messageLog)
	router := apihttp.NewRouter(logger, chatHandler, adminHandler, jwtSvc)

	if idle := cfg.SessionIdleTTL(); idle > 0 {
		go sweepIdleSessions(ctx, logger, manager, idle)
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err), zap.String("addr", server.Addr))
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("store", cfg.StoreDriver),
		zap.String("responder", cfg.Responder),
	)

	if err := serve(ctx, logger, server, ln, replies); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

// sweepIdleSessions cierra periodicamente las sesiones sin actividad.
func sweepIdleSessions(ctx context.Context, logger *zap.Logger, manager *service.SessionManager, idle time.Duration) {
	interval := idle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := manager.ExpireIdle(ctx, idle)
			if err != nil {
				logger.Warn("idle session sweep failed", zap.Error(err))
				continue
			}
			if closed > 0 {
				logger.Info("idle chat sessions closed", zap.Int("count", closed))
			}
		}
	}
}
