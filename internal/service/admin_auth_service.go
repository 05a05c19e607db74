package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"agency-chat/internal/domain"
)

var (
	ErrAdminAuthNotConfigured = errors.New("admin auth not configured")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrRateLimited            = errors.New("rate limited")
)

// AdminAuthService valida al operador unico configurado por entorno (email + hash bcrypt).
type AdminAuthService struct {
	logger       *zap.Logger
	email        string
	passwordHash []byte
	limiter      RateLimiter
}

func NewAdminAuthService(logger *zap.Logger, email, passwordHash string, limiter RateLimiter) *AdminAuthService {
	if limiter == nil {
		limiter = NewRateLimiter(10*time.Minute, 5)
	}
	return &AdminAuthService{
		logger:       logger,
		email:        normalizeEmail(email),
		passwordHash: []byte(strings.TrimSpace(passwordHash)),
		limiter:      limiter,
	}
}

func (s *AdminAuthService) Authenticate(_ context.Context, emailAddr, password string) (domain.Admin, error) {
	if s == nil || s.email == "" || len(s.passwordHash) == 0 {
		return domain.Admin{}, ErrAdminAuthNotConfigured
	}
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.Admin{}, ErrInvalidCredentials
	}
	if !s.limiter.Allow(emailAddr) {
		return domain.Admin{}, ErrRateLimited
	}
	if emailAddr != s.email {
		s.logger.Warn("admin login with unknown email", zap.String("email", emailAddr))
		return domain.Admin{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		s.logger.Warn("admin login with wrong password", zap.String("email", emailAddr))
		return domain.Admin{}, ErrInvalidCredentials
	}
	return domain.Admin{ID: "admin:" + s.email, Email: s.email, DisplayName: displayNameFromEmail(s.email)}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
