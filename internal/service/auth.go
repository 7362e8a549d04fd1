// Package service contains the console engines: record forms, list views,
// relation lookup, collection editing, import/export, admin views and auth.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/limiter"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
)

// TokenHolder receives the bearer token used for subsequent requests.
type TokenHolder interface {
	SetToken(token string)
}

// AuthService defines the operator session operations.
type AuthService interface {
	// Login exchanges credentials for a token and persists the session.
	Login(ctx context.Context, email, password string) (model.Session, error)
	// Logout clears the persisted session.
	Logout(ctx context.Context) error
	// Current restores the persisted session.
	Current(ctx context.Context) (model.Session, error)
}

type AuthServiceImpl struct {
	repo   repository.AuthRepository
	store  repository.SessionStore
	tokens TokenHolder
	lim    limiter.Limiter
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs AuthService with required dependencies. tokens
// and lim may be nil.
func NewAuthService(repo repository.AuthRepository, store repository.SessionStore, tokens TokenHolder, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{repo: repo, store: store, tokens: tokens, lim: lim, log: log, now: time.Now}
}

// Login authenticates and stores token and profile together.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.Session{}, fmt.Errorf("%w: email and password are required", errs.ErrValidation)
	}
	if s.lim != nil {
		ok, retry, err := s.lim.Allow(ctx, email)
		if err != nil {
			return model.Session{}, fmt.Errorf("login limiter: %w", err)
		}
		if !ok {
			return model.Session{}, fmt.Errorf("%w: try again in %s", errs.ErrTooManyAttempts, retry.Round(time.Second))
		}
	}
	token, admin, err := s.repo.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			s.recordFailure(ctx, email)
		}
		return model.Session{}, err
	}
	if s.lim != nil {
		if err := s.lim.Success(ctx, email); err != nil {
			s.log.Warn("reset login limiter", zap.Error(err))
		}
	}
	profile, err := json.Marshal(admin)
	if err != nil {
		return model.Session{}, err
	}
	if err := s.store.Set(ctx, map[string]string{
		repository.KeyToken: token,
		repository.KeyUser:  string(profile),
	}); err != nil {
		return model.Session{}, fmt.Errorf("store session: %w", err)
	}
	s.setToken(token)
	s.log.Info("logged in", zap.String("email", admin.Email))
	return model.Session{Token: token, Admin: admin, ExpiresAt: TokenExpiry(token)}, nil
}

func (s *AuthServiceImpl) recordFailure(ctx context.Context, email string) {
	if s.lim == nil {
		return
	}
	blocked, retry, err := s.lim.Failure(ctx, email)
	switch {
	case err != nil:
		s.log.Warn("record login failure", zap.Error(err))
	case blocked:
		s.log.Warn("login locked", zap.String("email", email), zap.Duration("retry_after", retry))
	}
}

// Logout removes both session keys.
func (s *AuthServiceImpl) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, repository.KeyToken, repository.KeyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.setToken("")
	return nil
}

// Current loads the stored session. A missing key or an expired token
// yields errs.ErrUnauthorized.
func (s *AuthServiceImpl) Current(ctx context.Context) (model.Session, error) {
	token, err := s.store.Get(ctx, repository.KeyToken)
	if err != nil {
		return model.Session{}, unauthorizedIfMissing(err)
	}
	raw, err := s.store.Get(ctx, repository.KeyUser)
	if err != nil {
		return model.Session{}, unauthorizedIfMissing(err)
	}
	var admin model.Admin
	if err := json.Unmarshal([]byte(raw), &admin); err != nil {
		return model.Session{}, fmt.Errorf("%w: stored profile: %v", errs.ErrUnauthorized, err)
	}
	sess := model.Session{Token: token, Admin: admin, ExpiresAt: TokenExpiry(token)}
	if sess.Expired(s.now()) {
		return model.Session{}, fmt.Errorf("%w: session expired", errs.ErrUnauthorized)
	}
	s.setToken(token)
	return sess, nil
}

func (s *AuthServiceImpl) setToken(token string) {
	if s.tokens != nil {
		s.tokens.SetToken(token)
	}
}

func unauthorizedIfMissing(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrUnauthorized
	}
	return err
}

// TokenExpiry reads the exp claim without verifying the signature. Tokens
// that are not JWTs, or carry no exp, yield the zero time.
func TokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
