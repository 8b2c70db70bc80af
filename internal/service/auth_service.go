package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/repository"
	"github.com/metavr/access-service/internal/utils"
)

// LoginPrecedence is the order in which roles are tried when one email is
// registered under several roles. The empty role matches any principal.
var LoginPrecedence = []model.Role{model.RoleSupervisor, model.RoleAdmin, ""}

// Revocation reasons written to session records.
const (
	RevokedLogout      = "logout"
	RevokedIdleTimeout = "idle-timeout"
)

// AuthConfig holds the token lifetimes used by AuthService.
type AuthConfig struct {
	HandshakeTTL  time.Duration
	SessionTTL    time.Duration
	RememberMeTTL time.Duration
	IdleTimeout   time.Duration
	// TouchInterval is the minimum age of last_access_at before it is
	// rewritten. Zero writes on every validation.
	TouchInterval time.Duration
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.HandshakeTTL <= 0 {
		c.HandshakeTTL = 60 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 12 * time.Hour
	}
	if c.RememberMeTTL <= 0 {
		c.RememberMeTTL = 7 * 24 * time.Hour
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 6 * time.Hour
	}
	return c
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Role           model.Role
	HandshakeToken string
	ExpiresAt      time.Time
	MaxAge         time.Duration
}

// ExchangeResult is returned by a successful ExchangeHandshake.
type ExchangeResult struct {
	Role         model.Role
	RedirectTo   string
	SessionToken string
	ExpiresAt    time.Time
	MaxAge       time.Duration
}

// AuthService implements login, the handshake exchange, logout and session
// validation.
type AuthService struct {
	codec      *utils.TokenCodec
	principals PrincipalStore
	sessions   SessionStore
	handshakes HandshakeStore
	cfg        AuthConfig
	opt        options
}

func NewAuthService(codec *utils.TokenCodec, principals PrincipalStore, sessions SessionStore, handshakes HandshakeStore, cfg AuthConfig, opts ...Option) *AuthService {
	return &AuthService{
		codec:      codec,
		principals: principals,
		sessions:   sessions,
		handshakes: handshakes,
		cfg:        cfg.withDefaults(),
		opt:        buildOptions(opts),
	}
}

// HandshakeTTL is the lifetime of handshake tokens and their cookie.
func (s *AuthService) HandshakeTTL() time.Duration { return s.cfg.HandshakeTTL }

// RedirectFor returns the dashboard a role lands on after the handshake.
func RedirectFor(role model.Role) string {
	if role == model.RoleSupervisor {
		return "/supervisor/dashboard"
	}
	return "/admin/dashboard"
}

// Login checks credentials and issues a single-use handshake token.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		s.opt.security.Event(ctx, "login_failed", "reason", "missing_credentials")
		return LoginResult{}, ErrCredentialInvalid
	}

	p, err := s.findForLogin(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.opt.security.Event(ctx, "login_failed", "reason", "unknown_email", "email", email)
		return LoginResult{}, ErrCredentialInvalid
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup principal: %w", err)
	}
	if !utils.VerifyPassword(p.PasswordHash, password) {
		s.opt.security.Event(ctx, "login_failed", "reason", "invalid_password", "email", email)
		return LoginResult{}, ErrCredentialInvalid
	}
	if p.Status != model.StatusActive {
		s.opt.security.Event(ctx, "login_blocked", "reason", "account_not_active", "email", email, "status", string(p.Status))
		return LoginResult{}, ErrAccountNotActive
	}

	now := s.opt.now().UTC()
	if err := s.principals.RecordLogin(ctx, p.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("record login: %w", err)
	}

	claims := utils.TokenClaims{UserID: p.ID, Email: p.Email, Role: string(p.Role), RememberMe: rememberMe}
	claims.ID = uuid.NewString()
	token, exp, err := s.codec.Sign(utils.KindHandshake, claims, s.cfg.HandshakeTTL)
	if err != nil {
		return LoginResult{}, err
	}
	rec := model.HandshakeRecord{ID: claims.ID, UserID: p.ID, RememberMe: rememberMe, ExpiresAt: exp, CreatedAt: now}
	if err := s.handshakes.Create(ctx, rec); err != nil {
		return LoginResult{}, fmt.Errorf("persist handshake: %w", err)
	}

	s.opt.log.InfoContext(ctx, "login succeeded", "user_id", p.ID, "role", p.Role)
	return LoginResult{Role: p.Role, HandshakeToken: token, ExpiresAt: exp, MaxAge: s.cfg.HandshakeTTL}, nil
}

func (s *AuthService) findForLogin(ctx context.Context, email string) (model.Principal, error) {
	for _, role := range LoginPrecedence {
		p, err := s.principals.FindByEmail(ctx, email, role)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return model.Principal{}, err
		}
	}
	return model.Principal{}, repository.ErrNotFound
}

// ExchangeHandshake consumes a handshake token and opens a session. A given
// handshake yields at most one session no matter how many callers race.
func (s *AuthService) ExchangeHandshake(ctx context.Context, token string) (ExchangeResult, error) {
	if token == "" {
		return ExchangeResult{}, ErrHandshakeInvalid
	}
	claims, err := s.codec.Verify(utils.KindHandshake, token)
	if err != nil {
		s.opt.security.Event(ctx, "handshake_verification_failed", "reason", utils.TokenFailureReason(err))
		return ExchangeResult{}, fmt.Errorf("%w: %v", ErrHandshakeInvalid, err)
	}
	if err := s.consumeHandshake(ctx, claims.TokenID()); err != nil {
		return ExchangeResult{}, err
	}

	ttl := s.cfg.SessionTTL
	if claims.RememberMe {
		ttl = s.cfg.RememberMeTTL
	}
	now := s.opt.now().UTC()
	sc := utils.TokenClaims{UserID: claims.UserID, Email: claims.Email, Role: claims.Role, RememberMe: claims.RememberMe}
	sc.ID = uuid.NewString()
	sessionToken, exp, err := s.codec.Sign(utils.KindSession, sc, ttl)
	if err != nil {
		return ExchangeResult{}, err
	}
	rec := model.SessionRecord{
		ID:           sc.ID,
		UserID:       claims.UserID,
		Email:        claims.Email,
		Role:         model.Role(claims.Role),
		RememberMe:   claims.RememberMe,
		ExpiresAt:    exp,
		LastAccessAt: now,
		CreatedAt:    now,
	}
	if err := s.sessions.Create(ctx, rec); err != nil {
		return ExchangeResult{}, fmt.Errorf("persist session: %w", err)
	}

	role := model.Role(claims.Role)
	redirect := RedirectFor(role)
	s.opt.log.InfoContext(ctx, "session created", "user_id", claims.UserID, "role", role, "redirect_to", redirect)
	return ExchangeResult{Role: role, RedirectTo: redirect, SessionToken: sessionToken, ExpiresAt: exp, MaxAge: ttl}, nil
}

// consumeHandshake marks the handshake used. A lost conditional update is
// retried once; the re-read then sees the winner's write.
func (s *AuthService) consumeHandshake(ctx context.Context, id string) error {
	err := repository.RetryOnConflict(ctx, func(ctx context.Context) error {
		h, err := s.handshakes.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			s.opt.security.Event(ctx, "handshake_rejected", "reason", "record_missing", "handshake_id", id)
			return ErrHandshakeMissing
		}
		if err != nil {
			return fmt.Errorf("load handshake: %w", err)
		}
		if h.Used {
			s.opt.security.Event(ctx, "handshake_rejected", "reason", "reused", "handshake_id", id)
			return ErrHandshakeReused
		}
		now := s.opt.now().UTC()
		if !now.Before(h.ExpiresAt) {
			s.opt.security.Event(ctx, "handshake_rejected", "reason", "expired", "handshake_id", id)
			return ErrHandshakeExpired
		}
		won, err := s.handshakes.MarkUsed(ctx, id, now)
		if err != nil {
			return err
		}
		if !won {
			return repository.ErrConflict
		}
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		s.opt.security.Event(ctx, "handshake_rejected", "reason", "reused", "handshake_id", id)
		return ErrHandshakeReused
	}
	return err
}

// Logout revokes the session behind token. Missing, invalid or already
// revoked tokens are not errors.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.codec.Verify(utils.KindSession, token)
	if err != nil {
		return nil
	}
	return s.revoke(ctx, claims.TokenID(), RevokedLogout)
}

func (s *AuthService) revoke(ctx context.Context, sessionID, reason string) error {
	ok, err := s.sessions.Revoke(ctx, sessionID, reason, s.opt.now().UTC())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if ok {
		s.opt.security.Event(ctx, "session_revoked", "session_id", sessionID, "reason", reason)
	}
	return nil
}

// ValidateSession verifies a session token against its record and slides
// the idle window forward. A session idle for longer than IdleTimeout is
// revoked here, on first use after going idle.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*utils.TokenClaims, error) {
	claims, err := s.codec.Verify(utils.KindSession, token)
	if err != nil {
		reason := utils.TokenFailureReason(err)
		if reason == "signature" {
			s.opt.security.Event(ctx, "session_rejected", "reason", "signature validation failed")
		} else {
			s.opt.security.Event(ctx, "session_rejected", "reason", reason)
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	id := claims.TokenID()

	rec, err := s.sessions.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		s.opt.security.Event(ctx, "session_rejected", "reason", "record missing", "session_id", id)
		return nil, ErrSessionRecordMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec.Revoked {
		s.opt.security.Event(ctx, "session_rejected", "reason", "revoked", "session_id", id, "revocation_reason", rec.RevocationReason)
		return nil, fmt.Errorf("%w: %s", ErrSessionRevoked, rec.RevocationReason)
	}

	now := s.opt.now().UTC()
	if !now.Before(rec.ExpiresAt) || !now.Before(claims.Expiry()) {
		s.opt.security.Event(ctx, "session_rejected", "reason", "expired", "session_id", id)
		return nil, ErrSessionExpired
	}
	if now.Sub(rec.LastAccessAt) > s.cfg.IdleTimeout {
		if err := s.revoke(ctx, id, RevokedIdleTimeout); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: idle timeout", ErrSessionExpired)
	}

	if s.cfg.TouchInterval <= 0 || now.Sub(rec.LastAccessAt) >= s.cfg.TouchInterval {
		if err := s.sessions.Touch(ctx, id, now); err != nil {
			return nil, fmt.Errorf("touch session: %w", err)
		}
	}
	return claims, nil
}
