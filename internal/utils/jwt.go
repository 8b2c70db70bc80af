package utils // package utils provides token signing, hashing and small parsing helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// Default token metadata shared by every instance of the service.
const (
	DefaultTokenIssuer       = "metavr-backend"
	DefaultSessionAudience   = "metavr-dashboard"
	DefaultHandshakeAudience = "metavr-handshake"
)

// TokenKind selects which audience a token is bound to.
type TokenKind int

const (
	KindHandshake TokenKind = iota
	KindSession
)

func (k TokenKind) String() string {
	if k == KindHandshake {
		return "handshake"
	}
	return "session"
}

// Verification failures. Every error returned by Verify wraps exactly one
// of these.
var (
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrAudienceMismatch = errors.New("token audience mismatch")
	ErrIssuerMismatch   = errors.New("token issuer mismatch")
)

// TokenClaims is the payload carried by handshake and session tokens. The
// token id (jti) is the handshake id or the session id depending on kind.
type TokenClaims struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	RememberMe bool   `json:"rememberMe"`
	jwt.RegisteredClaims
}

// TokenID returns the handshake or session id embedded in the claims.
func (c *TokenClaims) TokenID() string { return c.ID }

// Expiry returns the exp claim or the zero time when absent.
func (c *TokenClaims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// TokenConfig configures a TokenCodec. Empty strings fall back to the
// defaults above.
type TokenConfig struct {
	Secret            string
	Issuer            string
	SessionAudience   string
	HandshakeAudience string
	Now               func() time.Time
}

// TokenCodec signs and verifies HS256 tokens for both token kinds.
type TokenCodec struct {
	secret    []byte
	issuer    string
	audiences map[TokenKind]string
	now       func() time.Time
}

// NewTokenCodec builds a codec from cfg.
func NewTokenCodec(cfg TokenConfig) *TokenCodec {
	c := &TokenCodec{
		secret: []byte(cfg.Secret),
		issuer: firstNonEmpty(cfg.Issuer, DefaultTokenIssuer),
		audiences: map[TokenKind]string{
			KindSession:   firstNonEmpty(cfg.SessionAudience, DefaultSessionAudience),
			KindHandshake: firstNonEmpty(cfg.HandshakeAudience, DefaultHandshakeAudience),
		},
		now: cfg.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Sign issues a token of the given kind. It returns the signed string and
// the expiry that was written into it. claims.ID must already hold the
// handshake or session id.
func (c *TokenCodec) Sign(kind TokenKind, claims TokenClaims, ttl time.Duration) (string, time.Time, error) {
	now := c.now().UTC()
	exp := now.Add(ttl)

	claims.Issuer = c.issuer
	claims.Audience = jwt.ClaimStrings{c.audiences[kind]}
	claims.Subject = claims.UserID
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

// Verify parses raw and checks signature, expiry, issuer and the audience
// bound to kind.
func (c *TokenCodec) Verify(kind TokenKind, raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audiences[kind]),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrAudienceMismatch, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrIssuerMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
}

// TokenFailureReason maps a Verify error to a short label for security logs.
func TokenFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrAudienceMismatch):
		return "audience"
	case errors.Is(err, ErrIssuerMismatch):
		return "issuer"
	default:
		return "signature"
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
