package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metavr/access-service/internal/model"
)

func seedStaff(t *testing.T, e *env) {
	t.Helper()
	e.principals.put(model.Principal{ID: "adm-1", Email: "shared@metavr.test", Role: model.RoleAdmin, Status: model.StatusActive, PasswordHash: hash(t, "admin-pw")})
	e.principals.put(model.Principal{ID: "sup-1", Email: "shared@metavr.test", Name: "Sam", Role: model.RoleSupervisor, Status: model.StatusActive, PasswordHash: hash(t, "sup-pw")})
	e.principals.put(model.Principal{ID: "adm-2", Email: "boss@metavr.test", Role: model.RoleAdmin, Status: model.StatusActive, PasswordHash: hash(t, "boss-pw")})
	e.principals.put(model.Principal{ID: "sup-2", Email: "gone@metavr.test", Role: model.RoleSupervisor, Status: model.StatusSuspended, PasswordHash: hash(t, "gone-pw")})
}

func TestLoginPrefersSupervisorOnSharedEmail(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)

	res, err := e.auth.Login(context.Background(), "  Shared@MetaVR.test ", "sup-pw", false)
	require.NoError(t, err)
	assert.Equal(t, model.RoleSupervisor, res.Role)
	assert.NotEmpty(t, res.HandshakeToken)
	assert.Equal(t, 60*time.Second, res.MaxAge)
	assert.NotNil(t, e.principals.get("sup-1").LastLoginAt)

	// The admin sharing the email is never reached.
	_, err = e.auth.Login(context.Background(), "shared@metavr.test", "admin-pw", false)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestLoginFailures(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	ctx := context.Background()

	_, err := e.auth.Login(ctx, "nobody@metavr.test", "x", false)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
	assert.True(t, IsUnauthenticated(err))

	_, err = e.auth.Login(ctx, "boss@metavr.test", "wrong", false)
	assert.ErrorIs(t, err, ErrCredentialInvalid)

	_, err = e.auth.Login(ctx, "gone@metavr.test", "gone-pw", false)
	assert.ErrorIs(t, err, ErrAccountNotActive)
	assert.True(t, IsUnauthenticated(err))

	_, err = e.auth.Login(ctx, "", "", false)
	assert.ErrorIs(t, err, ErrCredentialInvalid)

	assert.True(t, e.security.has("login_failed"))
	assert.True(t, e.security.has("login_blocked"))
}

func TestExchangeHandshakeOnce(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	ctx := context.Background()

	lr, err := e.auth.Login(ctx, "boss@metavr.test", "boss-pw", true)
	require.NoError(t, err)

	xr, err := e.auth.ExchangeHandshake(ctx, lr.HandshakeToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, xr.Role)
	assert.Equal(t, "/admin/dashboard", xr.RedirectTo)
	assert.Equal(t, 7*24*time.Hour, xr.MaxAge)

	s := e.sessions.only(t)
	assert.Equal(t, "adm-2", s.UserID)
	assert.True(t, s.RememberMe)
	assert.False(t, s.Revoked)

	_, err = e.auth.ExchangeHandshake(ctx, lr.HandshakeToken)
	assert.ErrorIs(t, err, ErrHandshakeReused)
	assert.True(t, IsHandshakeFailure(err))
}

func TestExchangeHandshakeRace(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	ctx := context.Background()

	lr, err := e.auth.Login(ctx, "shared@metavr.test", "sup-pw", false)
	require.NoError(t, err)

	const n = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		reused int
		start  = make(chan struct{})
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			xr, err := e.auth.ExchangeHandshake(ctx, lr.HandshakeToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				assert.Equal(t, "/supervisor/dashboard", xr.RedirectTo)
				return
			}
			assert.ErrorIs(t, err, ErrHandshakeReused)
			reused++
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, reused)
	assert.Len(t, e.sessions.rows, 1)
}

func TestExchangeHandshakeRejections(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	ctx := context.Background()

	_, err := e.auth.ExchangeHandshake(ctx, "")
	assert.ErrorIs(t, err, ErrHandshakeInvalid)
	_, err = e.auth.ExchangeHandshake(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrHandshakeInvalid)

	// Record expired while the token is still inside its own lifetime.
	lr, err := e.auth.Login(ctx, "boss@metavr.test", "boss-pw", false)
	require.NoError(t, err)
	for id, h := range e.handshakes.rows {
		h.ExpiresAt = e.clock.Now().Add(-time.Second)
		e.handshakes.rows[id] = h
	}
	_, err = e.auth.ExchangeHandshake(ctx, lr.HandshakeToken)
	assert.ErrorIs(t, err, ErrHandshakeExpired)

	// Record missing.
	lr, err = e.auth.Login(ctx, "boss@metavr.test", "boss-pw", false)
	require.NoError(t, err)
	e.handshakes.rows = map[string]model.HandshakeRecord{}
	_, err = e.auth.ExchangeHandshake(ctx, lr.HandshakeToken)
	assert.ErrorIs(t, err, ErrHandshakeMissing)

	// Token past its own expiry fails verification.
	lr, err = e.auth.Login(ctx, "boss@metavr.test", "boss-pw", false)
	require.NoError(t, err)
	e.clock.Advance(2 * time.Minute)
	_, err = e.auth.ExchangeHandshake(ctx, lr.HandshakeToken)
	assert.ErrorIs(t, err, ErrHandshakeInvalid)
	assert.True(t, e.security.has("handshake_verification_failed"))
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	ctx := context.Background()

	lr, err := e.auth.Login(ctx, "boss@metavr.test", "boss-pw", false)
	require.NoError(t, err)
	_, err = e.auth.ValidateSession(ctx, lr.HandshakeToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	xr, err := e.auth.ExchangeHandshake(ctx, lr.HandshakeToken)
	require.NoError(t, err)
	_, err = e.auth.ExchangeHandshake(ctx, xr.SessionToken)
	assert.ErrorIs(t, err, ErrHandshakeInvalid)
}

func TestValidateSessionTouchesAndIdlesOut(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	ctx := context.Background()
	token := e.login(t, "boss@metavr.test", "boss-pw")

	e.clock.Advance(time.Hour)
	claims, err := e.auth.ValidateSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "adm-2", claims.UserID)
	assert.Equal(t, e.clock.Now(), e.sessions.only(t).LastAccessAt)

	e.clock.Advance(6*time.Hour + time.Second)
	_, err = e.auth.ValidateSession(ctx, token)
	assert.ErrorIs(t, err, ErrSessionExpired)

	s := e.sessions.only(t)
	assert.True(t, s.Revoked)
	assert.Equal(t, RevokedIdleTimeout, s.RevocationReason)

	_, err = e.auth.ValidateSession(ctx, token)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestValidateSessionRecordExpiry(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	ctx := context.Background()
	token := e.login(t, "boss@metavr.test", "boss-pw")

	for id, s := range e.sessions.rows {
		s.ExpiresAt = e.clock.Now()
		e.sessions.rows[id] = s
	}
	_, err := e.auth.ValidateSession(ctx, token)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, e.sessions.only(t).Revoked)
}

func TestValidateSessionMissingRecord(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	token := e.login(t, "boss@metavr.test", "boss-pw")
	e.sessions.rows = map[string]model.SessionRecord{}

	_, err := e.auth.ValidateSession(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionRecordMissing)
}

func TestValidateSessionTouchInterval(t *testing.T) {
	e := newEnv(t, AuthConfig{TouchInterval: 10 * time.Minute})
	seedStaff(t, e)
	ctx := context.Background()
	token := e.login(t, "boss@metavr.test", "boss-pw")
	created := e.sessions.only(t).LastAccessAt

	e.clock.Advance(time.Minute)
	_, err := e.auth.ValidateSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created, e.sessions.only(t).LastAccessAt)

	e.clock.Advance(10 * time.Minute)
	_, err = e.auth.ValidateSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, e.clock.Now(), e.sessions.only(t).LastAccessAt)
}

func TestLogoutIsIdempotent(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	ctx := context.Background()
	token := e.login(t, "boss@metavr.test", "boss-pw")

	require.NoError(t, e.auth.Logout(ctx, ""))
	require.NoError(t, e.auth.Logout(ctx, "garbage"))
	require.NoError(t, e.auth.Logout(ctx, token))
	require.NoError(t, e.auth.Logout(ctx, token))

	s := e.sessions.only(t)
	assert.True(t, s.Revoked)
	assert.Equal(t, RevokedLogout, s.RevocationReason)

	_, err := e.auth.ValidateSession(ctx, token)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}
