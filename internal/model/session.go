package model

import "time"

// HandshakeRecord models an entry in the `handshakes` table. A record is
// consumed at most once and is never deleted; consumed and expired rows stay
// behind as an audit trail.
type HandshakeRecord struct {
	ID         string     // handshakes.id (uuid, also the token's jti)
	UserID     string     // handshakes.user_id
	RememberMe bool       // handshakes.remember_me
	ExpiresAt  time.Time  // handshakes.expires_at
	Used       bool       // handshakes.used
	CreatedAt  time.Time  // handshakes.created_at
	UsedAt     *time.Time // handshakes.used_at (nullable)
}

// SessionRecord models an entry in the `sessions` table. Revoked never goes
// back to false, and LastAccessAt only moves forward while the session is
// active.
type SessionRecord struct {
	ID               string     // sessions.id (uuid, also the token's jti)
	UserID           string     // sessions.user_id
	Email            string     // sessions.email
	Role             Role       // sessions.role
	RememberMe       bool       // sessions.remember_me
	ExpiresAt        time.Time  // sessions.expires_at
	Revoked          bool       // sessions.revoked
	RevokedAt        *time.Time // sessions.revoked_at (nullable)
	RevocationReason string     // sessions.revocation_reason
	LastAccessAt     time.Time  // sessions.last_access_at
	CreatedAt        time.Time  // sessions.created_at
}
