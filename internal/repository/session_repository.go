package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/metavr/access-service/internal/model"
)

// SessionRepo persists session records in the `sessions` table.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, s model.SessionRecord) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, email, role, remember_me, expires_at, revoked, last_access_at, created_at)
		 VALUES (?,?,?,?,?,?,0,?,?)`,
		s.ID, s.UserID, s.Email, string(s.Role), s.RememberMe, s.ExpiresAt.UTC(), s.LastAccessAt.UTC(), s.CreatedAt.UTC())
	return translate(err)
}

// Get fetches a session by id. ErrNotFound when missing.
func (r *SessionRepo) Get(ctx context.Context, id string) (model.SessionRecord, error) {
	var (
		s         model.SessionRecord
		role      string
		revokedAt sql.NullTime
		reason    sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, email, role, remember_me, expires_at, revoked, revoked_at, revocation_reason, last_access_at, created_at
		 FROM sessions WHERE id=? LIMIT 1`, id).
		Scan(&s.ID, &s.UserID, &s.Email, &role, &s.RememberMe, &s.ExpiresAt, &s.Revoked, &revokedAt, &reason, &s.LastAccessAt, &s.CreatedAt)
	if err != nil {
		return model.SessionRecord{}, translate(err)
	}
	s.Role = model.Role(role)
	s.RevokedAt = timePtr(revokedAt)
	s.RevocationReason = reason.String
	return s, nil
}

// Touch moves last_access_at forward to at. Revoked sessions and older
// timestamps are left untouched.
func (r *SessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET last_access_at=? WHERE id=? AND revoked=0 AND last_access_at < ?",
		at.UTC(), id, at.UTC())
	return translate(err)
}

// Revoke marks a session revoked with reason. It reports whether this call
// performed the transition; revoking twice is not an error.
func (r *SessionRepo) Revoke(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked=1, revoked_at=?, revocation_reason=? WHERE id=? AND revoked=0",
		at.UTC(), reason, id)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
