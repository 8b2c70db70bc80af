package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/metavr/access-service/internal/model"
)

// HandshakeRepo persists single-use handshake records in `handshakes`.
// Rows are never deleted.
type HandshakeRepo struct{ DB *sql.DB }

func NewHandshakeRepo(db *sql.DB) *HandshakeRepo { return &HandshakeRepo{DB: db} }

// Create inserts an unused handshake row.
func (r *HandshakeRepo) Create(ctx context.Context, h model.HandshakeRecord) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO handshakes (id, user_id, remember_me, expires_at, used, created_at) VALUES (?,?,?,?,0,?)",
		h.ID, h.UserID, h.RememberMe, h.ExpiresAt.UTC(), h.CreatedAt.UTC())
	return translate(err)
}

// Get fetches a handshake by id. ErrNotFound when missing.
func (r *HandshakeRepo) Get(ctx context.Context, id string) (model.HandshakeRecord, error) {
	var (
		h      model.HandshakeRecord
		usedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, remember_me, expires_at, used, created_at, used_at FROM handshakes WHERE id=? LIMIT 1", id).
		Scan(&h.ID, &h.UserID, &h.RememberMe, &h.ExpiresAt, &h.Used, &h.CreatedAt, &usedAt)
	if err != nil {
		return model.HandshakeRecord{}, translate(err)
	}
	h.UsedAt = timePtr(usedAt)
	return h, nil
}

// MarkUsed flips used to true with a single conditional update. Exactly one
// concurrent caller observes true; every other caller gets false.
func (r *HandshakeRepo) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE handshakes SET used=1, used_at=? WHERE id=? AND used=0", at.UTC(), id)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
