package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/metavr/access-service/internal/model"
)

// AccessRequestRepo persists user access requests in `access_requests`.
type AccessRequestRepo struct{ DB *sql.DB }

func NewAccessRequestRepo(db *sql.DB) *AccessRequestRepo { return &AccessRequestRepo{DB: db} }

const accessRequestColumns = "id, email, name, phone, app_id, app_key, app_path, app_name, status, requested_at, reviewed_at, reviewed_by, rejection_reason"

// Create inserts a pending request.
func (r *AccessRequestRepo) Create(ctx context.Context, req model.AccessRequest) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO access_requests (id, email, name, phone, app_id, app_key, app_path, app_name, status, requested_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		req.ID, req.Email, req.Name, req.Phone, req.AppID, req.AppKey, req.AppPath, req.AppName,
		string(req.Status), req.RequestedAt.UTC())
	return translate(err)
}

// GetByID fetches a request by id.
func (r *AccessRequestRepo) GetByID(ctx context.Context, id string) (model.AccessRequest, error) {
	req, err := scanAccessRequest(r.DB.QueryRowContext(ctx,
		"SELECT "+accessRequestColumns+" FROM access_requests WHERE id=? LIMIT 1", id))
	if err != nil {
		return model.AccessRequest{}, translate(err)
	}
	return req, nil
}

// HasPending reports whether email already has a pending request for appID.
func (r *AccessRequestRepo) HasPending(ctx context.Context, email, appID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM access_requests WHERE email=? AND app_id=? AND status='pending'",
		email, appID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListPending returns every pending request, oldest first.
func (r *AccessRequestRepo) ListPending(ctx context.Context) ([]model.AccessRequest, error) {
	return r.list(ctx,
		"SELECT "+accessRequestColumns+" FROM access_requests WHERE status='pending' ORDER BY requested_at")
}

// ListRecent returns up to limit requests, newest first.
func (r *AccessRequestRepo) ListRecent(ctx context.Context, limit int) ([]model.AccessRequest, error) {
	return r.list(ctx,
		"SELECT "+accessRequestColumns+" FROM access_requests ORDER BY requested_at DESC LIMIT ?", limit)
}

// LatestApprovedReviewer returns the reviewer of the most recently approved
// request for email and appKey, or "" when there is none.
func (r *AccessRequestRepo) LatestApprovedReviewer(ctx context.Context, email, appKey string) (string, error) {
	var reviewer sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT reviewed_by FROM access_requests
		 WHERE email=? AND app_key=? AND status='approved'
		 ORDER BY reviewed_at DESC LIMIT 1`, email, appKey).Scan(&reviewer)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return reviewer.String, nil
}

// Review moves a pending request to status. It reports false when the
// request was no longer pending, so each request is reviewed at most once.
func (r *AccessRequestRepo) Review(ctx context.Context, id string, status model.RequestStatus, reviewer, reason string, at time.Time) (bool, error) {
	return reviewRequest(ctx, r.DB, model.RequestReview{RequestID: id, Status: status, Reviewer: reviewer, Reason: reason, At: at})
}

func reviewRequest(ctx context.Context, q querier, rv model.RequestReview) (bool, error) {
	var rejection any
	if rv.Reason != "" {
		rejection = rv.Reason
	}
	res, err := q.ExecContext(ctx,
		`UPDATE access_requests SET status=?, reviewed_at=?, reviewed_by=?, rejection_reason=?
		 WHERE id=? AND status='pending'`,
		string(rv.Status), rv.At.UTC(), rv.Reviewer, rejection, rv.RequestID)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *AccessRequestRepo) list(ctx context.Context, query string, args ...any) ([]model.AccessRequest, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AccessRequest
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanAccessRequest(row rowScanner) (model.AccessRequest, error) {
	var (
		req        model.AccessRequest
		status     string
		reviewedAt sql.NullTime
		reviewedBy sql.NullString
		reason     sql.NullString
	)
	if err := row.Scan(&req.ID, &req.Email, &req.Name, &req.Phone, &req.AppID, &req.AppKey, &req.AppPath,
		&req.AppName, &status, &req.RequestedAt, &reviewedAt, &reviewedBy, &reason); err != nil {
		return model.AccessRequest{}, err
	}
	req.Status = model.RequestStatus(status)
	req.ReviewedAt = timePtr(reviewedAt)
	req.ReviewedBy = reviewedBy.String
	req.RejectionReason = reason.String
	return req, nil
}
