package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/metavr/access-service/internal/model"
)

const principalColumns = "p.id, p.email, p.name, p.phone, p.role, p.status, p.password_hash, p.assigned_applications, p.last_login_at, p.created_at, p.updated_at"

// PrincipalRepo persists principals in the `principals` table and their
// per-application state in `access_codes` and `app_access`.
type PrincipalRepo struct{ DB *sql.DB }

func NewPrincipalRepo(db *sql.DB) *PrincipalRepo { return &PrincipalRepo{DB: db} }

// Create inserts p together with its access codes and access grants.
func (r *PrincipalRepo) Create(ctx context.Context, p model.Principal) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		assigned, err := encodeAssigned(p.AssignedApplications)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO principals (id, email, name, phone, role, status, password_hash, assigned_applications, created_at, updated_at)
			 VALUES (?,?,?,?,?,?,?,?,?,?)`,
			p.ID, strings.ToLower(strings.TrimSpace(p.Email)), p.Name, p.Phone, string(p.Role), string(p.Status),
			p.PasswordHash, assigned, p.CreatedAt.UTC(), p.UpdatedAt.UTC()); err != nil {
			return err
		}
		return writeChildren(ctx, tx, p)
	})
}

// GetByID fetches a principal and its children by id.
func (r *PrincipalRepo) GetByID(ctx context.Context, id string) (model.Principal, error) {
	return r.getOne(ctx, r.DB,
		"SELECT "+principalColumns+" FROM principals p WHERE p.id=? LIMIT 1", id)
}

// FindByEmail fetches the oldest principal with the given email and role.
// An empty role matches any role.
func (r *PrincipalRepo) FindByEmail(ctx context.Context, email string, role model.Role) (model.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		return r.getOne(ctx, r.DB,
			"SELECT "+principalColumns+" FROM principals p WHERE p.email=? ORDER BY p.created_at LIMIT 1", email)
	}
	return r.getOne(ctx, r.DB,
		"SELECT "+principalColumns+" FROM principals p WHERE p.email=? AND p.role=? ORDER BY p.created_at LIMIT 1",
		email, string(role))
}

// FindByAccessCode returns the first principal of role holding code for appKey.
func (r *PrincipalRepo) FindByAccessCode(ctx context.Context, role model.Role, appKey, code string) (model.Principal, error) {
	return r.getOne(ctx, r.DB,
		`SELECT `+principalColumns+` FROM principals p
		 JOIN access_codes c ON c.principal_id = p.id
		 WHERE p.role=? AND c.app_key=? AND c.code=?
		 ORDER BY p.created_at LIMIT 1`,
		string(role), appKey, code)
}

// ListByRole returns every principal of role with its children loaded.
func (r *PrincipalRepo) ListByRole(ctx context.Context, role model.Role) ([]model.Principal, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+principalColumns+" FROM principals p WHERE p.role=? ORDER BY p.created_at", string(role))
	if err != nil {
		return nil, err
	}
	var out []model.Principal
	index := map[string]int{}
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	codeRows, err := r.DB.QueryContext(ctx,
		`SELECT c.principal_id, c.app_key, c.code, c.app_id, c.app_name, c.app_path, c.created_at, c.updated_at
		 FROM access_codes c JOIN principals p ON p.id = c.principal_id WHERE p.role=?`, string(role))
	if err != nil {
		return nil, err
	}
	err = eachCode(codeRows, func(owner string, e model.AccessCodeEntry) {
		if i, ok := index[owner]; ok {
			out[i].AccessCodes[e.AppKey] = e
		}
	})
	if err != nil {
		return nil, err
	}

	accessRows, err := r.DB.QueryContext(ctx,
		`SELECT a.principal_id, a.app_key, a.approved, a.enabled, a.supervisor_id
		 FROM app_access a JOIN principals p ON p.id = a.principal_id WHERE p.role=?`, string(role))
	if err != nil {
		return nil, err
	}
	err = eachAccess(accessRows, func(owner, key string, a model.AppAccess) {
		if i, ok := index[owner]; ok {
			out[i].Access[key] = a
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordLogin stamps last_login_at.
func (r *PrincipalRepo) RecordLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE principals SET last_login_at=? WHERE id=?", at.UTC(), id)
	return err
}

// Mutate loads the principal under a row lock, hands it to fn and writes
// back whatever fn changed, all inside one transaction. fn may return an
// error to abort without writing. Deadlocks and lock wait timeouts surface
// as ErrConflict so callers can retry.
func (r *PrincipalRepo) Mutate(ctx context.Context, id string, fn func(p *model.Principal) error) (model.Principal, error) {
	var out model.Principal
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		out, err = r.mutate(ctx, tx, id, fn)
		return err
	})
	if err != nil {
		return model.Principal{}, err
	}
	return out, nil
}

// MutateReviewed applies rv to its access request and fn to principal id in
// the same transaction, so a review is never recorded without the grant
// that goes with it. It fails with ErrNotPending, writing nothing, when the
// request was already reviewed.
func (r *PrincipalRepo) MutateReviewed(ctx context.Context, id string, rv model.RequestReview, fn func(p *model.Principal) error) (model.Principal, error) {
	var out model.Principal
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		ok, err := reviewRequest(ctx, tx, rv)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPending
		}
		out, err = r.mutate(ctx, tx, id, fn)
		return err
	})
	if err != nil {
		return model.Principal{}, err
	}
	return out, nil
}

func (r *PrincipalRepo) mutate(ctx context.Context, tx *sql.Tx, id string, fn func(p *model.Principal) error) (model.Principal, error) {
	p, err := r.getOne(ctx, tx,
		"SELECT "+principalColumns+" FROM principals p WHERE p.id=? LIMIT 1 FOR UPDATE", id)
	if err != nil {
		return model.Principal{}, err
	}
	if err := fn(&p); err != nil {
		return model.Principal{}, err
	}
	assigned, err := encodeAssigned(p.AssignedApplications)
	if err != nil {
		return model.Principal{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE principals SET name=?, phone=?, status=?, password_hash=?, assigned_applications=?, updated_at=?
		 WHERE id=?`,
		p.Name, p.Phone, string(p.Status), p.PasswordHash, assigned, p.UpdatedAt.UTC(), p.ID); err != nil {
		return model.Principal{}, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM access_codes WHERE principal_id=?", p.ID); err != nil {
		return model.Principal{}, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM app_access WHERE principal_id=?", p.ID); err != nil {
		return model.Principal{}, err
	}
	if err := writeChildren(ctx, tx, p); err != nil {
		return model.Principal{}, err
	}
	return p, nil
}

func (r *PrincipalRepo) getOne(ctx context.Context, q querier, query string, args ...any) (model.Principal, error) {
	p, err := scanPrincipal(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return model.Principal{}, translate(err)
	}
	if err := loadChildren(ctx, q, &p); err != nil {
		return model.Principal{}, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (model.Principal, error) {
	var (
		p         model.Principal
		role      string
		status    string
		assigned  []byte
		lastLogin sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Phone, &role, &status, &p.PasswordHash,
		&assigned, &lastLogin, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Principal{}, err
	}
	p.Role = model.Role(role)
	p.Status = model.Status(status)
	p.LastLoginAt = timePtr(lastLogin)
	if len(assigned) > 0 {
		if err := json.Unmarshal(assigned, &p.AssignedApplications); err != nil {
			return model.Principal{}, fmt.Errorf("decode assigned_applications for %s: %w", p.ID, err)
		}
	}
	p.AccessCodes = map[string]model.AccessCodeEntry{}
	p.Access = map[string]model.AppAccess{}
	return p, nil
}

func loadChildren(ctx context.Context, q querier, p *model.Principal) error {
	rows, err := q.QueryContext(ctx,
		`SELECT principal_id, app_key, code, app_id, app_name, app_path, created_at, updated_at
		 FROM access_codes WHERE principal_id=?`, p.ID)
	if err != nil {
		return err
	}
	if err := eachCode(rows, func(_ string, e model.AccessCodeEntry) { p.AccessCodes[e.AppKey] = e }); err != nil {
		return err
	}
	rows, err = q.QueryContext(ctx,
		"SELECT principal_id, app_key, approved, enabled, supervisor_id FROM app_access WHERE principal_id=?", p.ID)
	if err != nil {
		return err
	}
	return eachAccess(rows, func(_, key string, a model.AppAccess) { p.Access[key] = a })
}

func eachCode(rows *sql.Rows, fn func(owner string, e model.AccessCodeEntry)) error {
	defer rows.Close()
	for rows.Next() {
		var (
			owner string
			e     model.AccessCodeEntry
		)
		if err := rows.Scan(&owner, &e.AppKey, &e.Code, &e.AppID, &e.AppName, &e.AppPath, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return err
		}
		fn(owner, e)
	}
	return rows.Err()
}

func eachAccess(rows *sql.Rows, fn func(owner, key string, a model.AppAccess)) error {
	defer rows.Close()
	for rows.Next() {
		var (
			owner, key string
			a          model.AppAccess
		)
		if err := rows.Scan(&owner, &key, &a.Approved, &a.Enabled, &a.SupervisorID); err != nil {
			return err
		}
		fn(owner, key, a)
	}
	return rows.Err()
}

func writeChildren(ctx context.Context, tx *sql.Tx, p model.Principal) error {
	for _, key := range slices.Sorted(maps.Keys(p.AccessCodes)) {
		e := p.AccessCodes[key]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO access_codes (principal_id, app_key, code, app_id, app_name, app_path, created_at, updated_at)
			 VALUES (?,?,?,?,?,?,?,?)`,
			p.ID, key, e.Code, e.AppID, e.AppName, e.AppPath, e.CreatedAt.UTC(), e.UpdatedAt.UTC()); err != nil {
			return err
		}
	}
	for _, key := range slices.Sorted(maps.Keys(p.Access)) {
		a := p.Access[key]
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO app_access (principal_id, app_key, approved, enabled, supervisor_id) VALUES (?,?,?,?,?)",
			p.ID, key, a.Approved, a.Enabled, a.SupervisorID); err != nil {
			return err
		}
	}
	return nil
}

func encodeAssigned(ids []string) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
