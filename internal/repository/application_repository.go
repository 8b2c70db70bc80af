package repository

import (
	"context"
	"database/sql"

	"github.com/metavr/access-service/internal/model"
)

// ApplicationRepo reads the `applications` lookup table.
type ApplicationRepo struct{ DB *sql.DB }

func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{DB: db} }

const applicationColumns = "id, name, path, app_key, status"

// GetByID fetches an application by store id.
func (r *ApplicationRepo) GetByID(ctx context.Context, id string) (model.Application, error) {
	return r.one(ctx, "SELECT "+applicationColumns+" FROM applications WHERE id=? LIMIT 1", id)
}

// FindByPath fetches the first application whose path equals path exactly.
func (r *ApplicationRepo) FindByPath(ctx context.Context, path string) (model.Application, error) {
	return r.one(ctx, "SELECT "+applicationColumns+" FROM applications WHERE path=? ORDER BY id LIMIT 1", path)
}

// FindByAppKey fetches the first application with the given app_key.
func (r *ApplicationRepo) FindByAppKey(ctx context.Context, appKey string) (model.Application, error) {
	return r.one(ctx, "SELECT "+applicationColumns+" FROM applications WHERE app_key=? ORDER BY id LIMIT 1", appKey)
}

// List returns all applications ordered by id.
func (r *ApplicationRepo) List(ctx context.Context) ([]model.Application, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+applicationColumns+" FROM applications ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ApplicationRepo) one(ctx context.Context, query string, args ...any) (model.Application, error) {
	a, err := scanApplication(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return model.Application{}, translate(err)
	}
	return a, nil
}

func scanApplication(row rowScanner) (model.Application, error) {
	var (
		a      model.Application
		appKey sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Path, &appKey, &a.Status); err != nil {
		return model.Application{}, err
	}
	a.AppKey = appKey.String
	return a, nil
}
