package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/digital-library/internal/model"
)

// ResourceRepo reads the catalog fields the entitlement core needs: the
// access tier and the stored download link. Full catalog CRUD lives in the
// admin console, not here.
type ResourceRepo struct{ DB *sql.DB }

func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{DB: db} }

// GetByID fetches a resource by id.
func (r *ResourceRepo) GetByID(ctx context.Context, id uint64) (model.Resource, error) {
	var res model.Resource
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,title,tier,download_url,created_at FROM resources WHERE id=? LIMIT 1",
		id).Scan(&res.ID, &res.Title, &res.Tier, &res.DownloadURL, &res.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Resource{}, ErrNotFound
	}
	if err != nil {
		return model.Resource{}, err
	}
	return res, nil
}
