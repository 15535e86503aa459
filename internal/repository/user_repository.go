package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-programs-api/internal/models"
)

// UserRepository reads the local user directory mirrored from the identity provider.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindNamesByIDs resolves display names for a batch of user ids in one query.
// Ids without a directory row are omitted from the result.
func (r *UserRepository) FindNamesByIDs(ctx context.Context, ids []string) ([]models.UserName, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, full_name FROM users WHERE id = ANY($1) AND full_name <> ''`
	var names []models.UserName
	if err := r.db.SelectContext(ctx, &names, query, pq.StringArray(ids)); err != nil {
		return nil, writeError("find user names", err)
	}
	return names, nil
}
