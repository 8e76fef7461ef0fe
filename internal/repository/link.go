package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/guardianview/monitor-server-go/internal/database"
	"github.com/guardianview/monitor-server-go/internal/model"
)

type LinkRepository interface {
	Create(ctx context.Context, params model.CreateLinkParams) (*model.ParentChildLink, error)
	FindActiveChildren(ctx context.Context, parentID string) ([]model.UserProfile, error)
	FindActiveByPair(ctx context.Context, parentID, childID string) (*model.ParentChildLink, error)
	Deactivate(ctx context.Context, parentID, childID string) (int64, error)
	// WithTx returns a repository bound to the given transaction
	WithTx(tx *sqlx.Tx) LinkRepository
}

type linkRepo struct {
	db database.DBTX
}

func NewLinkRepository(db database.DBTX) LinkRepository {
	return &linkRepo{db: db}
}

func (r *linkRepo) WithTx(tx *sqlx.Tx) LinkRepository {
	return &linkRepo{db: tx}
}

func (r *linkRepo) Create(ctx context.Context, params model.CreateLinkParams) (*model.ParentChildLink, error) {
	var link model.ParentChildLink
	err := r.db.GetContext(ctx, &link, `
		INSERT INTO parent_child_links (id, parent_id, child_id, linking_code, is_active, linked_at)
		VALUES ($1, $2, $3, $4, true, NOW())
		RETURNING *
	`, params.ID, params.ParentID, params.ChildID, params.LinkingCode)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// FindActiveChildren returns the profiles joined through active links, oldest
// link first so repeat calls without intervening mutation are identical.
func (r *linkRepo) FindActiveChildren(ctx context.Context, parentID string) ([]model.UserProfile, error) {
	var children []model.UserProfile
	err := r.db.SelectContext(ctx, &children, `
		SELECT p.id, p.email, p.role, p.full_name, p.password_hash, p.created_at, p.updated_at
		FROM parent_child_links l
		JOIN user_profiles p ON p.id = l.child_id
		WHERE l.parent_id = $1 AND l.is_active = true
		ORDER BY l.linked_at ASC
	`, parentID)
	return children, err
}

func (r *linkRepo) FindActiveByPair(ctx context.Context, parentID, childID string) (*model.ParentChildLink, error) {
	var link model.ParentChildLink
	err := r.db.GetContext(ctx, &link, `
		SELECT * FROM parent_child_links
		WHERE parent_id = $1 AND child_id = $2 AND is_active = true
		ORDER BY linked_at DESC
		LIMIT 1
	`, parentID, childID)
	return HandleNotFound(&link, err)
}

func (r *linkRepo) Deactivate(ctx context.Context, parentID, childID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE parent_child_links SET
			is_active = false,
			unlinked_at = $3
		WHERE parent_id = $1 AND child_id = $2 AND is_active = true
	`, parentID, childID, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
