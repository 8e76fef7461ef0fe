package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/guardianview/monitor-server-go/internal/database"
	"github.com/guardianview/monitor-server-go/internal/model"
)

type LinkingCodeRepository interface {
	Create(ctx context.Context, params model.CreateLinkingCodeParams) (*model.LinkingCode, error)
	FindRedeemableForUpdate(ctx context.Context, code string) (*model.LinkingCode, error)
	MarkUsed(ctx context.Context, id string) error
	CountActiveByParentID(ctx context.Context, parentID string) (int, error)
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a repository bound to the given transaction
	WithTx(tx *sqlx.Tx) LinkingCodeRepository
}

type linkingCodeRepo struct {
	db database.DBTX
}

func NewLinkingCodeRepository(db database.DBTX) LinkingCodeRepository {
	return &linkingCodeRepo{db: db}
}

func (r *linkingCodeRepo) WithTx(tx *sqlx.Tx) LinkingCodeRepository {
	return &linkingCodeRepo{db: tx}
}

func (r *linkingCodeRepo) Create(ctx context.Context, params model.CreateLinkingCodeParams) (*model.LinkingCode, error) {
	var lc model.LinkingCode
	err := r.db.GetContext(ctx, &lc, `
		INSERT INTO linking_codes (id, parent_id, code, expires_at, is_used)
		VALUES ($1, $2, $3, $4, false)
		RETURNING *
	`, params.ID, params.ParentID, params.Code, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &lc, nil
}

// FindRedeemableForUpdate locks the matching row for the duration of the
// enclosing transaction so a concurrent redeem of the same code serializes
// behind it and then fails the is_used predicate.
func (r *linkingCodeRepo) FindRedeemableForUpdate(ctx context.Context, code string) (*model.LinkingCode, error) {
	var lc model.LinkingCode
	err := r.db.GetContext(ctx, &lc, `
		SELECT * FROM linking_codes
		WHERE code = $1 AND is_used = false AND expires_at > NOW()
		FOR UPDATE
	`, code)
	return HandleNotFound(&lc, err)
}

func (r *linkingCodeRepo) MarkUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE linking_codes SET
			is_used = true,
			used_at = $2
		WHERE id = $1
	`, id, time.Now())
	return err
}

func (r *linkingCodeRepo) CountActiveByParentID(ctx context.Context, parentID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM linking_codes
		WHERE parent_id = $1 AND is_used = false AND expires_at > NOW()
	`, parentID)
	return count, err
}

func (r *linkingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM linking_codes
		WHERE expires_at < NOW() OR is_used = true
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
