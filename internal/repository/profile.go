package repository

import (
	"context"

	"github.com/guardianview/monitor-server-go/internal/database"
	"github.com/guardianview/monitor-server-go/internal/model"
)

type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)
	FindByEmail(ctx context.Context, email string) (*model.UserProfile, error)
	Create(ctx context.Context, params model.CreateProfileParams) (*model.UserProfile, error)
}

type profileRepo struct {
	db database.DBTX
}

func NewProfileRepository(db database.DBTX) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := r.db.GetContext(ctx, &p, `
		SELECT * FROM user_profiles WHERE id = $1
	`, id)
	return HandleNotFound(&p, err)
}

func (r *profileRepo) FindByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := r.db.GetContext(ctx, &p, `
		SELECT * FROM user_profiles WHERE email = $1
	`, email)
	return HandleNotFound(&p, err)
}

func (r *profileRepo) Create(ctx context.Context, params model.CreateProfileParams) (*model.UserProfile, error) {
	var p model.UserProfile
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO user_profiles (id, email, role, full_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ID, params.Email, params.Role, params.FullName, params.PasswordHash)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
