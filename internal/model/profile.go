package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

type UserProfile struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Role         Role      `db:"role" json:"role"`
	FullName     *string   `db:"full_name" json:"fullName,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateProfileParams struct {
	ID           string
	Email        string
	Role         Role
	FullName     *string
	PasswordHash string
}
