package model

import "time"

type Session struct {
	ID        string    `db:"id" json:"id"`
	TokenHash string    `db:"token_hash" json:"-"`
	ParentID  string    `db:"parent_id" json:"parentId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateSessionParams struct {
	ID        string
	TokenHash string
	ParentID  string
	ExpiresAt time.Time
}
