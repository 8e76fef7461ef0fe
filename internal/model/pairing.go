package model

import "time"

// LinkingCode is redeemable iff is_used=false and expires_at is in the future.
// Once redeemed it is terminal.
type LinkingCode struct {
	ID        string     `db:"id" json:"id"`
	ParentID  string     `db:"parent_id" json:"parentId"`
	Code      string     `db:"code" json:"code"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	IsUsed    bool       `db:"is_used" json:"isUsed"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

type CreateLinkingCodeParams struct {
	ID        string
	ParentID  string
	Code      string
	ExpiresAt time.Time
}
