package model

import "time"

// ParentChildLink records an active supervising relationship. Rows are additive:
// unlinking sets is_active=false and unlinked_at, it never deletes or rewrites
// the original row.
type ParentChildLink struct {
	ID          string     `db:"id" json:"id"`
	ParentID    string     `db:"parent_id" json:"parentId"`
	ChildID     string     `db:"child_id" json:"childId"`
	LinkingCode string     `db:"linking_code" json:"linkingCode"`
	IsActive    bool       `db:"is_active" json:"isActive"`
	LinkedAt    time.Time  `db:"linked_at" json:"linkedAt"`
	UnlinkedAt  *time.Time `db:"unlinked_at" json:"unlinkedAt,omitempty"`
}

type CreateLinkParams struct {
	ID          string
	ParentID    string
	ChildID     string
	LinkingCode string
}
