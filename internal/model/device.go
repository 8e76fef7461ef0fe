package model

import "time"

type Device struct {
	ID          string     `db:"id" json:"id"`
	ChildID     string     `db:"child_id" json:"childId"`
	DeviceName  *string    `db:"device_name" json:"deviceName,omitempty"`
	DeviceModel *string    `db:"device_model" json:"deviceModel,omitempty"`
	Platform    *string    `db:"platform" json:"platform,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	LastSeen    *time.Time `db:"last_seen" json:"lastSeen,omitempty"`
}

type CreateDeviceParams struct {
	ID          string
	ChildID     string
	DeviceName  *string
	DeviceModel *string
	Platform    *string
}
