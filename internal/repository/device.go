package repository

import (
	"context"
	"time"

	"github.com/guardianview/monitor-server-go/internal/database"
	"github.com/guardianview/monitor-server-go/internal/model"
)

type DeviceRepository interface {
	FindByID(ctx context.Context, id string) (*model.Device, error)
	FindByChildID(ctx context.Context, childID string) (*model.Device, error)
	Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error)
	TouchLastSeen(ctx context.Context, id string) error
}

type deviceRepo struct {
	db database.DBTX
}

func NewDeviceRepository(db database.DBTX) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	var d model.Device
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM devices WHERE id = $1
	`, id)
	return HandleNotFound(&d, err)
}

// FindByChildID resolves the child's current device. A child has at most one
// active device; the newest row wins if provisioning ever left more than one.
func (r *deviceRepo) FindByChildID(ctx context.Context, childID string) (*model.Device, error) {
	var d model.Device
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM devices
		WHERE child_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, childID)
	return HandleNotFound(&d, err)
}

func (r *deviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	var d model.Device
	err := r.db.GetContext(ctx, &d, `
		INSERT INTO devices (id, child_id, device_name, device_model, platform, last_seen)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING *
	`, params.ID, params.ChildID, params.DeviceName, params.DeviceModel, params.Platform)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deviceRepo) TouchLastSeen(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET last_seen = $2 WHERE id = $1
	`, id, time.Now())
	return err
}
