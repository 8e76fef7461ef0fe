package model

import "time"

// Category identifies one independent telemetry record kind.
type Category string

const (
	CategoryLocation       Category = "locations"
	CategoryAudioClip      Category = "audio_clips"
	CategoryCallRecording  Category = "call_recordings"
	CategoryNotification   Category = "notifications"
	CategoryKeystroke      Category = "keylogger_data"
	CategorySystemActivity Category = "system_activity"
	CategoryAppUsage       Category = "app_usage"
	CategoryMediaItem      Category = "media_items"
)

// Categories keyed by device id versus child id. Keystroke and system-activity
// rows key on the child directly; everything else keys on the device.
var DeviceKeyedCategories = []Category{
	CategoryLocation, CategoryAudioClip, CategoryCallRecording,
	CategoryNotification, CategoryAppUsage, CategoryMediaItem,
}

type Location struct {
	ID         int64     `db:"id" json:"id"`
	DeviceID   string    `db:"device_id" json:"deviceId"`
	Lat        float64   `db:"lat" json:"lat"`
	Lng        float64   `db:"lng" json:"lng"`
	Accuracy   float64   `db:"accuracy" json:"accuracy"`
	RecordedAt time.Time `db:"recorded_at" json:"recordedAt"`
}

type AudioClip struct {
	ID         int64     `db:"id" json:"id"`
	DeviceID   string    `db:"device_id" json:"deviceId"`
	Path       string    `db:"path" json:"path"`
	DurationS  float64   `db:"duration_s" json:"durationS"`
	RecordedAt time.Time `db:"recorded_at" json:"recordedAt"`
}

type CallRecording struct {
	ID              int64     `db:"id" json:"id"`
	DeviceID        string    `db:"device_id" json:"deviceId"`
	PhoneNumber     string    `db:"phone_number" json:"phoneNumber"`
	CallType        string    `db:"call_type" json:"callType"`
	StartTime       time.Time `db:"start_time" json:"startTime"`
	EndTime         time.Time `db:"end_time" json:"endTime"`
	RecordingPath   *string   `db:"recording_path" json:"recordingPath,omitempty"`
	DurationSeconds int       `db:"duration_seconds" json:"durationSeconds"`
}

type Notification struct {
	ID         int64     `db:"id" json:"id"`
	DeviceID   string    `db:"device_id" json:"deviceId"`
	App        string    `db:"app" json:"app"`
	Title      string    `db:"title" json:"title"`
	Body       string    `db:"body" json:"body"`
	ReceivedAt time.Time `db:"received_at" json:"receivedAt"`
}

type KeystrokeEvent struct {
	ID              int64     `db:"id" json:"id"`
	ChildID         string    `db:"child_id" json:"childId"`
	Timestamp       time.Time `db:"timestamp" json:"timestamp"`
	ActivityType    string    `db:"activity_type" json:"activityType"`
	AppName         *string   `db:"app_name" json:"appName,omitempty"`
	ContentPreview  *string   `db:"content_preview" json:"contentPreview,omitempty"`
	InputMethod     *string   `db:"input_method" json:"inputMethod,omitempty"`
	SessionDuration *int      `db:"session_duration" json:"sessionDuration,omitempty"`
}

type SystemActivity struct {
	ID           int64     `db:"id" json:"id"`
	ChildID      string    `db:"child_id" json:"childId"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
	ProcessName  string    `db:"process_name" json:"processName"`
	PackageName  *string   `db:"package_name" json:"packageName,omitempty"`
	ActivityType string    `db:"activity_type" json:"activityType"`
	Duration     *int      `db:"duration" json:"duration,omitempty"`
}

type AppUsage struct {
	ID                   int64     `db:"id" json:"id"`
	DeviceID             string    `db:"device_id" json:"deviceId"`
	AppName              string    `db:"app_name" json:"appName"`
	PackageName          string    `db:"package_name" json:"packageName"`
	UsageDurationSeconds int       `db:"usage_duration_seconds" json:"usageDurationSeconds"`
	RecordedAt           time.Time `db:"recorded_at" json:"recordedAt"`
}

type MediaItem struct {
	ID       int64     `db:"id" json:"id"`
	DeviceID string    `db:"device_id" json:"deviceId"`
	Kind     string    `db:"kind" json:"kind"`
	Path     string    `db:"path" json:"path"`
	TakenAt  time.Time `db:"taken_at" json:"takenAt"`
}

// ChildBundle is the aggregate result of one bulk fetch: one descending-ordered
// slice per category. Degraded names the categories whose reads failed and were
// replaced with an empty slice; callers render them as empty but can tell the
// difference.
type ChildBundle struct {
	Locations      []Location       `json:"locations"`
	AudioClips     []AudioClip      `json:"audioClips"`
	CallRecordings []CallRecording  `json:"callRecordings"`
	Notifications  []Notification   `json:"notifications"`
	KeystrokeData  []KeystrokeEvent `json:"keystrokeData"`
	SystemActivity []SystemActivity `json:"systemActivity"`
	AppUsage       []AppUsage       `json:"appUsage"`
	MediaItems     []MediaItem      `json:"mediaItems"`

	Degraded []Category `json:"degraded,omitempty"`
}

// HasData reports whether any category holds at least one record.
func (b *ChildBundle) HasData() bool {
	return len(b.Locations) > 0 ||
		len(b.AudioClips) > 0 ||
		len(b.CallRecordings) > 0 ||
		len(b.Notifications) > 0 ||
		len(b.KeystrokeData) > 0 ||
		len(b.SystemActivity) > 0 ||
		len(b.AppUsage) > 0 ||
		len(b.MediaItems) > 0
}

// IsDegraded reports whether the given category's read failed during the fetch.
func (b *ChildBundle) IsDegraded(c Category) bool {
	for _, d := range b.Degraded {
		if d == c {
			return true
		}
	}
	return false
}
