package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/guardianview/monitor-server-go/internal/database"
	"github.com/guardianview/monitor-server-go/internal/model"
	"github.com/guardianview/monitor-server-go/internal/repository"
)

// fakeTxRunner runs the transaction function directly against a nil
// transaction; the mocked repositories ignore the handle anyway.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type mockLinkingCodeRepo struct {
	mock.Mock
}

func (m *mockLinkingCodeRepo) Create(ctx context.Context, params model.CreateLinkingCodeParams) (*model.LinkingCode, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkingCode), args.Error(1)
}

func (m *mockLinkingCodeRepo) FindRedeemableForUpdate(ctx context.Context, code string) (*model.LinkingCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkingCode), args.Error(1)
}

func (m *mockLinkingCodeRepo) MarkUsed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockLinkingCodeRepo) CountActiveByParentID(ctx context.Context, parentID string) (int, error) {
	args := m.Called(ctx, parentID)
	return args.Int(0), args.Error(1)
}

func (m *mockLinkingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLinkingCodeRepo) WithTx(tx *sqlx.Tx) repository.LinkingCodeRepository {
	return m
}

type mockLinkRepo struct {
	mock.Mock
}

func (m *mockLinkRepo) Create(ctx context.Context, params model.CreateLinkParams) (*model.ParentChildLink, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ParentChildLink), args.Error(1)
}

func (m *mockLinkRepo) FindActiveChildren(ctx context.Context, parentID string) ([]model.UserProfile, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UserProfile), args.Error(1)
}

func (m *mockLinkRepo) FindActiveByPair(ctx context.Context, parentID, childID string) (*model.ParentChildLink, error) {
	args := m.Called(ctx, parentID, childID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ParentChildLink), args.Error(1)
}

func (m *mockLinkRepo) Deactivate(ctx context.Context, parentID, childID string) (int64, error) {
	args := m.Called(ctx, parentID, childID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLinkRepo) WithTx(tx *sqlx.Tx) repository.LinkRepository {
	return m
}

type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) FindByChildID(ctx context.Context, childID string) (*model.Device, error) {
	args := m.Called(ctx, childID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) TouchLastSeen(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockTelemetryRepo struct {
	mock.Mock
}

func (m *mockTelemetryRepo) Locations(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.Location, error) {
	args := m.Called(ctx, deviceID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Location), args.Error(1)
}

func (m *mockTelemetryRepo) AudioClips(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.AudioClip, error) {
	args := m.Called(ctx, deviceID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AudioClip), args.Error(1)
}

func (m *mockTelemetryRepo) CallRecordings(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.CallRecording, error) {
	args := m.Called(ctx, deviceID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CallRecording), args.Error(1)
}

func (m *mockTelemetryRepo) Notifications(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.Notification, error) {
	args := m.Called(ctx, deviceID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Notification), args.Error(1)
}

func (m *mockTelemetryRepo) KeystrokeEvents(ctx context.Context, childID string, since time.Time, limit int) ([]model.KeystrokeEvent, error) {
	args := m.Called(ctx, childID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.KeystrokeEvent), args.Error(1)
}

func (m *mockTelemetryRepo) SystemActivity(ctx context.Context, childID string, since time.Time, limit int) ([]model.SystemActivity, error) {
	args := m.Called(ctx, childID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SystemActivity), args.Error(1)
}

func (m *mockTelemetryRepo) AppUsage(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.AppUsage, error) {
	args := m.Called(ctx, deviceID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AppUsage), args.Error(1)
}

func (m *mockTelemetryRepo) MediaItems(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.MediaItem, error) {
	args := m.Called(ctx, deviceID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MediaItem), args.Error(1)
}

func (m *mockTelemetryRepo) InsertLocation(ctx context.Context, loc model.Location) (*model.Location, error) {
	args := m.Called(ctx, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Location), args.Error(1)
}

func (m *mockTelemetryRepo) InsertAudioClip(ctx context.Context, clip model.AudioClip) (*model.AudioClip, error) {
	args := m.Called(ctx, clip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AudioClip), args.Error(1)
}

func (m *mockTelemetryRepo) InsertNotification(ctx context.Context, n model.Notification) (*model.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

func (m *mockTelemetryRepo) InsertKeystrokeEvent(ctx context.Context, ev model.KeystrokeEvent) (*model.KeystrokeEvent, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.KeystrokeEvent), args.Error(1)
}

func (m *mockTelemetryRepo) CountByCategory(ctx context.Context, category model.Category) (int64, error) {
	args := m.Called(ctx, category)
	return args.Get(0).(int64), args.Error(1)
}

type mockProfileRepo struct {
	mock.Mock
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *mockProfileRepo) FindByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *mockProfileRepo) Create(ctx context.Context, params model.CreateProfileParams) (*model.UserProfile, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
