package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/model"
	redisclient "github.com/guardianview/monitor-server-go/internal/redis"
	"github.com/guardianview/monitor-server-go/internal/repository"
	"github.com/guardianview/monitor-server-go/internal/util"
)

// IngestService accepts telemetry posted by child devices. Rows in the live
// categories are also published as change events so attached monitoring
// sessions see them immediately; publish failures are logged but never fail
// the ingest, the row is already durable.
type IngestService struct {
	deviceRepo    repository.DeviceRepository
	telemetryRepo repository.TelemetryRepository
	redis         *redisclient.Client
	encryptionKey string
}

func NewIngestService(
	deviceRepo repository.DeviceRepository,
	telemetryRepo repository.TelemetryRepository,
	redis *redisclient.Client,
	encryptionKey string,
) *IngestService {
	return &IngestService{
		deviceRepo:    deviceRepo,
		telemetryRepo: telemetryRepo,
		redis:         redis,
		encryptionKey: encryptionKey,
	}
}

func (s *IngestService) RecordLocation(ctx context.Context, loc model.Location) (*model.Location, error) {
	if err := s.checkDevice(ctx, loc.DeviceID); err != nil {
		return nil, err
	}
	out, err := s.telemetryRepo.InsertLocation(ctx, loc)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("insert location: %w", err))
	}
	s.publish(ctx, model.CategoryLocation, out.DeviceID, out)
	return out, nil
}

func (s *IngestService) RecordAudioClip(ctx context.Context, clip model.AudioClip) (*model.AudioClip, error) {
	if err := s.checkDevice(ctx, clip.DeviceID); err != nil {
		return nil, err
	}
	out, err := s.telemetryRepo.InsertAudioClip(ctx, clip)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("insert audio clip: %w", err))
	}
	s.publish(ctx, model.CategoryAudioClip, out.DeviceID, out)
	return out, nil
}

func (s *IngestService) RecordNotification(ctx context.Context, n model.Notification) (*model.Notification, error) {
	if err := s.checkDevice(ctx, n.DeviceID); err != nil {
		return nil, err
	}
	out, err := s.telemetryRepo.InsertNotification(ctx, n)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("insert notification: %w", err))
	}
	s.publish(ctx, model.CategoryNotification, out.DeviceID, out)
	return out, nil
}

// RecordKeystrokes is keyed by child id and has no live channel. The content
// preview is encrypted at rest when a key is configured.
func (s *IngestService) RecordKeystrokes(ctx context.Context, ev model.KeystrokeEvent) (*model.KeystrokeEvent, error) {
	if ev.ChildID == "" {
		return nil, apperrors.MissingRequired("childId")
	}
	if s.encryptionKey != "" && ev.ContentPreview != nil {
		sealed, err := util.Encrypt(s.encryptionKey, *ev.ContentPreview)
		if err != nil {
			return nil, apperrors.Internal("encrypt content preview").WithCause(err)
		}
		ev.ContentPreview = &sealed
	}
	out, err := s.telemetryRepo.InsertKeystrokeEvent(ctx, ev)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("insert keystroke event: %w", err))
	}
	return out, nil
}

func (s *IngestService) checkDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return apperrors.MissingRequired("deviceId")
	}
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return apperrors.Database(fmt.Errorf("find device: %w", err))
	}
	if device == nil {
		return apperrors.NotFound("Device")
	}
	if err := s.deviceRepo.TouchLastSeen(ctx, deviceID); err != nil {
		log.Warn().Err(err).Str("deviceId", deviceID).Msg("touch last_seen failed")
	}
	return nil
}

func (s *IngestService) publish(ctx context.Context, category model.Category, deviceID string, payload any) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("category", string(category)).Msg("marshal change event payload")
		return
	}
	event, err := json.Marshal(model.ChangeEvent{
		Category: category,
		DeviceID: deviceID,
		Payload:  raw,
	})
	if err != nil {
		log.Error().Err(err).Str("category", string(category)).Msg("marshal change event")
		return
	}

	channel := redisclient.TelemetryChannel(string(category), deviceID)
	if err := s.redis.Publish(ctx, channel, event).Err(); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("publish change event failed")
	}
}
