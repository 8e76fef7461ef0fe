package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/live"
	"github.com/guardianview/monitor-server-go/internal/model"
)

// ViewState is the single signal downstream renderers branch on.
type ViewState string

const (
	ViewNoDeviceLinked ViewState = "no_device_linked"
	ViewLinkedNoData   ViewState = "linked_no_data"
	ViewLinkedWithData ViewState = "linked_with_data"
)

// MonitorSession owns one parent's monitoring view: the linked children, the
// selected child, the active time window, the live-mode flag, the last bulk
// fetch, and the live aggregator. Window or selection changes trigger a fresh
// fetch; toggling live mode attaches or detaches the aggregator.
type MonitorSession struct {
	directory  *DirectoryService
	telemetry  *TelemetryService
	aggregator *live.Aggregator
	parentID   string

	mu       sync.Mutex
	children []model.UserProfile
	selected *model.UserProfile
	window   string
	liveMode bool
	bundle   *model.ChildBundle
	noDevice bool
}

func NewMonitorSession(
	parentID string,
	directory *DirectoryService,
	telemetry *TelemetryService,
	aggregator *live.Aggregator,
) *MonitorSession {
	return &MonitorSession{
		directory:  directory,
		telemetry:  telemetry,
		aggregator: aggregator,
		parentID:   parentID,
		window:     WindowToday,
	}
}

// Refresh reloads the linked children and the selected child's telemetry.
// When the child list becomes non-empty for the first time, the first child
// is selected automatically.
func (s *MonitorSession) Refresh(ctx context.Context) error {
	children := s.directory.LinkedChildren(ctx, s.parentID)

	s.mu.Lock()
	s.children = children
	if s.selected == nil && len(children) > 0 {
		s.selected = &children[0]
	}
	if s.selected != nil {
		// drop the selection if the child was unlinked
		still := false
		for i := range children {
			if children[i].ID == s.selected.ID {
				s.selected = &children[i]
				still = true
				break
			}
		}
		if !still {
			s.selected = nil
			s.bundle = nil
			s.noDevice = false
		}
	}
	s.mu.Unlock()

	return s.refetch(ctx)
}

// SelectChild switches the view to another linked child. The old live
// subscription is fully detached before the new one attaches.
func (s *MonitorSession) SelectChild(ctx context.Context, childID string) error {
	s.mu.Lock()
	var target *model.UserProfile
	for i := range s.children {
		if s.children[i].ID == childID {
			target = &s.children[i]
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return apperrors.NotFound("Linked child")
	}
	s.selected = target
	s.bundle = nil
	s.noDevice = false
	liveMode := s.liveMode
	s.mu.Unlock()

	s.aggregator.Detach()

	if err := s.refetch(ctx); err != nil {
		return err
	}
	if liveMode {
		return s.attachLive(ctx)
	}
	return nil
}

// SetWindow changes the active time range and refetches.
func (s *MonitorSession) SetWindow(ctx context.Context, token string) error {
	s.mu.Lock()
	s.window = token
	s.mu.Unlock()
	return s.refetch(ctx)
}

// SetLive toggles live aggregation. Attach failure leaves live mode visibly
// off and returns the subscription error.
func (s *MonitorSession) SetLive(ctx context.Context, on bool) error {
	s.mu.Lock()
	already := s.liveMode
	s.mu.Unlock()

	if on == already {
		return nil
	}

	if !on {
		s.mu.Lock()
		s.liveMode = false
		s.mu.Unlock()
		s.aggregator.Detach()
		return nil
	}

	if err := s.attachLive(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.liveMode = true
	s.mu.Unlock()
	s.aggregator.SystemAlert("Live monitoring started")
	return nil
}

func (s *MonitorSession) attachLive(ctx context.Context) error {
	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()
	if selected == nil {
		return apperrors.NotFound("Linked child")
	}

	device, err := s.telemetry.DeviceForChild(ctx, selected.ID)
	if err != nil {
		s.mu.Lock()
		s.liveMode = false
		s.mu.Unlock()
		return err
	}

	if err := s.aggregator.Attach(ctx, device.ID); err != nil {
		s.mu.Lock()
		s.liveMode = false
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MonitorSession) refetch(ctx context.Context) error {
	s.mu.Lock()
	selected := s.selected
	window := s.window
	s.mu.Unlock()

	if selected == nil {
		return nil
	}

	since := ResolveWindow(window, time.Now())
	bundle, err := s.telemetry.FetchChildData(ctx, selected.ID, since)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeNoDeviceForChild {
			s.bundle = nil
			s.noDevice = true
			return nil
		}
		log.Error().Err(err).Str("childId", selected.ID).Msg("bulk telemetry fetch failed")
		return err
	}
	s.bundle = bundle
	s.noDevice = false
	return nil
}

// ViewState arbitrates the three mutually exclusive render states. The
// data/no-data boundary is "any category has at least one record".
func (s *MonitorSession) ViewState() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil || s.noDevice {
		return ViewNoDeviceLinked
	}
	if s.bundle != nil && s.bundle.HasData() {
		return ViewLinkedWithData
	}
	return ViewLinkedNoData
}

func (s *MonitorSession) Children() []model.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UserProfile, len(s.children))
	copy(out, s.children)
	return out
}

func (s *MonitorSession) Selected() *model.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *MonitorSession) Window() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

func (s *MonitorSession) LiveMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveMode
}

func (s *MonitorSession) Bundle() *model.ChildBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundle
}

// Close tears the session down, releasing any live subscription.
func (s *MonitorSession) Close() {
	s.mu.Lock()
	s.liveMode = false
	s.mu.Unlock()
	s.aggregator.Detach()
}
