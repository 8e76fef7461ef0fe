package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventLoginSuccess EventType = "login_success"
	EventLoginFailure EventType = "login_failure"
	EventLogout       EventType = "logout"
	EventCodeGenerate EventType = "code_generate"
	EventCodeRedeem   EventType = "code_redeem"
	EventCodeRejected EventType = "code_rejected"
	EventChildUnlink  EventType = "child_unlink"
	EventAuthFailure  EventType = "auth_failure"
	EventRateLimit    EventType = "rate_limit_exceeded"
	EventIngestReject EventType = "ingest_signature_rejected"
	EventLiveAttach   EventType = "live_attach"
	EventLiveDetach   EventType = "live_detach"
)

type Event struct {
	Type     EventType
	ParentID string
	ChildID  string
	IP       string
	Details  map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.ParentID != "" {
		logger = logger.With().Str("parent_id", event.ParentID).Logger()
	}
	if event.ChildID != "" {
		logger = logger.With().Str("child_id", event.ChildID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = logEvent.Interface(k, v)
	}
	logEvent.Msg("audit event")
}
