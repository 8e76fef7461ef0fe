package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/guardianview/monitor-server-go/internal/audit"
	"github.com/guardianview/monitor-server-go/internal/config"
	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/live"
	"github.com/guardianview/monitor-server-go/internal/middleware"
	"github.com/guardianview/monitor-server-go/internal/service"
)

const heartbeatInterval = 30 * time.Second

// LiveHandler streams one monitoring session over SSE. Each connection owns
// its own MonitorSession and aggregator; closing the connection tears the
// session down and releases the live subscription.
type LiveHandler struct {
	directory  *service.DirectoryService
	telemetry  *service.TelemetryService
	subscriber live.Subscriber
}

func NewLiveHandler(
	directory *service.DirectoryService,
	telemetry *service.TelemetryService,
	subscriber live.Subscriber,
) *LiveHandler {
	return &LiveHandler{
		directory:  directory,
		telemetry:  telemetry,
		subscriber: subscriber,
	}
}

func (h *LiveHandler) Stream(w http.ResponseWriter, r *http.Request) {
	parent := middleware.GetParent(r.Context())
	if parent == nil {
		writeError(w, apperrors.Unauthenticated("No session"))
		return
	}

	childID := chi.URLParam(r, "childID")
	if !h.directory.IsLinked(r.Context(), parent.ID, childID) {
		writeError(w, apperrors.Forbidden("Child is not linked to this account"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	aggregator := live.NewAggregator(h.subscriber, config.AlertLogCapacity)
	session := service.NewMonitorSession(parent.ID, h.directory, h.telemetry, aggregator)
	defer session.Close()

	ctx := r.Context()

	if err := session.Refresh(ctx); err != nil {
		writeError(w, err)
		return
	}
	if err := session.SelectChild(ctx, childID); err != nil {
		writeError(w, err)
		return
	}

	alerts, cancel := aggregator.Listen()
	defer cancel()

	if window := r.URL.Query().Get("range"); window != "" {
		if err := session.SetWindow(ctx, window); err != nil {
			writeError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Live attach happens after headers: a subscription failure degrades to a
	// visible "live: off" state event instead of a dropped connection.
	liveErr := session.SetLive(ctx, true)

	audit.Log(ctx, audit.Event{
		Type:     audit.EventLiveAttach,
		ParentID: parent.ID,
		ChildID:  childID,
	})
	log.Info().Str("parentId", parent.ID).Str("childId", childID).Msg("live stream established")

	h.sendEvent(w, flusher, "state", map[string]any{
		"viewState": session.ViewState(),
		"window":    session.Window(),
		"live":      session.LiveMode(),
		"liveError": liveErr != nil,
	})
	if bundle := session.Bundle(); bundle != nil {
		h.sendEvent(w, flusher, "bundle", bundle)
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			audit.Log(r.Context(), audit.Event{
				Type:     audit.EventLiveDetach,
				ParentID: parent.ID,
				ChildID:  childID,
			})
			return

		case alert, ok := <-alerts:
			if !ok {
				return
			}
			h.sendEvent(w, flusher, "alert", alert)
			h.sendEvent(w, flusher, "snapshot", aggregator.Snapshot())

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func (h *LiveHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal sse event")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
