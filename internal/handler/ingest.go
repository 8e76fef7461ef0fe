package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/model"
	"github.com/guardianview/monitor-server-go/internal/service"
)

// IngestHandler accepts telemetry posted by child devices. Authentication is
// the ingest signature middleware mounted above these routes.
type IngestHandler struct {
	ingestService *service.IngestService
}

func NewIngestHandler(ingestService *service.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

func (h *IngestHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/devices/{deviceID}/locations", h.Location)
	r.Post("/devices/{deviceID}/audio-clips", h.AudioClip)
	r.Post("/devices/{deviceID}/notifications", h.Notification)
	r.Post("/children/{childID}/keystrokes", h.Keystrokes)
	return r
}

func (h *IngestHandler) Location(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat        float64    `json:"lat"`
		Lng        float64    `json:"lng"`
		Accuracy   float64    `json:"accuracy"`
		RecordedAt *time.Time `json:"recordedAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	loc := model.Location{
		DeviceID:   chi.URLParam(r, "deviceID"),
		Lat:        req.Lat,
		Lng:        req.Lng,
		Accuracy:   req.Accuracy,
		RecordedAt: timeOrNow(req.RecordedAt),
	}
	out, err := h.ingestService.RecordLocation(r.Context(), loc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *IngestHandler) AudioClip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path       string     `json:"path"`
		DurationS  float64    `json:"durationS"`
		RecordedAt *time.Time `json:"recordedAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeError(w, apperrors.MissingRequired("path"))
		return
	}

	clip := model.AudioClip{
		DeviceID:   chi.URLParam(r, "deviceID"),
		Path:       req.Path,
		DurationS:  req.DurationS,
		RecordedAt: timeOrNow(req.RecordedAt),
	}
	out, err := h.ingestService.RecordAudioClip(r.Context(), clip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *IngestHandler) Notification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		App        string     `json:"app"`
		Title      string     `json:"title"`
		Body       string     `json:"body"`
		ReceivedAt *time.Time `json:"receivedAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.App == "" {
		writeError(w, apperrors.MissingRequired("app"))
		return
	}

	n := model.Notification{
		DeviceID:   chi.URLParam(r, "deviceID"),
		App:        req.App,
		Title:      req.Title,
		Body:       req.Body,
		ReceivedAt: timeOrNow(req.ReceivedAt),
	}
	out, err := h.ingestService.RecordNotification(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *IngestHandler) Keystrokes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActivityType    string     `json:"activityType"`
		AppName         *string    `json:"appName"`
		ContentPreview  *string    `json:"contentPreview"`
		InputMethod     *string    `json:"inputMethod"`
		SessionDuration *int       `json:"sessionDuration"`
		Timestamp       *time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.ActivityType == "" {
		writeError(w, apperrors.MissingRequired("activityType"))
		return
	}

	ev := model.KeystrokeEvent{
		ChildID:         chi.URLParam(r, "childID"),
		Timestamp:       timeOrNow(req.Timestamp),
		ActivityType:    req.ActivityType,
		AppName:         req.AppName,
		ContentPreview:  req.ContentPreview,
		InputMethod:     req.InputMethod,
		SessionDuration: req.SessionDuration,
	}
	out, err := h.ingestService.RecordKeystrokes(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func timeOrNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now()
}
