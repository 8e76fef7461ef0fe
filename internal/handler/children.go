package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/middleware"
	"github.com/guardianview/monitor-server-go/internal/service"
)

type ChildrenHandler struct {
	directory *service.DirectoryService
	telemetry *service.TelemetryService
}

func NewChildrenHandler(directory *service.DirectoryService, telemetry *service.TelemetryService) *ChildrenHandler {
	return &ChildrenHandler{directory: directory, telemetry: telemetry}
}

func (h *ChildrenHandler) List(w http.ResponseWriter, r *http.Request) {
	parent := middleware.GetParent(r.Context())
	if parent == nil {
		writeError(w, apperrors.Unauthenticated("No session"))
		return
	}

	children := h.directory.LinkedChildren(r.Context(), parent.ID)
	writeJSON(w, http.StatusOK, map[string]any{"children": children})
}

func (h *ChildrenHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	parent := middleware.GetParent(r.Context())
	if parent == nil {
		writeError(w, apperrors.Unauthenticated("No session"))
		return
	}

	childID := chi.URLParam(r, "childID")
	if err := h.directory.Unlink(r.Context(), parent.ID, childID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlinked"})
}

func (h *ChildrenHandler) Telemetry(w http.ResponseWriter, r *http.Request) {
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

	since := service.ResolveWindow(r.URL.Query().Get("range"), time.Now())
	bundle, err := h.telemetry.FetchChildData(r.Context(), childID, since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}
