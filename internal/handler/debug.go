package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/middleware"
	"github.com/guardianview/monitor-server-go/internal/model"
	"github.com/guardianview/monitor-server-go/internal/repository"
)

var debugCategories = []model.Category{
	model.CategoryLocation,
	model.CategoryAudioClip,
	model.CategoryCallRecording,
	model.CategoryNotification,
	model.CategoryKeystroke,
	model.CategorySystemActivity,
	model.CategoryAppUsage,
	model.CategoryMediaItem,
}

// DebugHandler reports row counts per telemetry table so an operator can see
// at a glance whether devices are actually sending data.
type DebugHandler struct {
	telemetryRepo repository.TelemetryRepository
}

func NewDebugHandler(telemetryRepo repository.TelemetryRepository) *DebugHandler {
	return &DebugHandler{telemetryRepo: telemetryRepo}
}

func (h *DebugHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.Stats)
	return r
}

func (h *DebugHandler) Stats(w http.ResponseWriter, r *http.Request) {
	parent := middleware.GetParent(r.Context())
	if parent == nil {
		writeError(w, apperrors.Unauthenticated("No session"))
		return
	}

	counts := make(map[string]int64, len(debugCategories))
	for _, category := range debugCategories {
		n, err := h.telemetryRepo.CountByCategory(r.Context(), category)
		if err != nil {
			log.Error().Err(err).Str("category", string(category)).Msg("count failed")
			n = -1
		}
		counts[string(category)] = n
	}

	writeJSON(w, http.StatusOK, map[string]any{"tableCounts": counts})
}
