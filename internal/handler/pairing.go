package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/middleware"
	"github.com/guardianview/monitor-server-go/internal/service"
)

type PairingHandler struct {
	pairingService *service.PairingService
}

func NewPairingHandler(pairingService *service.PairingService) *PairingHandler {
	return &PairingHandler{pairingService: pairingService}
}

func (h *PairingHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	parent := middleware.GetParent(r.Context())
	if parent == nil {
		writeError(w, apperrors.Unauthenticated("No session"))
		return
	}

	code, err := h.pairingService.GenerateCode(r.Context(), parent.ID, parent.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"code":      code.Code,
		"expiresAt": code.ExpiresAt,
	})
}

func (h *PairingHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code    string `json:"code"`
		ChildID string `json:"childId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	if err := h.pairingService.RedeemCode(r.Context(), req.Code, req.ChildID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
