package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/guardianview/monitor-server-go/internal/audit"
	"github.com/guardianview/monitor-server-go/internal/model"
	"github.com/guardianview/monitor-server-go/internal/repository"
	"github.com/guardianview/monitor-server-go/internal/util"
)

type contextKey string

const ParentContextKey contextKey = "parent"

// GetParent returns the authenticated parent profile, or nil.
func GetParent(ctx context.Context) *model.UserProfile {
	if parent, ok := ctx.Value(ParentContextKey).(*model.UserProfile); ok {
		return parent
	}
	return nil
}

type AuthMiddleware struct {
	sessionRepo repository.SessionRepository
	profileRepo repository.ProfileRepository
}

func NewAuthMiddleware(sessionRepo repository.SessionRepository, profileRepo repository.ProfileRepository) *AuthMiddleware {
	return &AuthMiddleware{sessionRepo: sessionRepo, profileRepo: profileRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		session, err := m.sessionRepo.FindByTokenHash(r.Context(), util.HashToken(token))
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}
		if session == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			audit.Log(r.Context(), audit.Event{
				Type: audit.EventAuthFailure,
				IP:   r.RemoteAddr,
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		parent, err := m.profileRepo.FindByID(r.Context(), session.ParentID)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}
		if parent == nil || parent.Role != model.RoleParent {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), ParentContextKey, parent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
