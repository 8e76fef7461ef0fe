package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/guardianview/monitor-server-go/internal/audit"
	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/model"
	"github.com/guardianview/monitor-server-go/internal/repository"
	"github.com/guardianview/monitor-server-go/internal/util"
)

type AuthService struct {
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
	sessionTTL  time.Duration
}

func NewAuthService(
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		sessionTTL:  sessionTTL,
	}
}

// Login verifies a parent's credentials and issues an opaque session token.
// Only the sha256 hash of the token is stored.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, apperrors.MissingRequired("email and password")
	}

	profile, err := s.profileRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, apperrors.Database(fmt.Errorf("find profile: %w", err))
	}
	if profile == nil || profile.Role != model.RoleParent || !util.CheckPasswordHash(password, profile.PasswordHash) {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"email": email},
		})
		return "", nil, apperrors.Unauthenticated("Invalid email or password")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", nil, apperrors.Internal("generate session token").WithCause(err)
	}

	if _, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		ID:        uuid.NewString(),
		TokenHash: util.HashToken(token),
		ParentID:  profile.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}); err != nil {
		return "", nil, apperrors.Database(fmt.Errorf("create session: %w", err))
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventLoginSuccess,
		ParentID: profile.ID,
	})
	log.Info().Str("parentId", profile.ID).Msg("parent logged in")

	return token, profile, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessionRepo.DeleteByTokenHash(ctx, util.HashToken(token)); err != nil {
		return apperrors.Database(fmt.Errorf("delete session: %w", err))
	}
	audit.Log(ctx, audit.Event{Type: audit.EventLogout})
	return nil
}
