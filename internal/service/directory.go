package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/guardianview/monitor-server-go/internal/audit"
	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/model"
	"github.com/guardianview/monitor-server-go/internal/repository"
)

type DirectoryService struct {
	linkRepo repository.LinkRepository
}

func NewDirectoryService(linkRepo repository.LinkRepository) *DirectoryService {
	return &DirectoryService{linkRepo: linkRepo}
}

// LinkedChildren returns the profiles currently linked (active) to the parent,
// ordered by link age. Store errors are logged and degrade to an empty list:
// an absent child set must never take the dashboard down.
func (s *DirectoryService) LinkedChildren(ctx context.Context, parentID string) []model.UserProfile {
	children, err := s.linkRepo.FindActiveChildren(ctx, parentID)
	if err != nil {
		log.Error().Err(err).Str("parentId", parentID).Msg("load linked children failed")
		return []model.UserProfile{}
	}
	if children == nil {
		return []model.UserProfile{}
	}
	return children
}

// IsLinked reports whether an active link exists for the pair. Errors fail
// closed: an unverifiable link grants nothing.
func (s *DirectoryService) IsLinked(ctx context.Context, parentID, childID string) bool {
	link, err := s.linkRepo.FindActiveByPair(ctx, parentID, childID)
	if err != nil {
		log.Error().Err(err).Str("parentId", parentID).Str("childId", childID).Msg("link check failed")
		return false
	}
	return link != nil
}

// Unlink deactivates the active link for the pair. The link row is retained
// with unlinked_at set; a later redeem creates a fresh row.
func (s *DirectoryService) Unlink(ctx context.Context, parentID, childID string) error {
	n, err := s.linkRepo.Deactivate(ctx, parentID, childID)
	if err != nil {
		return apperrors.Database(err)
	}
	if n == 0 {
		return apperrors.NotFound("Active link")
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventChildUnlink,
		ParentID: parentID,
		ChildID:  childID,
	})

	log.Info().Str("parentId", parentID).Str("childId", childID).Msg("child unlinked")
	return nil
}
