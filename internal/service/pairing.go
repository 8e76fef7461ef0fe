package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/guardianview/monitor-server-go/internal/audit"
	"github.com/guardianview/monitor-server-go/internal/database"
	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/model"
	"github.com/guardianview/monitor-server-go/internal/repository"
	"github.com/guardianview/monitor-server-go/internal/util"
)

// The full 36-symbol alphabet, matching what child devices are told to type.
// No uniqueness probe against outstanding codes; the collision window is 24h
// over 36^6 values.
const (
	linkingCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	linkingCodeLength = 6
)

type PairingService struct {
	tx       database.TxRunner
	codeRepo repository.LinkingCodeRepository
	linkRepo repository.LinkRepository
	codeTTL  time.Duration
}

func NewPairingService(
	tx database.TxRunner,
	codeRepo repository.LinkingCodeRepository,
	linkRepo repository.LinkRepository,
	codeTTL time.Duration,
) *PairingService {
	return &PairingService{
		tx:       tx,
		codeRepo: codeRepo,
		linkRepo: linkRepo,
		codeTTL:  codeTTL,
	}
}

// GenerateCode issues a fresh single-use linking code for the parent. The
// caller must already be the authenticated principal; prior codes stay
// redeemable until they individually expire or are consumed.
func (s *PairingService) GenerateCode(ctx context.Context, principalID, parentID string) (*model.LinkingCode, error) {
	if principalID == "" || principalID != parentID {
		return nil, apperrors.Unauthenticated("Caller is not the session principal")
	}

	code := generateRandomCode()

	lc, err := s.codeRepo.Create(ctx, model.CreateLinkingCodeParams{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Code:      code,
		ExpiresAt: time.Now().Add(s.codeTTL),
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create linking code: %w", err))
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventCodeGenerate,
		ParentID: parentID,
		Details:  map[string]interface{}{"code": util.MaskCode(code)},
	})

	log.Info().
		Str("parentId", parentID).
		Str("code", util.MaskCode(code)).
		Time("expiresAt", lc.ExpiresAt).
		Msg("linking code created")

	return lc, nil
}

// RedeemCode binds the child identity to the parent who issued the code.
// Lookup, link insertion, and code consumption run in one transaction; the
// row lock on the code serializes concurrent redeems so a code can only ever
// produce one link.
func (s *PairingService) RedeemCode(ctx context.Context, code, childID string) error {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return apperrors.MissingRequired("code")
	}
	if childID == "" {
		return apperrors.MissingRequired("childId")
	}

	var parentID string
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes := s.codeRepo.WithTx(tx)
		links := s.linkRepo.WithTx(tx)

		lc, err := codes.FindRedeemableForUpdate(ctx, normalized)
		if err != nil {
			return apperrors.Database(fmt.Errorf("find linking code: %w", err))
		}
		if lc == nil {
			return apperrors.InvalidOrExpiredCode()
		}
		parentID = lc.ParentID

		if _, err := links.Create(ctx, model.CreateLinkParams{
			ID:          uuid.NewString(),
			ParentID:    lc.ParentID,
			ChildID:     childID,
			LinkingCode: normalized,
		}); err != nil {
			return apperrors.Database(fmt.Errorf("create link: %w", err))
		}

		if err := codes.MarkUsed(ctx, lc.ID); err != nil {
			return apperrors.Database(fmt.Errorf("mark code used: %w", err))
		}
		return nil
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeInvalidOrExpiredCode {
			audit.Log(ctx, audit.Event{
				Type:    audit.EventCodeRejected,
				ChildID: childID,
				Details: map[string]interface{}{"code": util.MaskCode(normalized)},
			})
			log.Warn().Str("childId", childID).Msg("invalid or expired linking code")
		} else {
			log.Error().Err(err).Str("childId", childID).Msg("redeem linking code failed")
		}
		return err
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventCodeRedeem,
		ParentID: parentID,
		ChildID:  childID,
		Details:  map[string]interface{}{"code": util.MaskCode(normalized)},
	})

	log.Info().
		Str("parentId", parentID).
		Str("childId", childID).
		Msg("device linked")

	return nil
}

func generateRandomCode() string {
	chars := []byte(linkingCodeChars)
	code := make([]byte, linkingCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		code[i] = chars[n.Int64()]
	}
	return string(code)
}
