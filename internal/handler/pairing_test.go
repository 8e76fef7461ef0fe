package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardianview/monitor-server-go/internal/database"
	"github.com/guardianview/monitor-server-go/internal/middleware"
	"github.com/guardianview/monitor-server-go/internal/model"
	"github.com/guardianview/monitor-server-go/internal/repository"
	"github.com/guardianview/monitor-server-go/internal/service"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

// stubCodeRepo serves a single redeemable code.
type stubCodeRepo struct {
	code    *model.LinkingCode
	created *model.CreateLinkingCodeParams
	usedIDs []string
}

func (s *stubCodeRepo) Create(ctx context.Context, params model.CreateLinkingCodeParams) (*model.LinkingCode, error) {
	s.created = &params
	return &model.LinkingCode{
		ID:        params.ID,
		ParentID:  params.ParentID,
		Code:      params.Code,
		ExpiresAt: params.ExpiresAt,
	}, nil
}

func (s *stubCodeRepo) FindRedeemableForUpdate(ctx context.Context, code string) (*model.LinkingCode, error) {
	if s.code != nil && s.code.Code == code {
		return s.code, nil
	}
	return nil, nil
}

func (s *stubCodeRepo) MarkUsed(ctx context.Context, id string) error {
	s.usedIDs = append(s.usedIDs, id)
	return nil
}

func (s *stubCodeRepo) CountActiveByParentID(ctx context.Context, parentID string) (int, error) {
	return 0, nil
}

func (s *stubCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (s *stubCodeRepo) WithTx(tx *sqlx.Tx) repository.LinkingCodeRepository {
	return s
}

type stubLinkRepo struct {
	links       []model.CreateLinkParams
	children    []model.UserProfile
	activePair  bool
	deactivated int64
}

func (s *stubLinkRepo) Create(ctx context.Context, params model.CreateLinkParams) (*model.ParentChildLink, error) {
	s.links = append(s.links, params)
	return &model.ParentChildLink{
		ID:       params.ID,
		ParentID: params.ParentID,
		ChildID:  params.ChildID,
		IsActive: true,
	}, nil
}

func (s *stubLinkRepo) FindActiveChildren(ctx context.Context, parentID string) ([]model.UserProfile, error) {
	return s.children, nil
}

func (s *stubLinkRepo) FindActiveByPair(ctx context.Context, parentID, childID string) (*model.ParentChildLink, error) {
	if s.activePair {
		return &model.ParentChildLink{ParentID: parentID, ChildID: childID, IsActive: true}, nil
	}
	return nil, nil
}

func (s *stubLinkRepo) Deactivate(ctx context.Context, parentID, childID string) (int64, error) {
	return s.deactivated, nil
}

func (s *stubLinkRepo) WithTx(tx *sqlx.Tx) repository.LinkRepository {
	return s
}

func newPairingHandler(codeRepo *stubCodeRepo, linkRepo *stubLinkRepo) *PairingHandler {
	svc := service.NewPairingService(passthroughTx{}, codeRepo, linkRepo, 24*time.Hour)
	return NewPairingHandler(svc)
}

func TestPairingHandlerGenerateCode(t *testing.T) {
	t.Run("issues a code for the authenticated parent", func(t *testing.T) {
		codeRepo := &stubCodeRepo{}
		h := newPairingHandler(codeRepo, &stubLinkRepo{})

		req := httptest.NewRequest("POST", "/v1/pairing/codes", nil)
		ctx := context.WithValue(req.Context(), middleware.ParentContextKey, &model.UserProfile{ID: "parent-1", Role: model.RoleParent})
		rec := httptest.NewRecorder()
		h.GenerateCode(rec, req.WithContext(ctx))

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Code      string    `json:"code"`
			ExpiresAt time.Time `json:"expiresAt"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Code, 6)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), resp.ExpiresAt, 5*time.Second)
	})

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		h := newPairingHandler(&stubCodeRepo{}, &stubLinkRepo{})

		req := httptest.NewRequest("POST", "/v1/pairing/codes", nil)
		rec := httptest.NewRecorder()
		h.GenerateCode(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPairingHandlerRedeem(t *testing.T) {
	t.Run("valid code returns success and consumes the code", func(t *testing.T) {
		codeRepo := &stubCodeRepo{code: &model.LinkingCode{ID: "code-id", ParentID: "parent-1", Code: "AB12CD"}}
		linkRepo := &stubLinkRepo{}
		h := newPairingHandler(codeRepo, linkRepo)

		body := `{"code":"ab12cd","childId":"child-1"}`
		req := httptest.NewRequest("POST", "/v1/pairing/redeem", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		h.Redeem(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())

		require.Len(t, linkRepo.links, 1)
		assert.Equal(t, "parent-1", linkRepo.links[0].ParentID)
		assert.Equal(t, "child-1", linkRepo.links[0].ChildID)
		assert.Equal(t, []string{"code-id"}, codeRepo.usedIDs)
	})

	t.Run("unknown code maps to 400", func(t *testing.T) {
		h := newPairingHandler(&stubCodeRepo{}, &stubLinkRepo{})

		body := `{"code":"ZZZZZZ","childId":"child-1"}`
		req := httptest.NewRequest("POST", "/v1/pairing/redeem", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		h.Redeem(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "INVALID_OR_EXPIRED_CODE", resp.Code)
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		h := newPairingHandler(&stubCodeRepo{}, &stubLinkRepo{})

		req := httptest.NewRequest("POST", "/v1/pairing/redeem", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		h.Redeem(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
