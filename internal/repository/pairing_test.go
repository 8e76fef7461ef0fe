package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardianview/monitor-server-go/internal/database"
	"github.com/guardianview/monitor-server-go/internal/model"
)

func TestLinkingCodeRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewLinkingCodeRepository(db.DB)
	ctx := context.Background()
	parentID := createTestParent(t, db)

	code, err := repo.Create(ctx, model.CreateLinkingCodeParams{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Code:      testCode(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})

	require.NoError(t, err)
	assert.Equal(t, parentID, code.ParentID)
	assert.False(t, code.IsUsed)
	assert.Nil(t, code.UsedAt)
}

func TestLinkingCodeRepository_FindRedeemableForUpdate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewLinkingCodeRepository(db.DB)
	ctx := context.Background()
	parentID := createTestParent(t, db)

	value := testCode()
	created, err := repo.Create(ctx, model.CreateLinkingCodeParams{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Code:      value,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	t.Run("finds a fresh code", func(t *testing.T) {
		code, err := repo.FindRedeemableForUpdate(ctx, value)
		require.NoError(t, err)
		require.NotNil(t, code)
		assert.Equal(t, created.ID, code.ID)
	})

	t.Run("returns nil for an unknown code", func(t *testing.T) {
		code, err := repo.FindRedeemableForUpdate(ctx, "NOSUCH")
		require.NoError(t, err)
		assert.Nil(t, code)
	})

	t.Run("does not find a consumed code", func(t *testing.T) {
		require.NoError(t, repo.MarkUsed(ctx, created.ID))

		code, err := repo.FindRedeemableForUpdate(ctx, value)
		require.NoError(t, err)
		assert.Nil(t, code)
	})
}

func TestLinkingCodeRepository_DeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewLinkingCodeRepository(db.DB)
	ctx := context.Background()
	parentID := createTestParent(t, db)

	expired := testCode()
	_, err := repo.Create(ctx, model.CreateLinkingCodeParams{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Code:      expired,
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	valid := testCode()
	_, err = repo.Create(ctx, model.CreateLinkingCodeParams{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Code:      valid,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	count, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(1))

	code, err := repo.FindRedeemableForUpdate(ctx, expired)
	require.NoError(t, err)
	assert.Nil(t, code)

	code, err = repo.FindRedeemableForUpdate(ctx, valid)
	require.NoError(t, err)
	assert.NotNil(t, code)
}

// setupTestDB connects to the database named by TEST_DATABASE_URL and skips
// the test when none is reachable, so the suite still runs without local
// infrastructure.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(url)
	if err != nil {
		t.Skipf("test database unreachable: %v", err)
	}
	return db
}

func createTestParent(t *testing.T, db *database.DB) string {
	t.Helper()

	id := uuid.NewString()
	profile, err := NewProfileRepository(db.DB).Create(context.Background(), model.CreateProfileParams{
		ID:           id,
		Email:        id + "@test.local",
		Role:         model.RoleParent,
		PasswordHash: "x",
	})
	require.NoError(t, err)
	return profile.ID
}

// testCode returns a unique six-character code so runs against a shared test
// database do not collide.
func testCode() string {
	return uuid.NewString()[:6]
}
