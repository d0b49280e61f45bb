package sqlite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hanzzx311/skyport/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(openTestDB(t), clockwork.NewFakeClock())

	user := &domain.User{Username: "admin", Email: "admin@example.com", PasswordHash: "hash", Admin: true}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", byID.Username)
	assert.True(t, byID.Admin)

	byName, err := repo.GetByUsername(ctx, "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
}

func TestUserRepo_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(openTestDB(t), clockwork.NewFakeClock())

	require.NoError(t, repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "x"}))
	err := repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "y"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestUserRepo_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(openTestDB(t), clockwork.NewFakeClock())

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepo_CountAndSetLanguage(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(openTestDB(t), clockwork.NewFakeClock())

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	user := &domain.User{Username: "bob", PasswordHash: "x", Lang: "en"}
	require.NoError(t, repo.Create(ctx, user))

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.SetLanguage(ctx, user.ID, "de"))
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "de", got.Lang)

	assert.ErrorIs(t, repo.SetLanguage(ctx, uuid.New(), "de"), domain.ErrUserNotFound)
}
