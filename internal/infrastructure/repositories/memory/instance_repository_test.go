package memory

import (
	"context"
	"testing"
	"time"

	"tempvox/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstance(channel domain.ChannelID, owner domain.MemberID) *domain.ChannelInstance {
	return &domain.ChannelInstance{
		CommunityID: "community-1",
		ChannelID:   channel,
		OwnerID:     owner,
		CurrentName: "test channel",
		CreatedAt:   time.Now(),
	}
}

func TestMemoryInstanceRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInstanceRepository()

	t.Run("create and read back", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, testInstance("chan-1", "alice")))

		got, err := repo.GetByChannel(ctx, "chan-1")
		require.NoError(t, err)
		assert.Equal(t, domain.MemberID("alice"), got.OwnerID)
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		assert.Error(t, repo.Create(ctx, testInstance("chan-1", "alice")))
	})

	t.Run("update replaces state", func(t *testing.T) {
		instance := testInstance("chan-1", "alice")
		instance.CurrentName = "renamed"
		require.NoError(t, repo.Update(ctx, instance))

		got, err := repo.GetByChannel(ctx, "chan-1")
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.CurrentName)
	})

	t.Run("update of missing instance fails", func(t *testing.T) {
		assert.ErrorIs(t, repo.Update(ctx, testInstance("ghost", "alice")), domain.ErrInstanceNotFound)
	})

	t.Run("delete removes", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "chan-1"))

		_, err := repo.GetByChannel(ctx, "chan-1")
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "chan-1"), domain.ErrInstanceNotFound)
	})
}

func TestMemoryInstanceRepository_Queries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInstanceRepository()

	require.NoError(t, repo.Create(ctx, testInstance("chan-1", "alice")))
	require.NoError(t, repo.Create(ctx, testInstance("chan-2", "alice")))
	require.NoError(t, repo.Create(ctx, testInstance("chan-3", "bob")))
	other := testInstance("chan-4", "alice")
	other.CommunityID = "community-2"
	require.NoError(t, repo.Create(ctx, other))

	t.Run("list is scoped to the community", func(t *testing.T) {
		instances, err := repo.ListByCommunity(ctx, "community-1")
		require.NoError(t, err)
		assert.Len(t, instances, 3)
	})

	t.Run("count is scoped to community and owner", func(t *testing.T) {
		count, err := repo.CountByOwner(ctx, "community-1", "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestMemoryInstanceRepository_CloneIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInstanceRepository()

	instance := testInstance("chan-1", "alice")
	instance.BlockedUsers = []domain.MemberID{"bob"}
	require.NoError(t, repo.Create(ctx, instance))

	// Mutating the caller's copy must not leak into the store.
	instance.BlockedUsers[0] = "carol"
	instance.CurrentName = "mutated"

	got, err := repo.GetByChannel(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberID("bob"), got.BlockedUsers[0])
	assert.Equal(t, "test channel", got.CurrentName)

	// Mutating a read result must not leak either.
	got.BlockedUsers[0] = "dave"
	again, err := repo.GetByChannel(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberID("bob"), again.BlockedUsers[0])
}
