package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

func TestFollowIdempotent(t *testing.T) {
	db := newTestDB(t)
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	ada := registerUser(t, db, "ada@example.com")
	bob := registerUser(t, db, "bob@example.com")

	created, err := g.Follow(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = g.Follow(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, created)

	var n int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	following, err := g.IsFollowing(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)
}

func TestUnfollowIdempotent(t *testing.T) {
	db := newTestDB(t)
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	ada := registerUser(t, db, "ada@example.com")
	bob := registerUser(t, db, "bob@example.com")

	_, err := g.Follow(ctx, ada.ID, bob.ID)
	require.NoError(t, err)

	require.NoError(t, g.Unfollow(ctx, ada.ID, bob.ID))
	following, err := g.IsFollowing(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, following)

	// Unfollowing again and unfollowing a stranger both succeed quietly.
	require.NoError(t, g.Unfollow(ctx, ada.ID, bob.ID))
	require.NoError(t, g.Unfollow(ctx, bob.ID, ada.ID))

	// The edge can come back after an unfollow.
	created, err := g.Follow(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestFollowRejections(t *testing.T) {
	db := newTestDB(t)
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	ada := registerUser(t, db, "ada@example.com")

	_, err := g.Follow(ctx, ada.ID, ada.ID)
	assert.ErrorIs(t, err, ErrSelfFollow)

	_, err = g.Follow(ctx, ada.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = g.Follow(ctx, 9999, ada.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFollowersPagination(t *testing.T) {
	db := newTestDB(t)
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	star := registerUser(t, db, "star@example.com")

	var fans []*models.User
	for i := 0; i < 5; i++ {
		fan := registerUser(t, db, fmt.Sprintf("fan%d@example.com", i))
		fans = append(fans, fan)
		_, err := g.Follow(ctx, fan.ID, star.ID)
		require.NoError(t, err)
	}

	seen := map[uint]bool{}
	var cursor *Cursor
	pages := 0
	for {
		page, err := g.ListFollowers(ctx, star.ID, cursor, 2)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Users), 2)
		for _, u := range page.Users {
			assert.False(t, seen[u.ID], "user %d served twice", u.ID)
			seen[u.ID] = true
		}
		pages++
		if !page.HasMore {
			break
		}
		require.NotNil(t, page.NextCursor)
		cursor = page.NextCursor
	}
	assert.Equal(t, 5, len(seen))
	assert.Equal(t, 3, pages)

	// Newest follower comes first.
	first, err := g.ListFollowers(ctx, star.ID, nil, 2)
	require.NoError(t, err)
	require.NotEmpty(t, first.Users)
	assert.Equal(t, fans[4].ID, first.Users[0].ID)
}

func TestListFollowersHidesDeactivated(t *testing.T) {
	db := newTestDB(t)
	g := NewGraphStore(db, testConfig())
	ids := NewIdentityStore(db, testConfig())
	ctx := context.Background()
	star := registerUser(t, db, "star@example.com")
	fan := registerUser(t, db, "fan@example.com")
	ghost := registerUser(t, db, "ghost@example.com")

	_, err := g.Follow(ctx, fan.ID, star.ID)
	require.NoError(t, err)
	_, err = g.Follow(ctx, ghost.ID, star.ID)
	require.NoError(t, err)

	require.NoError(t, ids.Deactivate(ctx, ghost.ID))

	page, err := g.ListFollowers(ctx, star.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, fan.ID, page.Users[0].ID)
}

func TestListFollowing(t *testing.T) {
	db := newTestDB(t)
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	ada := registerUser(t, db, "ada@example.com")
	bob := registerUser(t, db, "bob@example.com")
	eve := registerUser(t, db, "eve@example.com")

	_, err := g.Follow(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	_, err = g.Follow(ctx, ada.ID, eve.ID)
	require.NoError(t, err)

	page, err := g.ListFollowing(ctx, ada.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	// Most recent follow first.
	assert.Equal(t, eve.ID, page.Users[0].ID)
	assert.Equal(t, bob.ID, page.Users[1].ID)

	_, err = g.ListFollowing(ctx, 9999, nil, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFollowingIDs(t *testing.T) {
	db := newTestDB(t)
	g := NewGraphStore(db, testConfig())
	ids := NewIdentityStore(db, testConfig())
	ctx := context.Background()
	ada := registerUser(t, db, "ada@example.com")
	bob := registerUser(t, db, "bob@example.com")
	eve := registerUser(t, db, "eve@example.com")

	_, err := g.Follow(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	_, err = g.Follow(ctx, ada.ID, eve.ID)
	require.NoError(t, err)

	got, err := g.Following(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{eve.ID, bob.ID}, got)

	// Deactivated accounts drop out of the set.
	require.NoError(t, ids.Deactivate(ctx, eve.ID))
	got, err = g.Following(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, got)

	_, err = g.Following(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
