package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

func postAt(t *testing.T, db *gorm.DB, authorID uint, content string, at time.Time) *models.Post {
	t.Helper()
	post := models.Post{
		Model:    gorm.Model{CreatedAt: at},
		AuthorID: authorID,
		Content:  content,
	}
	require.NoError(t, db.Create(&post).Error)
	return &post
}

func TestTimelineOnlyFollowedAuthors(t *testing.T) {
	db := newTestDB(t)
	f := NewFeedComposer(db, testConfig())
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	reader := registerUser(t, db, "reader@example.com")
	followed := registerUser(t, db, "followed@example.com")
	stranger := registerUser(t, db, "stranger@example.com")

	_, err := g.Follow(ctx, reader.ID, followed.ID)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	postAt(t, db, followed.ID, "in feed", base)
	postAt(t, db, stranger.ID, "not in feed", base.Add(time.Minute))
	postAt(t, db, reader.ID, "own post, not followed", base.Add(2*time.Minute))

	page, err := f.Timeline(ctx, reader.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "in feed", page.Posts[0].Content)
	require.NotNil(t, page.Posts[0].Author)
	assert.Equal(t, followed.ID, page.Posts[0].Author.ID)

	// No follows, no feed.
	lurker := registerUser(t, db, "lurker@example.com")
	page, err = f.Timeline(ctx, lurker.ID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.False(t, page.HasMore)
}

func TestTimelineMergesFollowedAuthors(t *testing.T) {
	db := newTestDB(t)
	f := NewFeedComposer(db, testConfig())
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	reader := registerUser(t, db, "reader@example.com")
	bob := registerUser(t, db, "bob@example.com")
	carol := registerUser(t, db, "carol@example.com")

	_, err := g.Follow(ctx, reader.ID, bob.ID)
	require.NoError(t, err)
	_, err = g.Follow(ctx, reader.ID, carol.ID)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	earliest := postAt(t, db, bob.ID, "bob, earliest", base)
	between := postAt(t, db, carol.ID, "carol, in between", base.Add(time.Minute))
	latest := postAt(t, db, bob.ID, "bob, latest", base.Add(2*time.Minute))

	// Both authors interleave into a single recency-ordered stream.
	page, err := f.Timeline(ctx, reader.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 3)
	assert.Equal(t, latest.ID, page.Posts[0].ID)
	assert.Equal(t, between.ID, page.Posts[1].ID)
	assert.Equal(t, earliest.ID, page.Posts[2].ID)
	assert.False(t, page.HasMore)
}

func TestTimelineStableUnderConcurrentInserts(t *testing.T) {
	db := newTestDB(t)
	f := NewFeedComposer(db, testConfig())
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	reader := registerUser(t, db, "reader@example.com")
	author := registerUser(t, db, "author@example.com")

	_, err := g.Follow(ctx, reader.ID, author.ID)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	p1 := postAt(t, db, author.ID, "one", base)
	p2 := postAt(t, db, author.ID, "two", base.Add(time.Minute))
	p3 := postAt(t, db, author.ID, "three", base.Add(2*time.Minute))

	first, err := f.Timeline(ctx, reader.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Posts, 2)
	assert.Equal(t, p3.ID, first.Posts[0].ID)
	assert.Equal(t, p2.ID, first.Posts[1].ID)
	require.True(t, first.HasMore)
	require.NotNil(t, first.NextCursor)

	// A post lands above the cursor between page reads.
	postAt(t, db, author.ID, "four", base.Add(3*time.Minute))

	// The second page neither repeats "two" nor skips "one".
	second, err := f.Timeline(ctx, reader.ID, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Posts, 1)
	assert.Equal(t, p1.ID, second.Posts[0].ID)
	assert.False(t, second.HasMore)
}

func TestTimelineTieBreakOnID(t *testing.T) {
	db := newTestDB(t)
	f := NewFeedComposer(db, testConfig())
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	reader := registerUser(t, db, "reader@example.com")
	author := registerUser(t, db, "author@example.com")

	_, err := g.Follow(ctx, reader.ID, author.ID)
	require.NoError(t, err)

	at := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	older := postAt(t, db, author.ID, "same instant, lower id", at)
	newer := postAt(t, db, author.ID, "same instant, higher id", at)

	first, err := f.Timeline(ctx, reader.ID, nil, 1)
	require.NoError(t, err)
	require.Len(t, first.Posts, 1)
	assert.Equal(t, newer.ID, first.Posts[0].ID)
	require.True(t, first.HasMore)

	second, err := f.Timeline(ctx, reader.ID, first.NextCursor, 1)
	require.NoError(t, err)
	require.Len(t, second.Posts, 1)
	assert.Equal(t, older.ID, second.Posts[0].ID)
}

func TestTimelineHidesDeactivatedAuthors(t *testing.T) {
	db := newTestDB(t)
	f := NewFeedComposer(db, testConfig())
	g := NewGraphStore(db, testConfig())
	ids := NewIdentityStore(db, testConfig())
	ctx := context.Background()
	reader := registerUser(t, db, "reader@example.com")
	author := registerUser(t, db, "author@example.com")

	_, err := g.Follow(ctx, reader.ID, author.ID)
	require.NoError(t, err)
	postAt(t, db, author.ID, "here today", time.Now().Add(-time.Hour).UTC().Truncate(time.Second))

	require.NoError(t, ids.Deactivate(ctx, author.ID))

	page, err := f.Timeline(ctx, reader.ID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestTimelineAfterUnfollow(t *testing.T) {
	db := newTestDB(t)
	f := NewFeedComposer(db, testConfig())
	g := NewGraphStore(db, testConfig())
	ctx := context.Background()
	reader := registerUser(t, db, "reader@example.com")
	author := registerUser(t, db, "author@example.com")

	_, err := g.Follow(ctx, reader.ID, author.ID)
	require.NoError(t, err)
	postAt(t, db, author.ID, "visible while followed", time.Now().Add(-time.Hour).UTC().Truncate(time.Second))

	require.NoError(t, g.Unfollow(ctx, reader.ID, author.ID))

	page, err := f.Timeline(ctx, reader.ID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestTimelineLimitClamped(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.FeedPageSize = 2
	cfg.FeedMaxPageSize = 3
	f := NewFeedComposer(db, cfg)
	g := NewGraphStore(db, cfg)
	ctx := context.Background()
	reader := registerUser(t, db, "reader@example.com")
	author := registerUser(t, db, "author@example.com")

	_, err := g.Follow(ctx, reader.ID, author.ID)
	require.NoError(t, err)
	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		postAt(t, db, author.ID, "filler", base.Add(time.Duration(i)*time.Minute))
	}

	// No limit falls back to the default page size.
	page, err := f.Timeline(ctx, reader.ID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 2)

	// An outsized limit is clamped to the maximum.
	page, err = f.Timeline(ctx, reader.ID, nil, 1000)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 3)
	assert.True(t, page.HasMore)

	_, err = f.Timeline(ctx, 9999, nil, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
