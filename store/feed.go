package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

// FeedComposer assembles home timelines by reading the follow graph and the
// posts table. It owns no rows of its own.
type FeedComposer struct {
	db  *gorm.DB
	cfg Config
}

func NewFeedComposer(db *gorm.DB, cfg Config) *FeedComposer {
	return &FeedComposer{db: db, cfg: cfg.withDefaults()}
}

// Timeline returns one page of posts authored by accounts the identity
// follows, newest first with post ids breaking timestamp ties. The page
// boundary is a keyset cursor on (created_at, id), so a post inserted after
// the first page was read shifts nothing: rows past the cursor keep their
// positions and no post is skipped or repeated.
func (f *FeedComposer) Timeline(ctx context.Context, identityID uint, cursor *Cursor, limit int) (*PostPage, error) {
	if _, err := activeUser(ctx, f.db, identityID); err != nil {
		return nil, err
	}
	limit = pageLimit(limit, f.cfg.FeedPageSize, f.cfg.FeedMaxPageSize)

	q := f.db.WithContext(ctx).Model(&models.Post{}).
		Joins("JOIN follows ON follows.followee_id = posts.author_id AND follows.follower_id = ?", identityID).
		Joins("JOIN users ON users.id = posts.author_id AND users.active = ?", true)
	if cursor != nil {
		q = q.Where("(posts.created_at, posts.id) < (?, ?)", cursor.T, cursor.ID)
	}

	var posts []models.Post
	err := q.Order("posts.created_at DESC, posts.id DESC").
		Limit(limit + 1).
		Preload("Author").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return postPage(posts, limit), nil
}
