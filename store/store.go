// Package store implements the persistence core: identities, the follow
// graph, posts, interactions and the home feed. Every store is constructed
// with a *gorm.DB and a Config; none of them keep global state or log, they
// report failures as wrapped sentinel errors.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

// Config carries the bounds and policy knobs the stores enforce. Zero fields
// fall back to the defaults below so tests can set only what they exercise.
type Config struct {
	MinPasswordLen  int
	BcryptCost      int
	FeedPageSize    int
	FeedMaxPageSize int
	ListPageSize    int
	MaxCommentDepth int
}

func (c Config) withDefaults() Config {
	if c.MinPasswordLen <= 0 {
		c.MinPasswordLen = 8
	}
	if c.BcryptCost <= 0 {
		c.BcryptCost = 10
	}
	if c.FeedPageSize <= 0 {
		c.FeedPageSize = 20
	}
	if c.FeedMaxPageSize <= 0 {
		c.FeedMaxPageSize = 100
	}
	if c.ListPageSize <= 0 {
		c.ListPageSize = 50
	}
	if c.MaxCommentDepth <= 0 {
		c.MaxCommentDepth = 8
	}
	return c
}

// pageLimit clamps a caller-supplied page size into [1, max], falling back to
// def when the caller passed nothing.
func pageLimit(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

// activeUser loads a user that exists and has not deactivated their account.
// Absent and deactivated accounts are indistinguishable to callers.
func activeUser(ctx context.Context, db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("active = ?", true).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// visiblePost loads a post whose author is still active.
func visiblePost(ctx context.Context, db *gorm.DB, id uint) (*models.Post, error) {
	var post models.Post
	err := db.WithContext(ctx).
		Joins("JOIN users ON users.id = posts.author_id AND users.active = ?", true).
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}
