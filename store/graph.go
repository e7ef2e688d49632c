package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

// GraphStore owns the directed follow graph.
type GraphStore struct {
	db  *gorm.DB
	cfg Config
}

func NewGraphStore(db *gorm.DB, cfg Config) *GraphStore {
	return &GraphStore{db: db, cfg: cfg.withDefaults()}
}

// Follow records follower -> followee. Re-following is a no-op: the insert
// rides on the unique (follower, followee) index with ON CONFLICT DO NOTHING,
// so concurrent duplicates collapse into one edge. Returns whether a new edge
// was created, which is what decides if a notification task is worth queueing.
func (s *GraphStore) Follow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	if followerID == followeeID {
		return false, ErrSelfFollow
	}
	if _, err := activeUser(ctx, s.db, followerID); err != nil {
		return false, err
	}
	if _, err := activeUser(ctx, s.db, followeeID); err != nil {
		return false, err
	}

	edge := models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Unfollow removes the edge if present. Removing an absent edge succeeds.
func (s *GraphStore) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	return s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
}

// IsFollowing reports whether the edge exists.
func (s *GraphStore) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error
	return n > 0, err
}

// Following returns the ids of the active accounts id follows, newest edge
// first. The feed query joins the edges directly; this is for callers that
// just want the id set.
func (s *GraphStore) Following(ctx context.Context, id uint) ([]uint, error) {
	if _, err := activeUser(ctx, s.db, id); err != nil {
		return nil, err
	}
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Joins("JOIN users ON users.id = follows.followee_id AND users.active = ?", true).
		Where("follows.follower_id = ?", id).
		Order("follows.created_at DESC, follows.id DESC").
		Pluck("follows.followee_id", &ids).Error
	return ids, err
}

// FollowPage is one page of accounts on either side of the graph, newest
// edge first.
type FollowPage struct {
	Users      []models.User `json:"users"`
	NextCursor *Cursor       `json:"-"`
	HasMore    bool          `json:"has_more"`
}

// ListFollowers pages through the accounts following id, ordered by when they
// followed, newest first. Deactivated followers are filtered out of the join,
// so they never occupy a slot in a page.
func (s *GraphStore) ListFollowers(ctx context.Context, id uint, cursor *Cursor, limit int) (*FollowPage, error) {
	if _, err := activeUser(ctx, s.db, id); err != nil {
		return nil, err
	}
	return s.edgePage(ctx, cursor, limit, "follows.followee_id = ?", id, "follows.follower_id", "Follower")
}

// ListFollowing pages through the accounts id follows, same ordering rules as
// ListFollowers.
func (s *GraphStore) ListFollowing(ctx context.Context, id uint, cursor *Cursor, limit int) (*FollowPage, error) {
	if _, err := activeUser(ctx, s.db, id); err != nil {
		return nil, err
	}
	return s.edgePage(ctx, cursor, limit, "follows.follower_id = ?", id, "follows.followee_id", "Followee")
}

// edgePage pages over follow edges keyed on (created_at, id) descending and
// resolves the far end of each edge. Fetches one row beyond the limit to
// learn whether another page exists.
func (s *GraphStore) edgePage(ctx context.Context, cursor *Cursor, limit int, cond string, id uint, farColumn, farAssoc string) (*FollowPage, error) {
	limit = pageLimit(limit, s.cfg.ListPageSize, s.cfg.ListPageSize)

	q := s.db.WithContext(ctx).Model(&models.Follow{}).
		Joins("JOIN users ON users.id = "+farColumn+" AND users.active = ?", true).
		Where(cond, id)
	if cursor != nil {
		q = q.Where("(follows.created_at, follows.id) < (?, ?)", cursor.T, cursor.ID)
	}

	var edges []models.Follow
	err := q.Order("follows.created_at DESC, follows.id DESC").
		Limit(limit + 1).
		Preload(farAssoc).
		Find(&edges).Error
	if err != nil {
		return nil, err
	}

	page := &FollowPage{HasMore: len(edges) > limit}
	if page.HasMore {
		edges = edges[:limit]
	}
	page.Users = make([]models.User, 0, len(edges))
	for _, e := range edges {
		far := e.Follower
		if farAssoc == "Followee" {
			far = e.Followee
		}
		if far != nil {
			page.Users = append(page.Users, *far)
		}
	}
	if page.HasMore && len(edges) > 0 {
		last := edges[len(edges)-1]
		page.NextCursor = cursorFor(last.CreatedAt, last.ID)
	}
	return page, nil
}
