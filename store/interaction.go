package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

// InteractionStore owns likes and comment trees.
type InteractionStore struct {
	db  *gorm.DB
	cfg Config
}

func NewInteractionStore(db *gorm.DB, cfg Config) *InteractionStore {
	return &InteractionStore{db: db, cfg: cfg.withDefaults()}
}

// Like records that identity liked post. Liking twice is a no-op: the insert
// rides the unique (user, post) index with ON CONFLICT DO NOTHING and the
// denormalized counter moves only when a row was actually inserted, so the
// counter cannot drift under concurrent double-likes. The whole operation is
// one transaction; a post deleted mid-flight fails the counter update and the
// insert rolls back with it.
func (s *InteractionStore) Like(ctx context.Context, identityID, postID uint) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if _, err := visiblePost(ctx, tx, postID); err != nil {
		tx.Rollback()
		return err
	}
	like := models.Like{UserID: identityID, PostID: postID}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
	if res.Error != nil {
		tx.Rollback()
		return res.Error
	}
	if res.RowsAffected > 0 {
		bump := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + ?", 1))
		if bump.Error != nil {
			tx.Rollback()
			return bump.Error
		}
		if bump.RowsAffected == 0 {
			// The post was deleted after the visibility check; the like row
			// must not survive it.
			tx.Rollback()
			return ErrNotFound
		}
	}
	return tx.Commit().Error
}

// Unlike removes the like if present. Unliking something never liked
// succeeds; the counter only moves when a row was deleted.
func (s *InteractionStore) Unlike(ctx context.Context, identityID, postID uint) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	res := tx.Where("user_id = ? AND post_id = ?", identityID, postID).Delete(&models.Like{})
	if res.Error != nil {
		tx.Rollback()
		return res.Error
	}
	if res.RowsAffected > 0 {
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count - ?", 1)).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

// LikeCount counts likes from the likes table, the source of truth the
// denormalized column follows.
func (s *InteractionStore) LikeCount(ctx context.Context, postID uint) (int64, error) {
	if _, err := visiblePost(ctx, s.db, postID); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&n).Error
	return n, err
}

// AddComment attaches a comment to a post, optionally under a parent comment.
// The parent must belong to the same post, and its ancestor chain must reach
// a root within the depth bound. The chain walk also catches a corrupted
// parent reference that loops: a genuine chain terminates within the bound,
// so exceeding it means the reference cannot be accepted.
func (s *InteractionStore) AddComment(ctx context.Context, authorID, postID uint, content string, parentID *uint) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment cannot be blank", ErrValidation)
	}
	if _, err := visiblePost(ctx, s.db, postID); err != nil {
		return nil, err
	}
	author, err := activeUser(ctx, s.db, authorID)
	if err != nil {
		return nil, err
	}

	depth := 0
	if parentID != nil {
		var parent models.Comment
		if err := s.db.WithContext(ctx).First(&parent, *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: parent comment does not exist", ErrNotFound)
			}
			return nil, err
		}
		if parent.PostID != postID {
			return nil, fmt.Errorf("%w: parent belongs to a different post", ErrInvalidParent)
		}
		parentDepth, err := s.chainDepth(ctx, &parent)
		if err != nil {
			return nil, err
		}
		depth = parentDepth + 1
		if depth > s.cfg.MaxCommentDepth {
			return nil, fmt.Errorf("%w: replies may nest at most %d levels", ErrValidation, s.cfg.MaxCommentDepth)
		}
	}

	comment := models.Comment{
		UserID:   authorID,
		PostID:   postID,
		ParentID: parentID,
		Depth:    depth,
		Content:  content,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, err
	}
	comment.User = author
	return &comment, nil
}

// chainDepth walks parent links to the root and returns the number of edges
// walked. The walk refuses to take more than MaxCommentDepth steps, which
// doubles as the cycle guard.
func (s *InteractionStore) chainDepth(ctx context.Context, c *models.Comment) (int, error) {
	depth := 0
	cur := c
	for cur.ParentID != nil {
		depth++
		if depth > s.cfg.MaxCommentDepth {
			return 0, fmt.Errorf("%w: ancestor chain does not terminate", ErrInvalidParent)
		}
		var next models.Comment
		if err := s.db.WithContext(ctx).First(&next, *cur.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, fmt.Errorf("%w: ancestor chain is broken", ErrInvalidParent)
			}
			return 0, err
		}
		cur = &next
	}
	return depth, nil
}

// UpdateComment lets the comment's author and nobody else edit it.
func (s *InteractionStore) UpdateComment(ctx context.Context, id, requesterID uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment cannot be blank", ErrValidation)
	}
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if comment.UserID != requesterID {
		return nil, ErrForbidden
	}
	comment.Content = content
	if err := s.db.WithContext(ctx).Save(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// CommentNode is a comment with its replies attached, the shape read paths
// hand out.
type CommentNode struct {
	models.Comment
	Replies []*CommentNode `json:"replies"`
}

// ListComments returns the post's comment forest: top-level comments oldest
// first, replies nested under their parents oldest first. Comments by
// deactivated authors disappear along with everything beneath them.
func (s *InteractionStore) ListComments(ctx context.Context, postID uint) ([]*CommentNode, error) {
	if _, err := visiblePost(ctx, s.db, postID); err != nil {
		return nil, err
	}

	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Preload("User").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}

	// Parents precede children in creation order, so one pass suffices. A
	// node missing from the index was hidden, and skipping its children
	// hides the whole subtree.
	nodes := make(map[uint]*CommentNode, len(comments))
	roots := make([]*CommentNode, 0)
	for i := range comments {
		c := comments[i]
		if c.User == nil || !c.User.Active {
			continue
		}
		node := &CommentNode{Comment: c, Replies: []*CommentNode{}}
		if c.ParentID == nil {
			nodes[c.ID] = node
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok {
			continue
		}
		nodes[c.ID] = node
		parent.Replies = append(parent.Replies, node)
	}
	return roots, nil
}

// DeleteComment removes a comment and every reply beneath it in one
// transaction. Allowed to the comment's author and to the post's author.
// The subtree is gathered level by level, never taking more levels than the
// depth bound allows, so the traversal is finite even against corrupt data.
func (s *InteractionStore) DeleteComment(ctx context.Context, id, requesterID uint) error {
	var comment models.Comment
	if err := s.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, comment.PostID).Error; err != nil {
		return err
	}
	if requesterID != comment.UserID && requesterID != post.AuthorID {
		return ErrForbidden
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	doomed := []uint{comment.ID}
	frontier := []uint{comment.ID}
	for level := 0; level <= s.cfg.MaxCommentDepth && len(frontier) > 0; level++ {
		var next []uint
		if err := tx.Model(&models.Comment{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &next).Error; err != nil {
			tx.Rollback()
			return err
		}
		doomed = append(doomed, next...)
		frontier = next
	}
	if err := tx.Where("id IN ?", doomed).Delete(&models.Comment{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
