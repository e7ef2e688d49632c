package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

// ContentStore owns posts.
type ContentStore struct {
	db  *gorm.DB
	cfg Config
}

func NewContentStore(db *gorm.DB, cfg Config) *ContentStore {
	return &ContentStore{db: db, cfg: cfg.withDefaults()}
}

// CreatePost publishes a post for an active author. A post needs text or an
// image; both blank is a validation failure.
func (s *ContentStore) CreatePost(ctx context.Context, authorID uint, content, imagePath string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" && imagePath == "" {
		return nil, fmt.Errorf("%w: post needs text or an image", ErrValidation)
	}
	author, err := activeUser(ctx, s.db, authorID)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		AuthorID:  authorID,
		Content:   content,
		ImagePath: imagePath,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, err
	}
	post.Author = author
	return &post, nil
}

// GetPost returns a post whose author is still active.
func (s *ContentStore) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = posts.author_id AND users.active = ?", true).
		Where("posts.id = ?", id).
		Preload("Author").
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// PostFilter narrows ListPosts. Zero fields do not filter.
type PostFilter struct {
	AuthorID uint   // only posts by this author
	Hashtag  string // only posts mentioning #tag, leading # optional
}

// PostPage is one page of posts, newest first.
type PostPage struct {
	Posts      []models.Post `json:"posts"`
	NextCursor *Cursor       `json:"-"`
	HasMore    bool          `json:"has_more"`
}

// ListPosts pages through posts by visible authors, newest first with ids
// breaking timestamp ties. Pagination is keyset on (created_at, id) so pages
// hold still while new posts land above the cursor.
func (s *ContentStore) ListPosts(ctx context.Context, filter PostFilter, cursor *Cursor, limit int) (*PostPage, error) {
	limit = pageLimit(limit, s.cfg.FeedPageSize, s.cfg.FeedMaxPageSize)

	q := s.db.WithContext(ctx).Model(&models.Post{}).
		Joins("JOIN users ON users.id = posts.author_id AND users.active = ?", true)
	if filter.AuthorID != 0 {
		q = q.Where("posts.author_id = ?", filter.AuthorID)
	}
	if filter.Hashtag != "" {
		tag := "#" + strings.TrimPrefix(strings.TrimSpace(filter.Hashtag), "#")
		q = q.Where("posts.content LIKE ?", "%"+tag+"%")
	}
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

// PostUpdate carries partial post edits, nil meaning keep.
type PostUpdate struct {
	Content   *string
	ImagePath *string
}

// UpdatePost lets the author and nobody else edit a post. The edit may not
// leave the post with neither text nor image.
func (s *ContentStore) UpdatePost(ctx context.Context, id, requesterID uint, upd PostUpdate) (*models.Post, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != requesterID {
		return nil, ErrForbidden
	}
	if upd.Content != nil {
		post.Content = strings.TrimSpace(*upd.Content)
	}
	if upd.ImagePath != nil {
		post.ImagePath = *upd.ImagePath
	}
	if post.Content == "" && post.ImagePath == "" {
		return nil, fmt.Errorf("%w: post needs text or an image", ErrValidation)
	}
	if err := s.db.WithContext(ctx).Save(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post together with its likes and comments, author
// only. All three deletes ride one transaction so no orphaned interaction can
// survive a crash between them.
func (s *ContentStore) DeletePost(ctx context.Context, id, requesterID uint) error {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != requesterID {
		return ErrForbidden
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	// The post goes first; its row lock orders concurrent likes against the
	// sweeps below.
	if err := tx.Delete(&models.Post{}, id).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func postPage(posts []models.Post, limit int) *PostPage {
	page := &PostPage{HasMore: len(posts) > limit}
	if page.HasMore {
		posts = posts[:limit]
	}
	page.Posts = posts
	if page.HasMore && len(posts) > 0 {
		last := posts[len(posts)-1]
		page.NextCursor = cursorFor(last.CreatedAt, last.ID)
	}
	return page
}
