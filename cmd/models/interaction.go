package models

import (
	"time"

	"gorm.io/gorm"
)

// Follow is a directed edge: follower follows followee. The pair is unique and
// the row is hard-deleted on unfollow so the edge can be recreated later.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"column:follower_id;not null;index;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FolloweeID uint      `gorm:"column:followee_id;not null;index;uniqueIndex:idx_follows_pair" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`

	Follower *User `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Followee *User `gorm:"foreignKey:FolloweeID" json:"followee,omitempty"`
}

// Like is unique per (user, post) and hard-deleted on unlike, same reasoning
// as Follow.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"column:post_id;not null;index;uniqueIndex:idx_likes_user_post" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Comment sits in a reply tree rooted at its post. ParentID is nil for
// top-level comments; a parent must belong to the same post. Depth counts
// edges from the root comment and is bounded at insert time.
type Comment struct {
	gorm.Model
	UserID   uint   `gorm:"column:user_id;not null" json:"user_id"`
	PostID   uint   `gorm:"column:post_id;not null;index" json:"post_id"`
	ParentID *uint  `gorm:"column:parent_id;index" json:"parent_id,omitempty"`
	Depth    int    `gorm:"column:depth;not null;default:0" json:"depth"`
	Content  string `gorm:"column:content;type:text;not null" json:"content"`

	User    *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Replies []Comment `gorm:"foreignKey:ParentID" json:"-"`
}
