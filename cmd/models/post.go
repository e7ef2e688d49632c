package models

import "gorm.io/gorm"

// Post belongs to its author. A post must carry text or an image; deleting one
// removes its likes and comments in the same transaction. LikesCount is a
// denormalized counter kept in step with the likes table.
type Post struct {
	gorm.Model
	AuthorID   uint   `gorm:"column:author_id;not null;index" json:"author_id"`
	Content    string `gorm:"column:content;type:text" json:"content"`
	ImagePath  string `gorm:"column:image_path;size:255" json:"image_path,omitempty"`
	LikesCount int    `gorm:"column:likes_count;not null;default:0" json:"likes_count"`

	Author   *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Likes    []Like    `gorm:"foreignKey:PostID" json:"-"`
	Comments []Comment `gorm:"foreignKey:PostID" json:"-"`
}
