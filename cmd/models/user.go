package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered identity. Accounts are never hard-deleted; deactivation
// flips Active to false and read paths stop showing the account's content.
type User struct {
	gorm.Model
	Email              string `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	PasswordHash       string `gorm:"column:password_hash;size:255;not null" json:"-"`
	DisplayName        string `gorm:"column:display_name;size:255;not null" json:"display_name"`
	Bio                string `gorm:"column:bio;type:text" json:"bio"`
	ProfilePicturePath string `gorm:"column:profile_picture_path;size:255" json:"profile_picture_path,omitempty"`
	Active             bool   `gorm:"column:active;not null;default:true" json:"active"`

	Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	Token     string    `gorm:"size:10;not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
