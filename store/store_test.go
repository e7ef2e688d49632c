package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

// newTestDB opens a fresh in-memory database named after the test. The pool
// is pinned to one connection: every sqlite memory DSN is its own database,
// and a second pooled connection would see an empty one.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Post{},
		&models.Like{},
		&models.Comment{},
		&models.PasswordResetToken{},
	))
	return db
}

func testConfig() Config {
	return Config{
		MinPasswordLen:  8,
		BcryptCost:      4,
		FeedPageSize:    20,
		FeedMaxPageSize: 100,
		ListPageSize:    50,
		MaxCommentDepth: 8,
	}
}

// registerUser creates an account through the real registration path.
func registerUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	s := NewIdentityStore(db, testConfig())
	name := strings.SplitN(email, "@", 2)[0]
	u, err := s.Register(context.Background(), email, "correct horse battery", name)
	require.NoError(t, err)
	return u
}

// createPost inserts a post directly, bypassing validation, for read-path
// tests.
func createPost(t *testing.T, db *gorm.DB, authorID uint, content string) *models.Post {
	t.Helper()
	post := models.Post{AuthorID: authorID, Content: content}
	require.NoError(t, db.Create(&post).Error)
	return &post
}
