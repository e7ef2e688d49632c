package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

// IdentityStore owns account records: registration, credential checks,
// profile edits and deactivation.
type IdentityStore struct {
	db  *gorm.DB
	cfg Config
}

func NewIdentityStore(db *gorm.DB, cfg Config) *IdentityStore {
	return &IdentityStore{db: db, cfg: cfg.withDefaults()}
}

// Register creates an account. Email uniqueness is enforced by the database
// constraint rather than a read-then-write check, so two concurrent
// registrations of the same address cannot both win.
func (s *IdentityStore) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrValidation)
	}
	if len(password) < s.cfg.MinPasswordLen {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrWeakCredential, s.cfg.MinPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Active:       true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies email and password. Unknown address, wrong password
// and deactivated account all fail the same way so callers cannot probe which
// emails exist.
func (s *IdentityStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidCredential
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredential
	}
	return &user, nil
}

// Get returns an active account by id.
func (s *IdentityStore) Get(ctx context.Context, id uint) (*models.User, error) {
	return activeUser(ctx, s.db, id)
}

// GetByEmail returns an active account by address. Used by the password reset
// flow, which must not reveal whether the address exists.
func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND active = ?", normalizeEmail(email), true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ProfileUpdate carries partial profile edits. Nil fields are left untouched,
// so callers can change one attribute without knowing the rest.
type ProfileUpdate struct {
	DisplayName    *string
	Bio            *string
	ProfilePicture *string
}

func (s *IdentityStore) UpdateProfile(ctx context.Context, id uint, upd ProfileUpdate) (*models.User, error) {
	user, err := activeUser(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display name cannot be blank", ErrValidation)
		}
		user.DisplayName = name
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}
	if upd.ProfilePicture != nil {
		user.ProfilePicturePath = *upd.ProfilePicture
	}
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// UpdatePassword rehashes and stores a new password, subject to the same
// policy as registration. The stored refresh token is cleared so stolen
// sessions die with the old password.
func (s *IdentityStore) UpdatePassword(ctx context.Context, id uint, password string) error {
	user, err := activeUser(ctx, s.db, id)
	if err != nil {
		return err
	}
	if len(password) < s.cfg.MinPasswordLen {
		return fmt.Errorf("%w: need at least %d characters", ErrWeakCredential, s.cfg.MinPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"password_hash": string(hash),
		"refresh_token": "",
	}).Error
}

// Deactivate retires an account. The row and the account's content stay in
// the database but every read path stops returning them, and the stored
// refresh token is cleared so the session cannot be renewed.
func (s *IdentityStore) Deactivate(ctx context.Context, id uint) error {
	user, err := activeUser(ctx, s.db, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"active":        false,
		"refresh_token": "",
	}).Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
