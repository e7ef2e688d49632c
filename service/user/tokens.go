package user

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/pulsesocial/pulse-server/cmd/models"
)

// issueTokens mints an access/refresh pair and stores the refresh token on
// the user row. Only one refresh token is live per account.
func (h *Handler) issueTokens(user *models.User) (string, string, error) {
	access, err := h.newAccessToken(user.ID)
	if err != nil {
		return "", "", err
	}
	refresh, err := h.newRefreshToken(user.ID)
	if err != nil {
		return "", "", err
	}
	err = h.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"refresh_token":            refresh,
		"refresh_token_expired_at": time.Now().Add(h.cfg.RefreshTokenTTL),
	}).Error
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (h *Handler) newAccessToken(userID uint) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.cfg.AccessTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// newRefreshToken builds an opaque token from random bytes plus an HMAC that
// ties it to the user and the server secret. The database row is what makes
// it valid; the HMAC just keeps tokens non-forgeable offline.
func (h *Handler) newRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(h.cfg.JWTSecret))
	mac.Write([]byte(fmt.Sprintf("%d", userID)))
	mac.Write(b)
	signature := mac.Sum(nil)

	return fmt.Sprintf("%d_%x_%x", userID, b, signature), nil
}
