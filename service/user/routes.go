package user

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pulsesocial/pulse-server/cmd/models"
	"github.com/pulsesocial/pulse-server/cmd/utils"
	"github.com/pulsesocial/pulse-server/config"
	"github.com/pulsesocial/pulse-server/service"
	"github.com/pulsesocial/pulse-server/store"
	"github.com/pulsesocial/pulse-server/tasks"
)

const resetTokenTTL = 15 * time.Minute

// Handler serves account routes. Session mechanics (tokens, reset codes) live
// here against the db directly; everything about the account itself goes
// through the identity store.
type Handler struct {
	db       *gorm.DB
	identity *store.IdentityStore
	images   *utils.ImageStore
	queue    tasks.Queue
	cfg      *config.Config
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(db *gorm.DB, identity *store.IdentityStore, images *utils.ImageStore, queue tasks.Queue, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		db:       db,
		identity: identity,
		images:   images,
		queue:    queue,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes sets up account routes. Auth endpoints go on the public
// router, everything else behind the token middleware.
func (h *Handler) RegisterRoutes(public, protected *mux.Router) {
	public.HandleFunc("/register", h.HandleRegister).Methods("POST")
	public.HandleFunc("/login", h.HandleLogin).Methods("POST")
	public.HandleFunc("/refresh", h.HandleRefresh).Methods("POST")
	public.HandleFunc("/password-reset/request", h.HandlePasswordResetRequest).Methods("POST")
	public.HandleFunc("/password-reset/confirm", h.HandlePasswordResetConfirm).Methods("POST")

	protected.HandleFunc("/logout", h.HandleLogout).Methods("POST")
	protected.HandleFunc("/me", h.GetMe).Methods("GET")
	protected.HandleFunc("/me", h.UpdateMe).Methods("PUT")
	protected.HandleFunc("/me/picture", h.UploadProfilePicture).Methods("POST")
	protected.HandleFunc("/me/deactivate", h.DeactivateMe).Methods("POST")
	protected.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
}

// HandleRegister creates an account and signs it in.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.identity.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}

	access, refresh, err := h.issueTokens(user)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusCreated, map[string]any{
		"user":          user,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin verifies credentials and issues a fresh token pair.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}

	access, refresh, err := h.issueTokens(user)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]any{
		"user":          user,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// HandleRefresh trades a stored refresh token for a new pair. The old token
// dies in the same transaction that records the new one, so a replayed
// refresh token fails instead of minting a second session.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx := h.db.WithContext(r.Context()).Begin()
	if tx.Error != nil {
		service.WriteError(h.logger, w, tx.Error)
		return
	}

	var user models.User
	if err := tx.Where("refresh_token = ? AND refresh_token <> ''", req.RefreshToken).First(&user).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}
	if user.RefreshTokenExpiredAt.Before(time.Now()) || !user.Active {
		tx.Rollback()
		http.Error(w, "Refresh token expired", http.StatusUnauthorized)
		return
	}

	access, err := h.newAccessToken(user.ID)
	if err != nil {
		tx.Rollback()
		service.WriteError(h.logger, w, err)
		return
	}
	refresh, err := h.newRefreshToken(user.ID)
	if err != nil {
		tx.Rollback()
		service.WriteError(h.logger, w, err)
		return
	}

	err = tx.Model(&user).Updates(map[string]interface{}{
		"refresh_token":            refresh,
		"refresh_token_expired_at": time.Now().Add(h.cfg.RefreshTokenTTL),
	}).Error
	if err != nil {
		tx.Rollback()
		service.WriteError(h.logger, w, err)
		return
	}
	if err := tx.Commit().Error; err != nil {
		service.WriteError(h.logger, w, err)
		return
	}

	service.WriteJSON(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// HandleLogout drops the stored refresh token, ending the session's ability
// to renew itself. The access token simply runs out.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	err = h.db.WithContext(r.Context()).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", "").Error
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// GetMe returns the authenticated account.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.identity.Get(r.Context(), userID)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, user)
}

type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	Password    *string `json:"password"`
}

// UpdateMe applies a partial profile edit. Absent fields stay as they are;
// a password change goes through the same policy as registration.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req updateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Password != nil {
		if err := h.identity.UpdatePassword(r.Context(), userID, *req.Password); err != nil {
			service.WriteError(h.logger, w, err)
			return
		}
	}
	user, err := h.identity.UpdateProfile(r.Context(), userID, store.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, user)
}

// UploadProfilePicture stores a new profile image and drops the old file once
// the profile points at the new one.
func (h *Handler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	current, err := h.identity.Get(r.Context(), userID)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}

	if err := r.ParseMultipartForm(h.cfg.MaxImageSize); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	imageURL, err := h.images.SaveImage(file, header)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error saving image: %v", err), http.StatusBadRequest)
		return
	}

	user, err := h.identity.UpdateProfile(r.Context(), userID, store.ProfileUpdate{
		ProfilePicture: &imageURL,
	})
	if err != nil {
		h.images.DeleteImage(imageURL)
		service.WriteError(h.logger, w, err)
		return
	}
	if current.ProfilePicturePath != "" && current.ProfilePicturePath != imageURL {
		if err := h.images.DeleteImage(current.ProfilePicturePath); err != nil {
			h.logger.Warn("could not remove old profile picture",
				zap.String("path", current.ProfilePicturePath),
				zap.Error(err))
		}
	}
	service.WriteJSON(w, http.StatusOK, user)
}

// DeactivateMe retires the account.
func (h *Handler) DeactivateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.identity.Deactivate(r.Context(), userID); err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]string{"message": "Account deactivated"})
}

// GetUser returns another account's profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	user, err := h.identity.Get(r.Context(), uint(id))
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, user)
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandlePasswordResetRequest issues a reset code and mails it through the
// task queue. The response is the same whether or not the address exists.
func (h *Handler) HandlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	vague := map[string]string{"message": "If that account exists, a reset code has been sent"}

	user, err := h.identity.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			service.WriteJSON(w, http.StatusOK, vague)
			return
		}
		service.WriteError(h.logger, w, err)
		return
	}

	code, err := sixDigitCode()
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}

	// One live code per account: earlier codes die when a new one is issued.
	tx := h.db.WithContext(r.Context()).Begin()
	if tx.Error != nil {
		service.WriteError(h.logger, w, tx.Error)
		return
	}
	if err := tx.Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
		tx.Rollback()
		service.WriteError(h.logger, w, err)
		return
	}
	token := models.PasswordResetToken{
		UserID:    user.ID,
		Token:     code,
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := tx.Create(&token).Error; err != nil {
		tx.Rollback()
		service.WriteError(h.logger, w, err)
		return
	}
	if err := tx.Commit().Error; err != nil {
		service.WriteError(h.logger, w, err)
		return
	}

	h.queue.Enqueue(tasks.Task{
		Type:    tasks.TypeResetEmail,
		Payload: tasks.ResetEmailPayload{Email: user.Email, Code: code},
	})
	service.WriteJSON(w, http.StatusOK, vague)
}

type resetConfirmRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// HandlePasswordResetConfirm redeems a reset code for a new password.
func (h *Handler) HandlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.identity.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Invalid or expired reset code", http.StatusBadRequest)
			return
		}
		service.WriteError(h.logger, w, err)
		return
	}

	var token models.PasswordResetToken
	err = h.db.WithContext(r.Context()).
		Where("user_id = ? AND token = ? AND expires_at > ?", user.ID, req.Code, time.Now()).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Invalid or expired reset code", http.StatusBadRequest)
			return
		}
		service.WriteError(h.logger, w, err)
		return
	}

	if err := h.identity.UpdatePassword(r.Context(), user.ID, req.NewPassword); err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	// A code that survives redemption stays usable until it expires.
	if err := h.db.WithContext(r.Context()).Delete(&models.PasswordResetToken{}, token.ID).Error; err != nil {
		h.logger.Warn("could not remove redeemed reset code",
			zap.Uint("user_id", user.ID),
			zap.Error(err))
	}

	service.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
