package interactions

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pulsesocial/pulse-server/cmd/utils"
	"github.com/pulsesocial/pulse-server/service"
	"github.com/pulsesocial/pulse-server/store"
)

// Handler serves likes and comment trees.
type Handler struct {
	interactions *store.InteractionStore
	logger       *zap.Logger
}

func NewHandler(interactions *store.InteractionStore, logger *zap.Logger) *Handler {
	return &Handler{interactions: interactions, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/posts/{id}/like", h.LikePost).Methods("POST")
	router.HandleFunc("/posts/{id}/unlike", h.UnlikePost).Methods("POST")
	router.HandleFunc("/posts/{id}/likes", h.GetLikes).Methods("GET")
	router.HandleFunc("/posts/{id}/comments", h.AddComment).Methods("POST")
	router.HandleFunc("/posts/{id}/comments", h.GetComments).Methods("GET")
	router.HandleFunc("/comments/{id}", h.UpdateComment).Methods("PUT")
	router.HandleFunc("/comments/{id}", h.DeleteComment).Methods("DELETE")
}

// LikePost likes a post. Liking twice is a quiet success.
func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	postID, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	if err := h.interactions.Like(r.Context(), userID, postID); err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]string{"message": "Liked"})
}

// UnlikePost removes a like. Unliking something never liked is a quiet
// success.
func (h *Handler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	postID, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	if err := h.interactions.Unlike(r.Context(), userID, postID); err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]string{"message": "Unliked"})
}

// GetLikes returns how many likes a post has.
func (h *Handler) GetLikes(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	n, err := h.interactions.LikeCount(r.Context(), postID)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]any{
		"post_id": postID,
		"likes":   n,
	})
}

type addCommentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id"`
}

// AddComment attaches a comment to a post, nested under parent_id when
// given.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	postID, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	comment, err := h.interactions.AddComment(r.Context(), userID, postID, req.Content, req.ParentID)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusCreated, comment)
}

// GetComments returns the post's comment forest, oldest first at every
// level.
func (h *Handler) GetComments(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	comments, err := h.interactions.ListComments(r.Context(), postID)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

// UpdateComment edits the caller's own comment.
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	commentID, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid comment ID", http.StatusBadRequest)
		return
	}
	var req updateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	comment, err := h.interactions.UpdateComment(r.Context(), commentID, userID, req.Content)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, comment)
}

// DeleteComment removes a comment and its replies. The comment's author and
// the post's author may do this.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	commentID, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid comment ID", http.StatusBadRequest)
		return
	}
	if err := h.interactions.DeleteComment(r.Context(), commentID, userID); err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]string{"message": "Comment deleted"})
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return uint(id), err
}
