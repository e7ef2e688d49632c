package posts

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pulsesocial/pulse-server/cmd/utils"
	"github.com/pulsesocial/pulse-server/config"
	"github.com/pulsesocial/pulse-server/service"
	"github.com/pulsesocial/pulse-server/store"
	"github.com/pulsesocial/pulse-server/tasks"
)

// Handler serves post routes and the home feed.
type Handler struct {
	content *store.ContentStore
	feed    *store.FeedComposer
	images  *utils.ImageStore
	queue   tasks.Queue
	cfg     *config.Config
	logger  *zap.Logger
}

func NewHandler(content *store.ContentStore, feed *store.FeedComposer, images *utils.ImageStore, queue tasks.Queue, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		content: content,
		feed:    feed,
		images:  images,
		queue:   queue,
		cfg:     cfg,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/posts", h.CreatePost).Methods("POST")
	router.HandleFunc("/posts", h.GetPosts).Methods("GET")
	router.HandleFunc("/posts/{id}", h.GetPost).Methods("GET")
	router.HandleFunc("/posts/{id}", h.UpdatePost).Methods("PUT")
	router.HandleFunc("/posts/{id}", h.DeletePost).Methods("DELETE")
	router.HandleFunc("/feed", h.GetFeed).Methods("GET")
}

// CreatePost publishes a post from a multipart form: a content field, an
// optional image file, and an optional RFC3339 scheduled_at. A future
// scheduled_at stores the image now and hands publication to the task queue.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(h.cfg.MaxImageSize); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}
	content := r.FormValue("content")

	imagePath := ""
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		imagePath, err = h.images.SaveImage(file, header)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error saving image: %v", err), http.StatusBadRequest)
			return
		}
	}

	if raw := r.FormValue("scheduled_at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "scheduled_at must be RFC3339", http.StatusBadRequest)
			return
		}
		if delay := time.Until(at); delay > 0 {
			h.queue.EnqueueAfter(delay, tasks.Task{
				Type: tasks.TypeScheduledPost,
				Payload: tasks.ScheduledPostPayload{
					AuthorID:  userID,
					Content:   content,
					ImagePath: imagePath,
				},
			})
			service.WriteJSON(w, http.StatusAccepted, map[string]any{
				"status":       "scheduled",
				"scheduled_at": at,
			})
			return
		}
	}

	post, err := h.content.CreatePost(r.Context(), userID, content, imagePath)
	if err != nil {
		if imagePath != "" {
			h.images.DeleteImage(imagePath)
		}
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusCreated, post)
}

// GetPosts pages through posts, newest first. Query params: hashtag filters
// to posts mentioning it, my_posts=true restricts to the caller's own,
// cursor/limit drive pagination.
func (h *Handler) GetPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	filter := store.PostFilter{Hashtag: r.URL.Query().Get("hashtag")}
	if r.URL.Query().Get("my_posts") == "true" {
		filter.AuthorID = userID
	}
	cursor, err := store.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.content.ListPosts(r.Context(), filter, cursor, limit)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	writePage(w, page)
}

// GetPost returns one post.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	post, err := h.content.GetPost(r.Context(), id)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, post)
}

type updatePostRequest struct {
	Content   *string `json:"content"`
	ImagePath *string `json:"image_path"`
}

// UpdatePost edits the caller's own post.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	post, err := h.content.UpdatePost(r.Context(), id, userID, store.PostUpdate{
		Content:   req.Content,
		ImagePath: req.ImagePath,
	})
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, post)
}

// DeletePost deletes the caller's own post along with its likes and
// comments, and removes the stored image file once the row is gone.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	post, err := h.content.GetPost(r.Context(), id)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	if err := h.content.DeletePost(r.Context(), id, userID); err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	if post.ImagePath != "" {
		if err := h.images.DeleteImage(post.ImagePath); err != nil {
			h.logger.Warn("could not remove post image",
				zap.String("path", post.ImagePath),
				zap.Error(err))
		}
	}
	service.WriteJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}

// GetFeed returns one page of the caller's home timeline.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	cursor, err := store.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.feed.Timeline(r.Context(), userID, cursor, limit)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	writePage(w, page)
}

func writePage(w http.ResponseWriter, page *store.PostPage) {
	service.WriteJSON(w, http.StatusOK, map[string]any{
		"posts":       page.Posts,
		"next_cursor": store.EncodeCursor(page.NextCursor),
		"has_more":    page.HasMore,
	})
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return uint(id), err
}
