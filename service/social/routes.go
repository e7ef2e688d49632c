package social

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pulsesocial/pulse-server/cmd/utils"
	"github.com/pulsesocial/pulse-server/service"
	"github.com/pulsesocial/pulse-server/store"
	"github.com/pulsesocial/pulse-server/tasks"
)

// Handler serves the follow graph routes.
type Handler struct {
	graph  *store.GraphStore
	queue  tasks.Queue
	logger *zap.Logger
}

func NewHandler(graph *store.GraphStore, queue tasks.Queue, logger *zap.Logger) *Handler {
	return &Handler{graph: graph, queue: queue, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{id}/follow", h.HandleFollow).Methods("POST")
	router.HandleFunc("/users/{id}/unfollow", h.HandleUnfollow).Methods("POST")
	router.HandleFunc("/users/{id}/followers", h.GetFollowers).Methods("GET")
	router.HandleFunc("/users/{id}/following", h.GetFollowing).Methods("GET")
}

// HandleFollow makes the caller follow {id}. Following again is a quiet
// success; only a genuinely new edge queues a notification task.
func (h *Handler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	followerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	followeeID, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	created, err := h.graph.Follow(r.Context(), followerID, followeeID)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	if created {
		h.queue.Enqueue(tasks.Task{
			Type:    tasks.TypeFollowCreated,
			Payload: tasks.FollowCreatedPayload{FollowerID: followerID, FolloweeID: followeeID},
		})
	}
	service.WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "Following",
		"followed": followeeID,
	})
}

// HandleUnfollow removes the edge; unfollowing someone never followed is a
// quiet success too.
func (h *Handler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	followerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	followeeID, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.graph.Unfollow(r.Context(), followerID, followeeID); err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]any{
		"message":    "Unfollowed",
		"unfollowed": followeeID,
	})
}

// GetFollowers pages through the accounts following {id}, newest first.
func (h *Handler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, h.graph.ListFollowers, "followers")
}

// GetFollowing pages through the accounts {id} follows, newest first.
func (h *Handler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, h.graph.ListFollowing, "following")
}

func (h *Handler) listEdges(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, id uint, cursor *store.Cursor, limit int) (*store.FollowPage, error), key string) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	cursor, err := store.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := list(r.Context(), id, cursor, limit)
	if err != nil {
		service.WriteError(h.logger, w, err)
		return
	}
	service.WriteJSON(w, http.StatusOK, map[string]any{
		key:           page.Users,
		"next_cursor": store.EncodeCursor(page.NextCursor),
		"has_more":    page.HasMore,
	})
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return uint(id), err
}
