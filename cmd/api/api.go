package api

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pulsesocial/pulse-server/cmd/utils"
	"github.com/pulsesocial/pulse-server/config"
	"github.com/pulsesocial/pulse-server/service/interactions"
	"github.com/pulsesocial/pulse-server/service/posts"
	"github.com/pulsesocial/pulse-server/service/social"
	"github.com/pulsesocial/pulse-server/service/user"
	"github.com/pulsesocial/pulse-server/store"
	"github.com/pulsesocial/pulse-server/tasks"
)

type APIServer struct {
	address string
	db      *gorm.DB
	cfg     *config.Config
	logger  *zap.Logger
}

func NewApiServer(address string, db *gorm.DB, cfg *config.Config, logger *zap.Logger) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run wires the stores, the task queue and the routers, then serves until
// the listener dies.
func (s *APIServer) Run() error {
	storeCfg := store.Config{
		MinPasswordLen:  s.cfg.MinPasswordLen,
		BcryptCost:      s.cfg.BcryptCost,
		FeedPageSize:    s.cfg.FeedPageSize,
		FeedMaxPageSize: s.cfg.FeedMaxPageSize,
		ListPageSize:    s.cfg.ListPageSize,
		MaxCommentDepth: s.cfg.MaxCommentDepth,
	}
	identityStore := store.NewIdentityStore(s.db, storeCfg)
	graphStore := store.NewGraphStore(s.db, storeCfg)
	contentStore := store.NewContentStore(s.db, storeCfg)
	interactionStore := store.NewInteractionStore(s.db, storeCfg)
	feedComposer := store.NewFeedComposer(s.db, storeCfg)

	images := utils.NewImageStore(s.cfg.UploadDir, s.cfg.MaxImageSize)
	mailer := user.NewMailer(s.cfg)

	queue := tasks.NewInProc(s.logger)
	queue.Handle(tasks.TypeScheduledPost, func(ctx context.Context, task tasks.Task) error {
		p, ok := task.Payload.(tasks.ScheduledPostPayload)
		if !ok {
			return nil
		}
		_, err := contentStore.CreatePost(ctx, p.AuthorID, p.Content, p.ImagePath)
		return err
	})
	queue.Handle(tasks.TypeFollowCreated, func(ctx context.Context, task tasks.Task) error {
		if p, ok := task.Payload.(tasks.FollowCreatedPayload); ok {
			s.logger.Info("new follower",
				zap.Uint("follower_id", p.FollowerID),
				zap.Uint("followee_id", p.FolloweeID))
		}
		return nil
	})
	queue.Handle(tasks.TypeResetEmail, func(ctx context.Context, task tasks.Task) error {
		p, ok := task.Payload.(tasks.ResetEmailPayload)
		if !ok {
			return nil
		}
		return mailer.SendResetCode(p.Email, p.Code)
	})

	router := mux.NewRouter()
	public := router.PathPrefix("/api/v1").Subrouter()
	protected := router.PathPrefix("/api/v1").Subrouter()
	protected.Use(utils.AuthMiddleware(s.cfg.JWTSecret))

	userHandler := user.NewHandler(s.db, identityStore, images, queue, s.cfg, s.logger)
	userHandler.RegisterRoutes(public, protected)

	socialHandler := social.NewHandler(graphStore, queue, s.logger)
	socialHandler.RegisterRoutes(protected)

	postsHandler := posts.NewHandler(contentStore, feedComposer, images, queue, s.cfg, s.logger)
	postsHandler.RegisterRoutes(protected)

	interactionsHandler := interactions.NewHandler(interactionStore, s.logger)
	interactionsHandler.RegisterRoutes(protected)

	fileServer := http.FileServer(http.Dir(images.Dir()))
	router.PathPrefix("/images/").Handler(http.StripPrefix("/images/", fileServer))

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	chain := handlers.RecoveryHandler()(cors(handlers.CombinedLoggingHandler(os.Stdout, router)))

	s.logger.Info("server running", zap.String("address", s.address))
	return http.ListenAndServe(s.address, chain)
}
