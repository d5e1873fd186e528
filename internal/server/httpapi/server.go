// Package httpapi exposes the relay services over an HTTP JSON API.
package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/telegraph-app/telegraph/internal/logging"
	"github.com/telegraph-app/telegraph/internal/server/config"
	"github.com/telegraph-app/telegraph/internal/server/models"
	"github.com/telegraph-app/telegraph/internal/server/services"
)

// Service interfaces consumed by the handlers. Declared here so tests can
// substitute fakes without touching the real services.
type (
	UserService interface {
		Register(ctx context.Context, username, password, phoneNumber string) (*models.User, error)
		Login(ctx context.Context, userName, password string) (*services.TokenPair, error)
		RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	}

	RelayService interface {
		CreateImage(ctx context.Context, creator string, payload []byte, editTime, hops int, nextUser string) (string, error)
		AdvanceImage(ctx context.Context, caller, imageID string, payload []byte, nextUser string) (int, error)
		QueryActionable(ctx context.Context, userName string) ([]*models.ImageSummary, error)
		FetchPayload(ctx context.Context, userName, imageID string) ([]byte, error)
	}

	VisibilityService interface {
		Acknowledge(ctx context.Context, imageID, userName string) error
	}

	FriendService interface {
		Add(ctx context.Context, userName, friend string) error
		List(ctx context.Context, userName string) ([]string, error)
	}

	Archiver interface {
		Enabled() bool
		PresignedGetURL(ctx context.Context, imageID string) (string, error)
	}
)

// Server wires the gin router to the services and carries the readiness
// state the dispatch gate checks. The services themselves are stateless;
// readiness flips exactly once, after migrations.
type Server struct {
	address    string
	jwtSecret  []byte
	logger     logging.Logger
	router     *gin.Engine
	ready      atomic.Bool
	users      UserService
	relay      RelayService
	visibility VisibilityService
	friends    FriendService
	archive    Archiver
}

// NewServer builds the router and returns a Server that is not yet ready:
// requests other than /health get 503 until SetReady is called.
func NewServer(cfg *config.Config, l logging.Logger, us UserService, rs RelayService, vs VisibilityService, fs FriendService, arch Archiver) *Server {
	s := &Server{
		address:    cfg.EndpointAddrHTTP,
		jwtSecret:  []byte(cfg.SecretKey),
		logger:     l.With("module", "httpapi"),
		users:      us,
		relay:      rs,
		visibility: vs,
		friends:    fs,
		archive:    arch,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSAllowOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.getHealth)

	api := router.Group("/", s.readinessGate())
	api.POST("/register", s.postRegister)
	api.POST("/login", s.postLogin)
	api.POST("/token/refresh", s.postTokenRefresh)

	authed := api.Group("/", s.accessTokenMiddleware())
	authed.POST("/images", s.postImage)
	authed.GET("/images", s.getImages)
	authed.GET("/images/:id", s.getImage)
	authed.GET("/images/:id/url", s.getImageURL)
	authed.POST("/images/:id/pass", s.postImagePass)
	authed.POST("/images/:id/seen", s.postImageSeen)
	authed.POST("/friends", s.postFriend)
	authed.GET("/friends", s.getFriends)

	router.NoRoute(func(ctx *gin.Context) { ctx.JSON(http.StatusNotFound, gin.H{}) })

	s.router = router
	return s
}

// SetReady opens the dispatch gate.
func (s *Server) SetReady() {
	s.ready.Store(true)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
