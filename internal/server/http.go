// Package server exposes the HTTP surface: the OpenAI-compatible chat
// completions route, the thread/message/share API, health, and metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relaychat/internal/chat"
	"relaychat/internal/core"
	"relaychat/internal/providers"
	"relaychat/internal/ratelimit"
	"relaychat/internal/store"
)

// Repository is the slice of the document store the HTTP handlers need.
// *store.Store satisfies it; tests substitute fakes.
type Repository interface {
	CreateThread(ctx context.Context, nt store.NewThread) (*store.Thread, error)
	GetThread(ctx context.Context, threadID string) (*store.Thread, error)
	ListThreadsByUser(ctx context.Context, userID string) ([]store.Thread, error)
	UpdateThreadVisibility(ctx context.Context, threadID string, visibility store.Visibility) (*store.Thread, error)
	DeleteThread(ctx context.Context, threadID string) (int64, error)
	BranchFromMessage(ctx context.Context, userID, originalThreadID, anchorMessageID string) (*store.Thread, error)

	CreateMessage(ctx context.Context, nm store.NewMessage) (*store.Message, error)
	GetMessage(ctx context.Context, messageID string) (*store.Message, error)
	ThreadForMessage(ctx context.Context, msg *store.Message) (*store.Thread, error)
	ListMessagesByThread(ctx context.Context, threadID string) ([]store.Message, error)
	UpdateMessageContent(ctx context.Context, messageID, content string, parts any) (*store.Message, error)
	DeleteMessage(ctx context.Context, messageID string) (int64, error)
	DeleteTrailingMessages(ctx context.Context, anchorMessageID string) (int64, error)
	DeleteMessageAndTrailing(ctx context.Context, anchorMessageID string) (int64, error)

	CreateShare(ctx context.Context, token, threadID, userID, sharedUpToMessageID string) (*store.PartialShare, error)
	ListSharesByUser(ctx context.Context, userID string) ([]store.PartialShare, error)
	DeleteShare(ctx context.Context, token, userID string) (int64, error)
	GetSharedThreadData(ctx context.Context, token string) (*store.SharedThreadData, error)

	EnsureUser(ctx context.Context, externalID string) (*store.User, error)

	Ping(ctx context.Context) error
}

// RateLimiter gates the chat completions route. A nil limiter disables
// rate limiting.
type RateLimiter interface {
	Limit(ctx context.Context, identifier string) (*ratelimit.Result, error)
}

// Config holds server configuration.
type Config struct {
	// JWTSecret signs and verifies app session tokens on the /api routes.
	JWTSecret string
	// BodyLimit bounds request body size, echo syntax ("2M").
	BodyLimit string
}

// Server wires the handlers onto an echo instance.
type Server struct {
	echo      *echo.Echo
	cfg       Config
	providers *providers.Client
	conv      *chat.Conversation
	titles    *chat.TitleGenerator
	repo      Repository
	limiter   RateLimiter
}

// New assembles the server. limiter may be nil.
func New(cfg Config, providerClient *providers.Client, conv *chat.Conversation, titles *chat.TitleGenerator, repo Repository, limiter RateLimiter) *Server {
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "2M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		cfg:       cfg,
		providers: providerClient,
		conv:      conv,
		titles:    titles,
		repo:      repo,
		limiter:   limiter,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= 500 {
				level = slog.LevelError
			}
			slog.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			)
			return nil
		},
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	// OpenAI-compatible surface. The bearer token here is a provider key,
	// so this route sits outside the app auth.
	e.POST("/v1/chat/completions", s.handleChatCompletions)

	e.GET("/api/health", s.handleHealth)
	e.GET("/api/shares/:token/data", s.handleSharedThreadData)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api", s.jwtAuth())

	api.POST("/threads", s.handleCreateThread)
	api.GET("/threads", s.handleListThreads)
	api.GET("/threads/:id", s.handleGetThread)
	api.DELETE("/threads/:id", s.handleDeleteThread)
	api.PUT("/threads/:id/visibility", s.handleUpdateThreadVisibility)
	api.POST("/threads/:id/branch", s.handleBranchThread)
	api.POST("/threads/:id/generate-title", s.handleGenerateTitle)
	api.POST("/threads/:id/messages", s.handleCreateMessage)
	api.GET("/threads/:id/messages", s.handleListMessages)

	api.PUT("/messages/:id", s.handleUpdateMessage)
	api.DELETE("/messages/:id", s.handleDeleteMessage)
	api.POST("/messages/:id/delete-trailing", s.handleDeleteTrailing)
	api.POST("/messages/:id/delete-inclusive-trailing", s.handleDeleteInclusiveTrailing)

	api.POST("/shares", s.handleCreateShare)
	api.GET("/shares", s.handleListShares)
	api.DELETE("/shares/:token", s.handleDeleteShare)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.repo.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start blocks serving on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	slog.Info("starting http server", "addr", addr)
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP exposes the router for httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// writeError maps an error to its HTTP representation. Proxy errors carry
// their own status and body; store sentinels map to 404/409; anything else
// is an opaque 500.
func writeError(c echo.Context, err error) error {
	var pe *core.ProxyError
	switch {
	case errors.As(err, &pe):
		if pe.HTTPStatusCode() >= 500 {
			slog.Error("request failed", "type", pe.Type, "provider", pe.Provider, "error", err)
		}
		return c.JSON(pe.HTTPStatusCode(), pe.ToJSON())
	case errors.Is(err, store.ErrThreadMissing):
		slog.Error("data inconsistency", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("internal_error", err.Error()))
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody(string(core.ErrorTypeNotFound), "resource not found"))
	case errors.Is(err, store.ErrShareExists):
		return c.JSON(http.StatusConflict, errorBody("conflict", err.Error()))
	default:
		slog.Error("request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
	}
}

func errorBody(errType, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errType,
			"message": message,
		},
	}
}
