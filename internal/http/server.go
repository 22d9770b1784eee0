// Package http exposes the lifecycle engine's operation set over HTTP.
// Routing stays thin: handlers bind the request, resolve the caller, and
// delegate to the engine or scheduler.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	categoryrepo "affirmation-wave/backend/internal/category/repository"
	reflectionservice "affirmation-wave/backend/internal/reflection/service"
	userdomain "affirmation-wave/backend/internal/user/domain"
	userrepo "affirmation-wave/backend/internal/user/repository"
	waveservice "affirmation-wave/backend/internal/wave/service"
)

// principalHeader carries the external principal identifier resolved by the
// upstream auth layer. Identity verification itself happens out of process.
const principalHeader = "X-Principal-Id"

const userIDContextKey = "wave.user_id"

// Server provides HTTP endpoints for the reflection lifecycle engine.
type Server struct {
	echo       *echo.Echo
	engine     *reflectionservice.Engine
	scheduler  *waveservice.Scheduler
	users      userrepo.Repository
	categories categoryrepo.Repository
	logger     *zap.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(engine *reflectionservice.Engine, scheduler *waveservice.Scheduler, users userrepo.Repository, categories categoryrepo.Repository, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:       e,
		engine:     engine,
		scheduler:  scheduler,
		users:      users,
		categories: categories,
		logger:     logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1", s.resolvePrincipal)
	v1.GET("/categories", s.handleListCategories)
	v1.POST("/sessions", s.handleCreateSession)
	v1.GET("/sessions", s.handleListSessions)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.DELETE("/sessions/:id", s.handleDeleteSession)

	v1.POST("/sessions/:id/belief", s.handleSubmitBelief)
	v1.POST("/sessions/:id/belief/rerecord", s.handleReRecordBelief)
	v1.PATCH("/sessions/:id/belief", s.handleEditBelief)

	v1.POST("/sessions/:id/affirmations", s.handleGenerateAffirmation)
	v1.PATCH("/sessions/:id/affirmations/selected", s.handleEditAffirmation)
	v1.POST("/sessions/:id/affirmations/:affirmationId/select", s.handleSelectAffirmation)
	v1.DELETE("/sessions/:id/affirmations/:affirmationId", s.handleDeleteAffirmation)

	v1.POST("/sessions/:id/voice", s.handleRegenerateVoice)
	v1.POST("/sessions/:id/recording", s.handleRecordUserAffirmation)
	v1.POST("/sessions/:id/playback", s.handleTrackPlayback)

	v1.POST("/sessions/:id/waves", s.handleCreateWave)
	v1.PATCH("/waves/:id", s.handleUpdateWave)
	v1.DELETE("/waves/:id", s.handleDeleteWave)
}

// resolvePrincipal maps the external principal header to the internal user
// record, provisioning one on first contact. The internal user id is stored
// on the request context for handlers.
func (s *Server) resolvePrincipal(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal := c.Request().Header.Get(principalHeader)
		if principal == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing principal")
		}
		ctx := c.Request().Context()
		u, err := s.users.GetByPrincipal(ctx, principal)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve principal")
		}
		if u == nil {
			now := time.Now()
			u = &userdomain.User{
				ID:          uuid.NewString(),
				PrincipalID: principal,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.users.Create(ctx, u); err != nil {
				// Lost a provisioning race; the row exists now.
				u, err = s.users.GetByPrincipal(ctx, principal)
				if err != nil || u == nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "failed to provision user")
				}
			}
		}
		c.Set(userIDContextKey, u.ID)
		return next(c)
	}
}

func (s *Server) userID(c echo.Context) string {
	id, _ := c.Get(userIDContextKey).(string)
	return id
}

// Start begins serving on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}
