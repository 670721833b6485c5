// Package httpapi exposes a workspace as a small JSON API for local
// front-ends. Every handler goes through the collection operations.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/tasknotes/internal/errs"
	"github.com/nhle/tasknotes/internal/workspace"
)

// Server provides HTTP handlers over a workspace.
type Server struct {
	engine *gin.Engine
	ws     *workspace.Workspace
	log    *zap.Logger
}

// New constructs the server with routes and middleware configured.
func New(ws *workspace.Workspace, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	srv := &Server{engine: router, ws: ws, log: log}
	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/status", s.handleStatus)

		api.POST("/session", s.handleSignIn)
		api.DELETE("/session", s.handleSignOut)

		api.POST("/sync/refresh", s.handleRefresh)
		api.POST("/sync/retry", s.handleRetry)

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.GET("/board", s.handleBoard)
			tasks.POST("", s.handleCreateTask)
			tasks.PATCH(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
			tasks.POST(":id/toggle", s.handleToggleTask)
		}

		categories := api.Group("/categories")
		{
			categories.GET("", s.handleListCategories)
			categories.POST("", s.handleCreateCategory)
			categories.PATCH(":id", s.handleUpdateCategory)
			categories.DELETE(":id", s.handleDeleteCategory)
		}

		notes := api.Group("/notes")
		{
			notes.GET("", s.handleListNotes)
			notes.POST("", s.handleCreateNote)
			notes.PATCH(":id", s.handleUpdateNote)
			notes.DELETE(":id", s.handleDeleteNote)
			notes.POST(":id/pin", s.handleTogglePin)
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ws.Status())
}

func (s *Server) handleRefresh(c *gin.Context) {
	if err := s.ws.Refresh(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ws.Status())
}

func (s *Server) handleRetry(c *gin.Context) {
	if err := s.ws.Retry(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ws.Status())
}

type signInRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`
}

func (s *Server) handleSignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tok, err := s.ws.Session.SignIn(req.OwnerID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner_id": req.OwnerID, "token": tok})
}

func (s *Server) handleSignOut(c *gin.Context) {
	if err := s.ws.Session.SignOut(); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrRemoteRejected), errors.Is(err, errs.ErrSubscription):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it as a JSON payload. Validation errors
// carry the offending field.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	body := gin.H{"error": err.Error()}
	if field := errs.FieldOf(err); field != "" {
		body["field"] = field
	}
	c.JSON(status, body)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
