// internal/api/server.go
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/registration/fulfillment"
	"registration-workflow/internal/registration/orchestrator"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	HeaderCallerRole     = "X-Caller-Role"
	HeaderCallerClientID = "X-Caller-Client-Id"

	callerKey = "caller"
	entryKey  = "session"
)

// Opener mounts a form session.
type Opener interface {
	Open(ctx context.Context, req orchestrator.OpenRequest) (*orchestrator.Session, error)
}

// ReadinessCheck reports whether a backing service is reachable.
type ReadinessCheck func(ctx context.Context) error

type caller struct {
	role fulfillment.Role
	id   string
}

// Server exposes form sessions over HTTP.
type Server struct {
	router   *gin.Engine
	opener   Opener
	sessions *SessionRegistry
	checks   map[string]ReadinessCheck
	logger   logger.Logger
	srv      *http.Server
}

func NewServer(opener Opener, sessions *SessionRegistry, checks map[string]ReadinessCheck, zlog *zap.Logger, log logger.Logger) *Server {
	s := &Server{
		router:   gin.New(),
		opener:   opener,
		sessions: sessions,
		checks:   checks,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
	}

	s.router.Use(ginzap.Ginzap(zlog, time.RFC3339, true))
	s.router.Use(ginzap.RecoveryWithZap(zlog, true))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	s.router.GET("/ready", s.ready)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1", s.identify)
	{
		v1.POST("/sessions", s.openSession)

		sess := v1.Group("/sessions/:id", s.loadSession)
		{
			sess.GET("", s.viewSession)
			sess.DELETE("", s.closeSession)
			sess.PUT("/steps/:step", s.saveStep)
			sess.POST("/next", s.next)
			sess.POST("/back", s.back)
			sess.POST("/refresh", s.refresh)
			sess.POST("/team-fill", s.requestTeamFill)
			sess.DELETE("/team-fill", s.cancelTeamFill)
			sess.POST("/client-fill", s.requestClientFill)
			sess.DELETE("/client-fill", s.cancelClientFill)
		}
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", map[string]interface{}{"address": addr})
	if err := s.srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and closes every open session.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	s.sessions.Purge()
	return err
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

// identify reads the caller from trusted headers set by the gateway in
// front of this service.
func (s *Server) identify(c *gin.Context) {
	role, err := fulfillment.ParseRole(c.GetHeader(HeaderCallerRole))
	if err != nil {
		s.abort(c, errors.NewInvalidInputError(HeaderCallerRole+" must be applicant or admin"))
		return
	}
	id := c.GetHeader(HeaderCallerClientID)
	if id == "" {
		s.abort(c, errors.NewInvalidInputError(HeaderCallerClientID+" is required"))
		return
	}
	c.Set(callerKey, caller{role: role, id: id})
	c.Next()
}

// loadSession resolves :id to a session owned by the caller.
func (s *Server) loadSession(c *gin.Context) {
	id := c.Param("id")
	e, err := s.sessions.get(id)
	if err != nil {
		s.abort(c, err)
		return
	}
	who := callerOf(c)
	if e.session.Role() != who.role || e.session.ViewerID() != who.id {
		s.abort(c, errors.NewSessionNotFoundError(id))
		return
	}
	c.Set(entryKey, e)
	c.Next()
}

func callerOf(c *gin.Context) caller {
	return c.MustGet(callerKey).(caller)
}

func entryOf(c *gin.Context) *entry {
	return c.MustGet(entryKey).(*entry)
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error *errors.StandardError `json:"error"`
}

func (s *Server) abort(c *gin.Context, err error) {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		s.logger.Error("unhandled request error", map[string]interface{}{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		stdErr = &errors.StandardError{
			Code:      errors.ErrCodeInternal,
			Message:   "Internal server error",
			Timestamp: time.Now().UTC(),
		}
	}
	c.AbortWithStatusJSON(StatusFor(stdErr.Code), errorResponse{Error: stdErr})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeMissingIdentifiers:
		return http.StatusBadRequest
	case errors.ErrCodeEntitlementMissing:
		return http.StatusPaymentRequired
	case errors.ErrCodeActorNotPermitted:
		return http.StatusForbidden
	case errors.ErrCodeSessionNotFound, errors.ErrCodeDraftNotFound:
		return http.StatusNotFound
	case errors.ErrCodeAlreadyInProgress:
		return http.StatusAccepted
	case errors.ErrCodeInvalidTransition, errors.ErrCodeNavigationDenied, errors.ErrCodeFieldsDisabled:
		return http.StatusConflict
	case errors.ErrCodeApplicationIncomplete:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeGatewayUnavailable, errors.ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
