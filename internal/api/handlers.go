// internal/api/handlers.go
package api

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/models"
	"registration-workflow/internal/registration/orchestrator"

	"github.com/gin-gonic/gin"
)

type openRequest struct {
	TicketID         string                  `json:"ticketId"`
	PaymentReference string                  `json:"paymentReference"`
	OnBehalf         *models.OnBehalfContext `json:"onBehalf"`
	InitialData      *models.Application     `json:"initialData"`
}

type stepURI struct {
	Step int `uri:"step" binding:"required,min=1,max=3"`
}

// sessionResponse wraps a view with what the host should do next.
type sessionResponse struct {
	orchestrator.View
	Exited bool `json:"exited,omitempty"`
}

func (s *Server) openSession(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		s.abort(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	who := callerOf(c)
	e := &entry{}
	openReq := orchestrator.OpenRequest{
		Viewer:           who.role,
		ViewerID:         who.id,
		OnBehalf:         req.OnBehalf,
		InitialData:      req.InitialData,
		TicketID:         req.TicketID,
		PaymentReference: req.PaymentReference,
		// the host closes admin sessions once the submission response is sent
		Close: func(string) {},
		Exit:  func() { e.exited.Store(true) },
	}
	if clientID, ticketID := c.Query("clientId"), c.Query("ticketId"); clientID != "" || ticketID != "" {
		openReq.Query = &models.OnBehalfContext{ClientID: clientID, TicketID: ticketID}
	}

	sess, err := s.opener.Open(c.Request.Context(), openReq)
	if err != nil {
		s.abort(c, err)
		return
	}
	e.session = sess
	s.sessions.put(e)

	c.JSON(http.StatusCreated, sessionResponse{View: sess.View()})
}

func (s *Server) viewSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionResponse{View: entryOf(c).session.View()})
}

func (s *Server) closeSession(c *gin.Context) {
	s.sessions.Remove(entryOf(c).session.ID())
	c.Status(http.StatusNoContent)
}

func (s *Server) saveStep(c *gin.Context) {
	var uri stepURI
	if err := c.ShouldBindUri(&uri); err != nil {
		s.abort(c, errors.NewInvalidInputError("step must be between 1 and 3"))
		return
	}
	var payload models.StepPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.abort(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	sess := entryOf(c).session
	if _, err := sess.SaveStep(c.Request.Context(), uri.Step, payload); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{View: sess.View()})
}

func (s *Server) next(c *gin.Context) {
	sess := entryOf(c).session
	if err := sess.Next(c.Request.Context()); err != nil {
		if errors.CodeOf(err) == errors.ErrCodeAlreadyInProgress {
			// another submission of this draft is running; nothing to show the user
			c.JSON(http.StatusAccepted, sessionResponse{View: sess.View()})
			return
		}
		s.abort(c, err)
		return
	}

	view := sess.View()
	if view.Result != nil && view.Result.Closed {
		s.sessions.Remove(sess.ID())
	}
	c.JSON(http.StatusOK, sessionResponse{View: view})
}

func (s *Server) back(c *gin.Context) {
	e := entryOf(c)
	if err := e.session.Back(); err != nil {
		s.abort(c, err)
		return
	}

	resp := sessionResponse{View: e.session.View()}
	if e.exited.Load() {
		resp.Exited = true
		s.sessions.Remove(e.session.ID())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) refresh(c *gin.Context) {
	sess := entryOf(c).session
	if err := sess.Refresh(c.Request.Context()); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{View: sess.View()})
}

func (s *Server) requestTeamFill(c *gin.Context) {
	s.delegate(c, (*orchestrator.Session).RequestTeamFill)
}

func (s *Server) cancelTeamFill(c *gin.Context) {
	s.delegate(c, (*orchestrator.Session).CancelTeamFill)
}

func (s *Server) requestClientFill(c *gin.Context) {
	s.delegate(c, (*orchestrator.Session).RequestClientFill)
}

func (s *Server) cancelClientFill(c *gin.Context) {
	s.delegate(c, (*orchestrator.Session).CancelClientFill)
}

type delegateFunc func(*orchestrator.Session, context.Context) (*orchestrator.ActionResult, error)

func (s *Server) delegate(c *gin.Context, action delegateFunc) {
	sess := entryOf(c).session
	res, err := action(sess, c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
