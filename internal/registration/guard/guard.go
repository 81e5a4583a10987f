// internal/registration/guard/guard.go
package guard

import (
	"context"

	"registration-workflow/internal/common/config"
	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/common/metrics"
	"registration-workflow/internal/models"
	"registration-workflow/internal/registration/draft"
	"registration-workflow/internal/registration/fulfillment"
)

// TransientClearer drops draft-scoped markers after a successful submission.
type TransientClearer interface {
	ClearTransient(ctx context.Context, ownerID, ticketID string) error
}

type SubmitRequest struct {
	Application *models.Application
	Actor       fulfillment.Role
	// AdminID scopes the "new" guard key for an on-behalf admin without a ticket.
	AdminID string
	// Close is the host's close action for admin sessions. When nil the admin
	// is routed to the admin list.
	Close func(ticketID string)
	// Current reports whether the submitting screen is still mounted. A
	// finished submission never closes a screen the admin already left.
	Current func() bool
}

type Result struct {
	TicketID string `json:"ticketId"`
	Route    string `json:"route,omitempty"`
	Closed   bool   `json:"closed"`
}

// Guard performs at most one final submission per draft at a time.
type Guard struct {
	locker    Locker
	store     draft.Store
	transient TransientClearer
	routes    config.RoutesConfig
	logger    logger.Logger
}

func New(locker Locker, store draft.Store, transient TransientClearer, routes config.RoutesConfig, log logger.Logger) *Guard {
	return &Guard{
		locker:    locker,
		store:     store,
		transient: transient,
		routes:    routes,
		logger:    log.WithFields(map[string]interface{}{"component": "submission-guard"}),
	}
}

// Key returns the guard marker name for a draft.
func Key(req SubmitRequest) string {
	app := req.Application
	if app.TicketID != "" {
		return "submitting_" + app.TicketID
	}
	scope := app.OwnerClientID
	if req.Actor == fulfillment.RoleAdmin && req.AdminID != "" {
		scope = req.AdminID
	}
	return scope + ":submitting_new"
}

// Submit finalizes the draft. The marker is set before any write and
// cleared on every outcome.
func (g *Guard) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	if req.Application == nil {
		return nil, errors.NewInvalidInputError("application is required")
	}

	key := Key(req)
	role := req.Actor.String()

	acquired, err := g.locker.TryAcquire(ctx, key)
	if err != nil {
		metrics.Submissions.WithLabelValues(role, "guard_error").Inc()
		return nil, errors.NewSubmitFailedError(err)
	}
	if !acquired {
		metrics.GuardRejections.Inc()
		g.logger.Debug("duplicate submission ignored", map[string]interface{}{"guardKey": key})
		return nil, errors.NewAlreadyInProgressError(key)
	}
	defer func() {
		if err := g.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			g.logger.Error("failed to release submission guard", map[string]interface{}{
				"guardKey": key,
				"error":    err.Error(),
			})
		}
	}()

	app := req.Application
	ticketID, err := g.store.Save(ctx, app.TicketID, app, draft.SaveMeta{Final: true, Actor: role})
	if err != nil {
		metrics.Submissions.WithLabelValues(role, "failed").Inc()
		g.logger.Warn("final submission failed", map[string]interface{}{
			"guardKey": key,
			"error":    err.Error(),
		})
		return nil, errors.NewSubmitFailedError(err)
	}

	if req.Actor == fulfillment.RoleApplicant && g.transient != nil {
		if err := g.transient.ClearTransient(ctx, app.OwnerClientID, ticketID); err != nil {
			g.logger.Warn("failed to clear transient markers", map[string]interface{}{
				"ticketId": ticketID,
				"error":    err.Error(),
			})
		}
	}

	metrics.Submissions.WithLabelValues(role, "ok").Inc()
	g.logger.Info("application submitted", map[string]interface{}{
		"ticketId": ticketID,
		"actor":    role,
	})

	return g.route(req, ticketID), nil
}

func (g *Guard) route(req SubmitRequest, ticketID string) *Result {
	res := &Result{TicketID: ticketID}
	switch {
	case req.Actor == fulfillment.RoleApplicant:
		res.Route = g.routes.Dashboard
	case req.Close != nil:
		if req.Current != nil && !req.Current() {
			g.logger.Info("submitting screen already closed", map[string]interface{}{"ticketId": ticketID})
			return res
		}
		req.Close(ticketID)
		res.Closed = true
	default:
		res.Route = g.routes.AdminList
	}
	return res
}
