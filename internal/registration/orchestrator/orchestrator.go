// internal/registration/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	stderrors "errors"
	"time"

	"registration-workflow/internal/common/config"
	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/common/metrics"
	"registration-workflow/internal/common/observability"
	"registration-workflow/internal/models"
	"registration-workflow/internal/registration/delegation"
	"registration-workflow/internal/registration/draft"
	"registration-workflow/internal/registration/fulfillment"
	"registration-workflow/internal/registration/guard"
	"registration-workflow/internal/registration/markers"
	"registration-workflow/internal/registration/nameregistration"
	"registration-workflow/internal/registration/navigator"
	"registration-workflow/internal/registration/notify"
	"registration-workflow/internal/registration/search"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Dependencies are the collaborators a session drives. Notifier, Indexer,
// Cache and Observability are optional.
type Dependencies struct {
	Drafts        draft.Store
	Cache         *draft.LocalCache
	Gateway       delegation.Gateway
	Markers       markers.Store
	Guard         *guard.Guard
	Registrar     nameregistration.Registrar
	Notifier      notify.Notifier
	Indexer       search.Indexer
	Observability *observability.Observability
}

// OpenRequest carries everything the host knows when a form is mounted.
type OpenRequest struct {
	Viewer   fulfillment.Role
	ViewerID string

	// OnBehalf is an explicit (client, ticket) pair passed by the host.
	OnBehalf *models.OnBehalfContext
	// Query is the pair taken from query parameters. It only counts for admins.
	Query *models.OnBehalfContext

	InitialData      *models.Application
	TicketID         string
	PaymentReference string

	Close    func(ticketID string)
	Exit     func()
	Observer func(step int)
}

type Orchestrator struct {
	deps   Dependencies
	cfg    config.WorkflowConfig
	logger logger.Logger
}

func New(deps Dependencies, cfg config.WorkflowConfig, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Open resolves on-behalf context, the draft and the fulfillment flags, and
// returns a session positioned at the draft's saved step.
func (o *Orchestrator) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	started := time.Now()
	sess, err := o.open(ctx, req)
	o.record(ctx, "open", err, started)
	return sess, err
}

func (o *Orchestrator) open(ctx context.Context, req OpenRequest) (*Session, error) {
	if req.Viewer != fulfillment.RoleApplicant && req.Viewer != fulfillment.RoleAdmin {
		return nil, errors.NewInvalidInputError("viewer role is required")
	}

	onBehalf := o.resolveOnBehalf(ctx, req)
	owner := req.ViewerID
	if onBehalf != nil {
		owner = onBehalf.ClientID
	}

	app, err := o.resolveDraft(ctx, req, onBehalf, owner)
	if err != nil {
		return nil, err
	}

	if req.Viewer == fulfillment.RoleApplicant && app.OwnerClientID != "" && app.OwnerClientID != req.ViewerID {
		return nil, errors.NewActorNotPermittedError("open", req.Viewer.String())
	}
	if app.OwnerClientID == "" {
		app.OwnerClientID = owner
	}
	if app.ApplicationType == "" {
		app.ApplicationType = o.cfg.ApplicationType
	}
	draft.NormalizeApplication(app)

	flags, degraded := o.resolveFlags(ctx, app)
	flags.FillingOnBehalf = onBehalf != nil

	log := o.logger.WithFields(map[string]interface{}{
		"ticketId": app.TicketID,
		"role":     req.Viewer.String(),
	})

	s := &Session{
		id:       uuid.New().String(),
		orch:     o,
		app:      app,
		viewer:   req.Viewer,
		viewerID: req.ViewerID,
		onBehalf: onBehalf,
		close:    req.Close,
		observer: req.Observer,
		degraded: degraded,
		logger:   log,
	}
	s.machine = fulfillment.NewMachine(flags, req.Viewer, log)
	s.nav = navigator.New(navigator.Options{
		Start:     app.CurrentStep,
		GateDwell: config.GetDuration(o.cfg.GateDwell),
	}, navigator.Hooks{
		Gate:     s.gate,
		Submit:   s.submit,
		Exit:     req.Exit,
		Observer: s.observe,
	}, log)

	o.rememberSession(ctx, s)
	metrics.ActiveSessions.Inc()

	log.Info("session opened", map[string]interface{}{
		"sessionId": s.id,
		"mode":      string(s.machine.Mode()),
		"onBehalf":  onBehalf != nil,
		"degraded":  degraded,
	})
	return s, nil
}

// resolveOnBehalf: explicit pair, then query pair for admins, then the
// admin's stored marker. Applicants never operate on behalf.
func (o *Orchestrator) resolveOnBehalf(ctx context.Context, req OpenRequest) *models.OnBehalfContext {
	if req.Viewer != fulfillment.RoleAdmin {
		return nil
	}
	if req.OnBehalf.Complete() {
		pair := *req.OnBehalf
		return &pair
	}
	if req.Query.Complete() {
		pair := *req.Query
		return &pair
	}
	if o.deps.Markers == nil || req.ViewerID == "" {
		return nil
	}

	stored, err := o.deps.Markers.OnBehalf(ctx, req.ViewerID)
	if err != nil {
		o.logger.Warn("on-behalf marker unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if stored == nil || stored.ClientID == "" || stored.TicketID == "" {
		return nil
	}
	return &models.OnBehalfContext{ClientID: stored.ClientID, TicketID: stored.TicketID}
}

// resolveDraft: initial data, then a known ticket, then a new draft that
// needs an entitlement unless the admin is on behalf.
func (o *Orchestrator) resolveDraft(ctx context.Context, req OpenRequest, onBehalf *models.OnBehalfContext, owner string) (*models.Application, error) {
	if req.InitialData != nil {
		return req.InitialData.Clone(), nil
	}

	ticket := req.TicketID
	if onBehalf != nil {
		ticket = onBehalf.TicketID
	}
	if ticket == "" && req.OnBehalf != nil {
		ticket = req.OnBehalf.TicketID
	}
	if ticket != "" {
		return o.loadDraft(ctx, ticket)
	}

	if req.Viewer == fulfillment.RoleApplicant && o.deps.Markers != nil {
		resume, err := o.deps.Markers.EditingTicket(ctx, owner)
		if err != nil {
			o.logger.Warn("editing marker unavailable", map[string]interface{}{"error": err.Error()})
		}
		if resume != "" {
			app, err := o.loadDraft(ctx, resume)
			if err == nil {
				return app, nil
			}
			if !stderrors.Is(err, errors.ErrDraftNotFound) {
				return nil, err
			}
			o.logger.Info("stale editing marker ignored", map[string]interface{}{"ticketId": resume})
		}
	}

	if !o.entitled(ctx, req, owner) {
		return nil, errors.NewEntitlementMissingError(o.cfg.Routes.EntitlementOut)
	}

	if o.deps.Cache != nil {
		if app, ok := o.deps.Cache.Anonymous(owner); ok {
			return app, nil
		}
	}
	return models.NewApplication(owner, o.cfg.ApplicationType), nil
}

func (o *Orchestrator) loadDraft(ctx context.Context, ticket string) (*models.Application, error) {
	app, err := o.deps.Drafts.Get(ctx, ticket)
	if err == nil {
		return app, nil
	}
	if stderrors.Is(err, errors.ErrDraftNotFound) {
		return nil, err
	}
	if o.deps.Cache != nil {
		if cached, ok := o.deps.Cache.Get(ticket); ok {
			o.logger.Warn("draft store unavailable, resuming from local cache", map[string]interface{}{
				"ticketId": ticket,
				"error":    err.Error(),
			})
			return cached, nil
		}
	}
	return nil, err
}

func (o *Orchestrator) entitled(ctx context.Context, req OpenRequest, owner string) bool {
	if req.PaymentReference != "" {
		if o.deps.Markers != nil {
			if err := o.deps.Markers.SetPaymentReference(ctx, owner, req.PaymentReference); err != nil {
				o.logger.Warn("failed to store payment reference", map[string]interface{}{"error": err.Error()})
			}
		}
		return true
	}
	if o.deps.Markers == nil {
		return false
	}
	ref, err := o.deps.Markers.PaymentReference(ctx, owner)
	if err != nil {
		o.logger.Warn("payment reference unavailable", map[string]interface{}{"error": err.Error()})
		return false
	}
	return ref != ""
}

// resolveFlags reads the authoritative delegation flags for a ticketed
// draft. Only on a transport failure does it fall back to local markers.
func (o *Orchestrator) resolveFlags(ctx context.Context, app *models.Application) (models.FulfillmentFlags, bool) {
	var flags models.FulfillmentFlags

	if app.TicketID == "" {
		flags.TeamFillRequested = o.cachedTeamFill(ctx, app.OwnerClientID, "")
		return flags, false
	}

	var team, client bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		team, err = o.deps.Gateway.CheckTeamFillStatus(gctx, app.ApplicationType, app.TicketID)
		return err
	})
	g.Go(func() error {
		var err error
		client, err = o.deps.Gateway.CheckClientFillStatus(gctx, app.ApplicationType, app.TicketID)
		return err
	})

	if err := g.Wait(); err != nil {
		metrics.GatewayDegradations.WithLabelValues("check_status").Inc()
		o.logger.Warn("delegation status unavailable, using cached flags", map[string]interface{}{
			"ticketId": app.TicketID,
			"error":    err.Error(),
		})
		flags.TeamFillRequested = o.cachedTeamFill(ctx, app.OwnerClientID, app.TicketID)
		return flags, true
	}

	flags.TeamFillRequested = team
	flags.ClientFillRequested = client
	o.mirrorTeamFill(ctx, app.TicketID, team)
	return flags, false
}

func (o *Orchestrator) cachedTeamFill(ctx context.Context, owner, ticket string) bool {
	if o.deps.Markers == nil {
		return false
	}
	if ticket != "" {
		on, err := o.deps.Markers.TicketTeamFill(ctx, ticket)
		if err == nil && on {
			return true
		}
	}
	on, err := o.deps.Markers.TeamFill(ctx, owner)
	return err == nil && on
}

func (o *Orchestrator) mirrorTeamFill(ctx context.Context, ticket string, on bool) {
	if o.deps.Markers == nil || ticket == "" {
		return
	}
	if err := o.deps.Markers.SetTicketTeamFill(ctx, ticket, on); err != nil {
		o.logger.Warn("failed to mirror team fill marker", map[string]interface{}{"error": err.Error()})
	}
}

func (o *Orchestrator) rememberSession(ctx context.Context, s *Session) {
	if o.deps.Markers == nil {
		return
	}
	var err error
	switch {
	case s.onBehalf != nil:
		err = o.deps.Markers.SetOnBehalf(ctx, s.viewerID, markers.OnBehalf{
			ClientID: s.onBehalf.ClientID,
			TicketID: s.onBehalf.TicketID,
		})
	case s.viewer == fulfillment.RoleApplicant && s.app.TicketID != "":
		err = o.deps.Markers.SetEditingTicket(ctx, s.app.OwnerClientID, s.app.TicketID)
	}
	if err != nil {
		o.logger.Warn("failed to write resume marker", map[string]interface{}{"error": err.Error()})
	}
}

func (o *Orchestrator) record(ctx context.Context, op string, err error, started time.Time) {
	if o.deps.Observability == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = string(errors.CodeOf(err))
	}
	o.deps.Observability.RecordOperation(ctx, op, status, time.Since(started))
}

func (o *Orchestrator) degrade(op string, err error) {
	metrics.GatewayDegradations.WithLabelValues(op).Inc()
	o.logger.Warn("delegation gateway unavailable, flag kept locally", map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
}
