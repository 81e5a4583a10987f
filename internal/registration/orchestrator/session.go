// internal/registration/orchestrator/session.go
package orchestrator

import (
	"context"
	"sync"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/common/metrics"
	"registration-workflow/internal/models"
	"registration-workflow/internal/registration/draft"
	"registration-workflow/internal/registration/fulfillment"
	"registration-workflow/internal/registration/guard"
	"registration-workflow/internal/registration/navigator"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const positionSaveTimeout = 5 * time.Second

// Session is one mounted form: a draft, its fulfillment machine and its
// navigator. Methods are safe for concurrent use.
type Session struct {
	id       string
	orch     *Orchestrator
	machine  *fulfillment.Machine
	nav      *navigator.Navigator
	viewer   fulfillment.Role
	viewerID string
	onBehalf *models.OnBehalfContext
	close    func(ticketID string)
	observer func(step int)
	logger   logger.Logger

	mu       sync.Mutex
	app      *models.Application
	result   *guard.Result
	degraded bool
	closed   bool
}

// View is the render state of a session.
type View struct {
	SessionID             string                     `json:"sessionId"`
	TicketID              string                     `json:"ticketId,omitempty"`
	OwnerClientID         string                     `json:"ownerClientId"`
	ApplicationType       string                     `json:"applicationType"`
	Role                  string                     `json:"role"`
	Mode                  string                     `json:"mode"`
	Flags                 models.FulfillmentFlags    `json:"flags"`
	Disabled              bool                       `json:"disabled"`
	Step                  int                        `json:"step"`
	Gating                bool                       `json:"gating"`
	Submitting            bool                       `json:"submitting"`
	Submitted             bool                       `json:"submitted"`
	NameApplicationStatus string                     `json:"nameApplicationStatus"`
	Steps                 map[int]models.StepPayload `json:"steps"`
	Degraded              bool                       `json:"degraded"`
	Result                *guard.Result              `json:"result,omitempty"`
	OnBehalf              *models.OnBehalfContext    `json:"onBehalf,omitempty"`
}

// ActionResult reports a delegation change. Degraded means the gateway was
// unavailable and the flag only holds for this session.
type ActionResult struct {
	Mode     string `json:"mode"`
	Disabled bool   `json:"disabled"`
	Degraded bool   `json:"degraded"`
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Role() fulfillment.Role {
	return s.viewer
}

func (s *Session) ViewerID() string {
	return s.viewerID
}

func (s *Session) View() View {
	gating, submitting := s.nav.Busy()
	step := s.nav.Step()

	s.mu.Lock()
	defer s.mu.Unlock()

	app := s.app.Clone()
	return View{
		SessionID:             s.id,
		TicketID:              app.TicketID,
		OwnerClientID:         app.OwnerClientID,
		ApplicationType:       app.ApplicationType,
		Role:                  s.viewer.String(),
		Mode:                  string(s.machine.Mode()),
		Flags:                 s.machine.Flags(),
		Disabled:              s.machine.Disabled(),
		Step:                  step,
		Gating:                gating,
		Submitting:            submitting,
		Submitted:             app.IsSubmitted(),
		NameApplicationStatus: string(app.NameApplicationStatus),
		Steps:                 app.Steps,
		Degraded:              s.degraded,
		Result:                s.result,
		OnBehalf:              s.onBehalf,
	}
}

// Refresh re-reads the authoritative delegation flags for a ticketed draft.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	app := s.app.Clone()
	s.mu.Unlock()

	if app.TicketID == "" {
		return nil
	}
	flags, degraded := s.orch.resolveFlags(ctx, app)
	if degraded {
		s.setDegraded()
		return nil
	}
	s.machine.ApplyAuthoritative(flags.TeamFillRequested, flags.ClientFillRequested)
	return nil
}

// SaveStep stores payload as the given step. The first save assigns the
// ticket and reconciles a ticket-less team-fill request.
func (s *Session) SaveStep(ctx context.Context, step int, payload models.StepPayload) (string, error) {
	started := time.Now()
	ticket, err := s.saveStep(ctx, step, payload)
	s.orch.record(ctx, "save_step", err, started)
	return ticket, err
}

func (s *Session) saveStep(ctx context.Context, step int, payload models.StepPayload) (string, error) {
	if step < navigator.FirstStep || step > navigator.LastStep {
		return "", errors.NewInvalidInputError("step must be between 1 and 3")
	}
	if s.machine.Disabled() {
		return "", errors.NewFieldsDisabledError(string(s.machine.Mode()))
	}
	if _, submitting := s.nav.Busy(); submitting {
		return "", navigator.ErrSubmitting
	}
	current := s.nav.Step()

	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if payload == nil {
		payload = models.StepPayload{}
	}
	s.app.Steps[step] = payload
	if current <= navigator.LastStep {
		s.app.CurrentStep = current
	}
	s.mu.Unlock()

	return s.persist(ctx)
}

// persist writes the working draft. When the write assigns the ticket, the
// resume marker is set and a ticket-less team-fill request is bound to it.
func (s *Session) persist(ctx context.Context) (string, error) {
	snapshot := s.snapshot()
	ticket, err := s.orch.deps.Drafts.Save(ctx, snapshot.TicketID, snapshot, draft.SaveMeta{Actor: s.viewer.String()})
	if err != nil {
		s.logger.Warn("draft save failed", map[string]interface{}{"error": err.Error()})
		if s.orch.deps.Cache != nil {
			s.orch.deps.Cache.Put(snapshot)
		}
		return "", err
	}

	assigned := snapshot.TicketID == ""
	s.mu.Lock()
	s.app.TicketID = ticket
	snapshot = s.app.Clone()
	s.mu.Unlock()

	if s.orch.deps.Cache != nil {
		s.orch.deps.Cache.Put(snapshot)
	}
	if assigned {
		s.onTicketAssigned(ctx, snapshot)
	}
	return ticket, nil
}

func (s *Session) onTicketAssigned(ctx context.Context, app *models.Application) {
	o := s.orch

	if s.viewer == fulfillment.RoleApplicant && o.deps.Markers != nil {
		if err := o.deps.Markers.SetEditingTicket(ctx, app.OwnerClientID, app.TicketID); err != nil {
			s.logger.Warn("failed to write editing marker", map[string]interface{}{"error": err.Error()})
		}
	}

	if !s.machine.Flags().TeamFillRequested {
		return
	}

	attached, err := o.deps.Gateway.AttachTicket(ctx, app.ApplicationType, app.OwnerClientID, app.TicketID)
	if err == nil && !attached {
		err = o.deps.Gateway.RequestTeamFill(ctx, app.ApplicationType, app.TicketID, app.OwnerClientID)
	}
	if err != nil {
		o.degrade("reconcile_team_fill", err)
		s.setDegraded()
	}

	o.mirrorTeamFill(ctx, app.TicketID, true)
	if o.deps.Markers != nil {
		if err := o.deps.Markers.SetTeamFill(ctx, app.OwnerClientID, false); err != nil {
			s.logger.Warn("failed to clear ticket-less team fill marker", map[string]interface{}{"error": err.Error()})
		}
	}
	s.logger.Info("team fill request bound to ticket", map[string]interface{}{
		"ticketId": app.TicketID,
		"attached": attached,
	})
}

// Next advances the navigator. It blocks through the step-1 dwell and
// through the final submission.
func (s *Session) Next(ctx context.Context) error {
	started := time.Now()
	err := s.nav.Next(ctx)
	s.orch.record(ctx, "next", err, started)
	return err
}

func (s *Session) Back() error {
	return s.nav.Back()
}

func (s *Session) RequestTeamFill(ctx context.Context) (*ActionResult, error) {
	if err := s.machine.RequestTeamFill(ctx, s.viewer); err != nil {
		return nil, err
	}

	app := s.snapshot()
	o := s.orch
	degraded := false
	if err := o.deps.Gateway.RequestTeamFill(ctx, app.ApplicationType, app.TicketID, app.OwnerClientID); err != nil {
		o.degrade("request_team_fill", err)
		degraded = true
	}

	ticket := app.TicketID
	if ticket == "" {
		// store the draft so the request can be bound to a ticket
		s.setTeamFillMarker(ctx, app.OwnerClientID, true)
		if assigned, err := s.persist(ctx); err == nil {
			ticket = assigned
		}
	} else {
		o.mirrorTeamFill(ctx, ticket, true)
	}
	s.notify(ctx, models.DelegationTeamFill, ticket, app.OwnerClientID)
	return s.actionResult(degraded || s.isDegraded()), nil
}

func (s *Session) CancelTeamFill(ctx context.Context) (*ActionResult, error) {
	if err := s.machine.CancelTeamFill(ctx, s.viewer); err != nil {
		return nil, err
	}

	app := s.snapshot()
	o := s.orch
	degraded := false
	if err := o.deps.Gateway.CancelTeamFill(ctx, app.ApplicationType, app.TicketID, app.OwnerClientID); err != nil {
		o.degrade("cancel_team_fill", err)
		degraded = true
	}

	s.setTeamFillMarker(ctx, app.OwnerClientID, false)
	o.mirrorTeamFill(ctx, app.TicketID, false)
	return s.actionResult(degraded), nil
}

func (s *Session) RequestClientFill(ctx context.Context) (*ActionResult, error) {
	app := s.snapshot()
	var clientID string
	ticketID := app.TicketID
	if s.onBehalf != nil {
		clientID = s.onBehalf.ClientID
		if ticketID == "" {
			ticketID = s.onBehalf.TicketID
		}
	}

	if err := s.machine.RequestClientFill(ctx, s.viewer, clientID, ticketID); err != nil {
		return nil, err
	}

	o := s.orch
	degraded := false
	if err := o.deps.Gateway.RequestClientFill(ctx, app.ApplicationType, ticketID, clientID); err != nil {
		o.degrade("request_client_fill", err)
		degraded = true
	}
	s.notify(ctx, models.DelegationClientFill, ticketID, clientID)
	return s.actionResult(degraded), nil
}

func (s *Session) CancelClientFill(ctx context.Context) (*ActionResult, error) {
	if err := s.machine.CancelClientFill(ctx, s.viewer); err != nil {
		return nil, err
	}

	app := s.snapshot()
	o := s.orch
	degraded := false
	if app.TicketID != "" {
		if err := o.deps.Gateway.CancelClientFillRequest(ctx, app.ApplicationType, app.TicketID); err != nil {
			o.degrade("cancel_client_fill", err)
			degraded = true
		}
	}
	return s.actionResult(degraded), nil
}

// Close abandons the session. For an on-behalf admin this is also the end
// of the on-behalf context.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.nav.Close()
	metrics.ActiveSessions.Dec()

	if s.onBehalf != nil && s.orch.deps.Markers != nil {
		if err := s.orch.deps.Markers.ClearOnBehalf(ctx, s.viewerID); err != nil {
			s.logger.Warn("failed to clear on-behalf marker", map[string]interface{}{"error": err.Error()})
		}
	}
	s.logger.Info("session closed", map[string]interface{}{"sessionId": s.id})
}

// gate is the step-1 navigator hook.
func (s *Session) gate(ctx context.Context) error {
	if s.machine.Disabled() {
		return nil
	}
	app := s.snapshot()
	if err := s.orch.deps.Registrar.SubmitProposedName(ctx, app); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.app.NameApplicationStatus == "" || s.app.NameApplicationStatus == models.NameStatusPending {
		s.app.NameApplicationStatus = models.NameStatusSubmitted
	}
	return nil
}

// submit is the step-3 navigator hook.
func (s *Session) submit(ctx context.Context) error {
	if s.machine.Disabled() {
		return errors.NewFieldsDisabledError(string(s.machine.Mode()))
	}

	app := s.snapshot()
	if err := draft.CheckComplete(app); err != nil {
		return err
	}

	o := s.orch
	var span trace.Span
	if o.deps.Observability != nil {
		ctx, span = o.deps.Observability.StartSpan(ctx, "registration.submit",
			attribute.String("ticketId", app.TicketID),
			attribute.String("role", s.viewer.String()),
		)
		defer span.End()
	}

	var adminID string
	if s.viewer == fulfillment.RoleAdmin {
		adminID = s.viewerID
	}
	res, err := o.deps.Guard.Submit(ctx, guard.SubmitRequest{
		Application: app,
		Actor:       s.viewer,
		AdminID:     adminID,
		Close:       s.close,
		Current:     s.isOpen,
	})
	if err != nil {
		if span != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}

	now := time.Now().UTC()
	submitted := app.Clone()
	submitted.TicketID = res.TicketID
	submitted.Status = models.StatusSubmitted
	submitted.SubmittedAt = &now

	s.mu.Lock()
	if !s.closed {
		s.app = submitted.Clone()
		s.result = res
	}
	s.mu.Unlock()

	if o.deps.Cache != nil {
		o.deps.Cache.Put(submitted)
	}
	if o.deps.Indexer != nil {
		if err := o.deps.Indexer.IndexSubmitted(ctx, submitted, s.viewer.String()); err != nil {
			s.logger.Warn("failed to index submitted application", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// observe mirrors navigator moves into the draft and out to the host. A
// ticketed draft stores its position so a resume reopens on the same step.
func (s *Session) observe(step int) {
	if step <= navigator.LastStep {
		s.mu.Lock()
		open := !s.closed
		if open {
			s.app.CurrentStep = step
		}
		ticketed := s.app.TicketID != ""
		s.mu.Unlock()

		if open && ticketed && !s.machine.Disabled() {
			ctx, cancel := context.WithTimeout(context.Background(), positionSaveTimeout)
			_, _ = s.persist(ctx)
			cancel()
		}
	}
	if s.observer != nil {
		s.observer(step)
	}
}

func (s *Session) notify(ctx context.Context, kind models.DelegationKind, ticketID, clientID string) {
	if s.orch.deps.Notifier == nil {
		return
	}
	for _, n := range s.orch.deps.Notifier.DelegationRequested(ctx, kind, ticketID, clientID) {
		s.logger.Debug("delegation notification", map[string]interface{}{
			"channel": n.Channel,
			"status":  n.Status,
		})
	}
}

func (s *Session) setTeamFillMarker(ctx context.Context, owner string, on bool) {
	if s.orch.deps.Markers == nil {
		return
	}
	if err := s.orch.deps.Markers.SetTeamFill(ctx, owner, on); err != nil {
		s.logger.Warn("failed to write team fill marker", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Session) snapshot() *models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.app.Clone()
}

func (s *Session) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Session) isDegraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Session) setDegraded() {
	s.mu.Lock()
	s.degraded = true
	s.mu.Unlock()
}

func (s *Session) actionResult(degraded bool) *ActionResult {
	if degraded {
		s.setDegraded()
	}
	return &ActionResult{
		Mode:     string(s.machine.Mode()),
		Disabled: s.machine.Disabled(),
		Degraded: degraded,
	}
}

func (s *Session) checkOpenLocked() error {
	if s.closed {
		return navigator.ErrSuperseded
	}
	if s.app.IsSubmitted() {
		return navigator.ErrTerminal
	}
	return nil
}
