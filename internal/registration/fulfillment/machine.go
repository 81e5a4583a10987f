// internal/registration/fulfillment/machine.go
package fulfillment

import (
	"context"
	stderrors "errors"
	"sync"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/common/metrics"
	"registration-workflow/internal/models"

	"github.com/looplab/fsm"
)

const (
	EventRequestTeamFill           = "request_team_fill"
	EventCancelTeamFill            = "cancel_team_fill"
	EventEnterOnBehalf             = "enter_on_behalf"
	EventRequestClientFill         = "request_client_fill"
	EventCancelClientFillAdmin     = "cancel_client_fill_admin"
	EventCancelClientFillApplicant = "cancel_client_fill_applicant"
)

var transitions = fsm.Events{
	{Name: EventRequestTeamFill, Src: []string{string(ModeSelfService)}, Dst: string(ModeTeamFillRequested)},
	{Name: EventCancelTeamFill, Src: []string{string(ModeTeamFillRequested)}, Dst: string(ModeSelfService)},

	// on-behalf entry only changes the mode from self-service; elsewhere it
	// sets the overlay flag and the mode is kept
	{Name: EventEnterOnBehalf, Src: []string{string(ModeSelfService)}, Dst: string(ModeAdminOnBehalf)},
	{Name: EventEnterOnBehalf, Src: []string{string(ModeAdminOnBehalf)}, Dst: string(ModeAdminOnBehalf)},
	{Name: EventEnterOnBehalf, Src: []string{string(ModeTeamFillRequested)}, Dst: string(ModeTeamFillRequested)},
	{Name: EventEnterOnBehalf, Src: []string{string(ModeClientFillRequested)}, Dst: string(ModeClientFillRequested)},

	{Name: EventRequestClientFill, Src: []string{string(ModeAdminOnBehalf)}, Dst: string(ModeClientFillRequested)},
	{Name: EventCancelClientFillAdmin, Src: []string{string(ModeClientFillRequested)}, Dst: string(ModeAdminOnBehalf)},
	{Name: EventCancelClientFillApplicant, Src: []string{string(ModeClientFillRequested)}, Dst: string(ModeSelfService)},
}

var allowedActors = map[string]Role{
	EventRequestTeamFill:           RoleApplicant,
	EventCancelTeamFill:            RoleApplicant,
	EventEnterOnBehalf:             RoleAdmin,
	EventRequestClientFill:         RoleAdmin,
	EventCancelClientFillAdmin:     RoleAdmin,
	EventCancelClientFillApplicant: RoleApplicant,
}

// Machine holds one session's fulfillment flags and gates changes to them
// by actor and source mode. It is safe for concurrent use.
type Machine struct {
	mu     sync.Mutex
	fsm    *fsm.FSM
	flags  models.FulfillmentFlags
	role   Role
	logger logger.Logger
}

// NewMachine starts a machine for viewer from previously resolved flags.
// If both request flags arrive set, client fill wins and the team flag is
// dropped from the session copy.
func NewMachine(flags models.FulfillmentFlags, viewer Role, log logger.Logger) *Machine {
	m := &Machine{
		role:   viewer,
		logger: log.WithFields(map[string]interface{}{"component": "fulfillment", "role": viewer.String()}),
	}

	if flags.TeamFillRequested && flags.ClientFillRequested {
		m.logger.Warn("both delegation flags set, keeping client fill", nil)
		flags.TeamFillRequested = false
	}
	m.flags = flags

	m.fsm = fsm.NewFSM(
		string(Derive(flags)),
		transitions,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.logger.Info("fulfillment mode changed", map[string]interface{}{
					"event": e.Event,
					"from":  e.Src,
					"to":    e.Dst,
				})
			},
		},
	)
	return m
}

func (m *Machine) Role() Role {
	return m.role
}

func (m *Machine) Flags() models.FulfillmentFlags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags
}

func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Mode(m.fsm.Current())
}

// Disabled evaluates field enablement for this session's viewer.
func (m *Machine) Disabled() bool {
	return Disabled(m.Flags(), m.role)
}

// RequestTeamFill moves SELF_SERVICE to TEAM_FILL_REQUESTED.
func (m *Machine) RequestTeamFill(ctx context.Context, actor Role) error {
	return m.fire(ctx, EventRequestTeamFill, actor, func(f *models.FulfillmentFlags) {
		f.TeamFillRequested = true
	})
}

// CancelTeamFill moves TEAM_FILL_REQUESTED back to SELF_SERVICE.
func (m *Machine) CancelTeamFill(ctx context.Context, actor Role) error {
	return m.fire(ctx, EventCancelTeamFill, actor, func(f *models.FulfillmentFlags) {
		f.TeamFillRequested = false
	})
}

// EnterOnBehalf marks the admin as operating on a client's behalf. The
// team-fill flag is left untouched.
func (m *Machine) EnterOnBehalf(ctx context.Context, actor Role) error {
	return m.fire(ctx, EventEnterOnBehalf, actor, func(f *models.FulfillmentFlags) {
		f.FillingOnBehalf = true
	})
}

// RequestClientFill hands edit authority from the on-behalf admin back to
// the client. Both identifiers are required.
func (m *Machine) RequestClientFill(ctx context.Context, actor Role, clientID, ticketID string) error {
	if actor == RoleAdmin && (clientID == "" || ticketID == "") {
		metrics.FulfillmentTransitions.WithLabelValues(EventRequestClientFill, "missing_identifiers").Inc()
		return errors.NewMissingIdentifiersError(clientID, ticketID)
	}
	return m.fire(ctx, EventRequestClientFill, actor, func(f *models.FulfillmentFlags) {
		f.ClientFillRequested = true
	})
}

// CancelClientFill clears a client-fill request. The admin returns to
// ADMIN_ON_BEHALF, the applicant to SELF_SERVICE.
func (m *Machine) CancelClientFill(ctx context.Context, actor Role) error {
	event := EventCancelClientFillApplicant
	if actor == RoleAdmin {
		event = EventCancelClientFillAdmin
	}
	return m.fire(ctx, event, actor, func(f *models.FulfillmentFlags) {
		f.ClientFillRequested = false
	})
}

// Can reports whether actor may fire event from the current mode.
func (m *Machine) Can(event string, actor Role) bool {
	if allowed, ok := allowedActors[event]; !ok || allowed != actor {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fsm.Can(event)
}

// ApplyAuthoritative overwrites the request flags with values read from the
// delegation store. The on-behalf overlay is kept.
func (m *Machine) ApplyAuthoritative(teamFill, clientFill bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if teamFill && clientFill {
		m.logger.Warn("authoritative store has both delegation flags, keeping client fill", nil)
		teamFill = false
	}
	m.flags.TeamFillRequested = teamFill
	m.flags.ClientFillRequested = clientFill
	m.fsm.SetState(string(Derive(m.flags)))
}

func (m *Machine) fire(ctx context.Context, event string, actor Role, apply func(*models.FulfillmentFlags)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if allowed := allowedActors[event]; allowed != actor {
		metrics.FulfillmentTransitions.WithLabelValues(event, "actor_not_permitted").Inc()
		return errors.NewActorNotPermittedError(event, actor.String())
	}

	current := m.fsm.Current()
	if !m.fsm.Can(event) {
		metrics.FulfillmentTransitions.WithLabelValues(event, "invalid_transition").Inc()
		return errors.NewInvalidTransitionError(event, current)
	}

	if err := m.fsm.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if !stderrors.As(err, &noTransition) {
			metrics.FulfillmentTransitions.WithLabelValues(event, "invalid_transition").Inc()
			return errors.NewInvalidTransitionError(event, current)
		}
	}

	apply(&m.flags)
	m.fsm.SetState(string(Derive(m.flags)))
	metrics.FulfillmentTransitions.WithLabelValues(event, "ok").Inc()
	return nil
}
