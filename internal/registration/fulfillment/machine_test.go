package fulfillment

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Enablement
// ==========================

func TestDisabled_RoleByFlagState(t *testing.T) {
	tests := []struct {
		name   string
		flags  models.FulfillmentFlags
		viewer Role
		want   bool
	}{
		{"applicant self service", models.FulfillmentFlags{}, RoleApplicant, false},
		{"admin self service", models.FulfillmentFlags{}, RoleAdmin, false},
		{"applicant team fill", models.FulfillmentFlags{TeamFillRequested: true}, RoleApplicant, true},
		{"admin team fill", models.FulfillmentFlags{TeamFillRequested: true}, RoleAdmin, false},
		{"applicant client fill", models.FulfillmentFlags{ClientFillRequested: true, FillingOnBehalf: true}, RoleApplicant, false},
		{"admin client fill", models.FulfillmentFlags{ClientFillRequested: true, FillingOnBehalf: true}, RoleAdmin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Disabled(tt.flags, tt.viewer))
		})
	}
}

func TestDisabled_MatchesFormulaForAllFlagCombinations(t *testing.T) {
	for _, viewer := range []Role{RoleApplicant, RoleAdmin} {
		for bits := 0; bits < 8; bits++ {
			flags := models.FulfillmentFlags{
				TeamFillRequested:   bits&1 != 0,
				ClientFillRequested: bits&2 != 0,
				FillingOnBehalf:     bits&4 != 0,
			}
			want := (flags.TeamFillRequested && viewer != RoleAdmin && !flags.FillingOnBehalf) ||
				(flags.ClientFillRequested && viewer == RoleAdmin)

			t.Run(fmt.Sprintf("%s/%03b", viewer, bits), func(t *testing.T) {
				assert.Equal(t, want, Disabled(flags, viewer))
			})
		}
	}
}

func TestDerive(t *testing.T) {
	assert.Equal(t, ModeSelfService, Derive(models.FulfillmentFlags{}))
	assert.Equal(t, ModeTeamFillRequested, Derive(models.FulfillmentFlags{TeamFillRequested: true}))
	assert.Equal(t, ModeTeamFillRequested, Derive(models.FulfillmentFlags{TeamFillRequested: true, FillingOnBehalf: true}))
	assert.Equal(t, ModeAdminOnBehalf, Derive(models.FulfillmentFlags{FillingOnBehalf: true}))
	assert.Equal(t, ModeClientFillRequested, Derive(models.FulfillmentFlags{ClientFillRequested: true, FillingOnBehalf: true}))
}

// ==========================
// Transitions
// ==========================

func newMachine(t *testing.T, flags models.FulfillmentFlags, viewer Role) *Machine {
	t.Helper()
	return NewMachine(flags, viewer, logger.NewTestLogger(t))
}

func TestMachine_TeamFillRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newMachine(t, models.FulfillmentFlags{}, RoleApplicant)

	require.NoError(t, m.RequestTeamFill(ctx, RoleApplicant))
	assert.Equal(t, ModeTeamFillRequested, m.Mode())
	assert.True(t, m.Flags().TeamFillRequested)
	assert.True(t, m.Disabled())

	require.NoError(t, m.CancelTeamFill(ctx, RoleApplicant))
	assert.Equal(t, ModeSelfService, m.Mode())
	assert.False(t, m.Disabled())
}

func TestMachine_RequestTeamFill_RejectsAdmin(t *testing.T) {
	m := newMachine(t, models.FulfillmentFlags{}, RoleAdmin)

	err := m.RequestTeamFill(context.Background(), RoleAdmin)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrActorNotPermitted))
	assert.Equal(t, ModeSelfService, m.Mode())
}

func TestMachine_RequestTeamFill_RejectedWhileClientFill(t *testing.T) {
	m := newMachine(t, models.FulfillmentFlags{ClientFillRequested: true}, RoleApplicant)

	err := m.RequestTeamFill(context.Background(), RoleApplicant)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidTransition))

	flags := m.Flags()
	assert.False(t, flags.TeamFillRequested)
	assert.True(t, flags.ClientFillRequested)
}

func TestMachine_EnterOnBehalf_KeepsTeamFill(t *testing.T) {
	m := newMachine(t, models.FulfillmentFlags{TeamFillRequested: true}, RoleAdmin)

	require.NoError(t, m.EnterOnBehalf(context.Background(), RoleAdmin))

	flags := m.Flags()
	assert.True(t, flags.TeamFillRequested)
	assert.True(t, flags.FillingOnBehalf)
	assert.Equal(t, ModeTeamFillRequested, m.Mode())
	assert.False(t, m.Disabled())
}

func TestMachine_ClientFillRoundTripForAdmin(t *testing.T) {
	ctx := context.Background()
	m := newMachine(t, models.FulfillmentFlags{}, RoleAdmin)

	require.NoError(t, m.EnterOnBehalf(ctx, RoleAdmin))
	assert.Equal(t, ModeAdminOnBehalf, m.Mode())

	require.NoError(t, m.RequestClientFill(ctx, RoleAdmin, "C-1", "T-100"))
	assert.Equal(t, ModeClientFillRequested, m.Mode())
	assert.True(t, m.Disabled())

	require.NoError(t, m.CancelClientFill(ctx, RoleAdmin))
	assert.Equal(t, ModeAdminOnBehalf, m.Mode())
	assert.False(t, m.Disabled())
}

func TestMachine_CancelClientFill_ByApplicant(t *testing.T) {
	m := newMachine(t, models.FulfillmentFlags{ClientFillRequested: true}, RoleApplicant)
	assert.False(t, m.Disabled())

	require.NoError(t, m.CancelClientFill(context.Background(), RoleApplicant))
	assert.Equal(t, ModeSelfService, m.Mode())
}

func TestMachine_RequestClientFill_MissingIdentifiers(t *testing.T) {
	ctx := context.Background()
	m := newMachine(t, models.FulfillmentFlags{}, RoleAdmin)
	require.NoError(t, m.EnterOnBehalf(ctx, RoleAdmin))

	err := m.RequestClientFill(ctx, RoleAdmin, "C-1", "")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrMissingIdentifiers))
	assert.Equal(t, ModeAdminOnBehalf, m.Mode())
	assert.False(t, m.Flags().ClientFillRequested)
}

func TestMachine_RequestClientFill_OnlyFromOnBehalf(t *testing.T) {
	m := newMachine(t, models.FulfillmentFlags{}, RoleAdmin)

	err := m.RequestClientFill(context.Background(), RoleAdmin, "C-1", "T-100")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidTransition))
}

func TestMachine_ApplyAuthoritative(t *testing.T) {
	m := newMachine(t, models.FulfillmentFlags{}, RoleApplicant)

	m.ApplyAuthoritative(true, false)
	assert.Equal(t, ModeTeamFillRequested, m.Mode())
	assert.True(t, m.Disabled())

	m.ApplyAuthoritative(false, false)
	assert.Equal(t, ModeSelfService, m.Mode())
}

func TestMachine_NeverHoldsBothRequestFlags(t *testing.T) {
	ctx := context.Background()

	m := newMachine(t, models.FulfillmentFlags{TeamFillRequested: true, ClientFillRequested: true}, RoleAdmin)
	flags := m.Flags()
	assert.False(t, flags.TeamFillRequested && flags.ClientFillRequested)

	// exercise every event with both actors from every mode
	for _, start := range []models.FulfillmentFlags{
		{},
		{TeamFillRequested: true},
		{FillingOnBehalf: true},
		{ClientFillRequested: true, FillingOnBehalf: true},
	} {
		for _, actor := range []Role{RoleApplicant, RoleAdmin} {
			m := newMachine(t, start, actor)
			_ = m.RequestTeamFill(ctx, actor)
			_ = m.EnterOnBehalf(ctx, actor)
			_ = m.RequestClientFill(ctx, actor, "C-1", "T-1")
			_ = m.RequestTeamFill(ctx, actor)
			_ = m.CancelClientFill(ctx, actor)
			_ = m.RequestTeamFill(ctx, actor)

			flags := m.Flags()
			assert.False(t, flags.TeamFillRequested && flags.ClientFillRequested, "start=%+v actor=%s", start, actor)
		}
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("Client")
	require.NoError(t, err)
	assert.Equal(t, RoleApplicant, role)

	role, err = ParseRole("operator")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("auditor")
	assert.Error(t, err)
}

func TestMachine_Can(t *testing.T) {
	m := newMachine(t, models.FulfillmentFlags{}, RoleApplicant)
	assert.True(t, m.Can(EventRequestTeamFill, RoleApplicant))
	assert.False(t, m.Can(EventRequestTeamFill, RoleAdmin))
	assert.False(t, m.Can(EventCancelTeamFill, RoleApplicant))
}
