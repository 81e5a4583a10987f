// internal/registration/fulfillment/mode.go
package fulfillment

import "registration-workflow/internal/models"

// Mode names which party currently holds edit authority.
type Mode string

const (
	ModeSelfService         Mode = "SELF_SERVICE"
	ModeTeamFillRequested   Mode = "TEAM_FILL_REQUESTED"
	ModeAdminOnBehalf       Mode = "ADMIN_ON_BEHALF"
	ModeClientFillRequested Mode = "CLIENT_FILL_REQUESTED"
)

// Derive maps the three flags onto one of the four reachable modes.
// An admin working on behalf of a team-fill request stays in
// TEAM_FILL_REQUESTED; the on-behalf flag is an overlay there.
func Derive(flags models.FulfillmentFlags) Mode {
	switch {
	case flags.ClientFillRequested:
		return ModeClientFillRequested
	case flags.TeamFillRequested:
		return ModeTeamFillRequested
	case flags.FillingOnBehalf:
		return ModeAdminOnBehalf
	default:
		return ModeSelfService
	}
}

// Disabled reports whether form fields are read-only for viewer.
func Disabled(flags models.FulfillmentFlags, viewer Role) bool {
	return (flags.TeamFillRequested && viewer != RoleAdmin && !flags.FillingOnBehalf) ||
		(flags.ClientFillRequested && viewer == RoleAdmin)
}
