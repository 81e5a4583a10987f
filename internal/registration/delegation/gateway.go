// internal/registration/delegation/gateway.go
package delegation

import (
	"context"
	"database/sql"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/models"
)

// Gateway persists team-fill and client-fill requests keyed by
// (applicationType, ticketID). Every transport failure is reported as
// GATEWAY_UNAVAILABLE.
type Gateway interface {
	// RequestTeamFill records a team-fill request. An empty ticketID stores
	// a ticket-less request for clientID that AttachTicket reconciles later.
	RequestTeamFill(ctx context.Context, applicationType, ticketID, clientID string) error
	CancelTeamFill(ctx context.Context, applicationType, ticketID, clientID string) error
	CheckTeamFillStatus(ctx context.Context, applicationType, ticketID string) (bool, error)
	RequestClientFill(ctx context.Context, applicationType, ticketID, clientID string) error
	CheckClientFillStatus(ctx context.Context, applicationType, ticketID string) (bool, error)
	CancelClientFillRequest(ctx context.Context, applicationType, ticketID string) error
	// AttachTicket binds clientID's ticket-less team-fill request to ticketID.
	AttachTicket(ctx context.Context, applicationType, clientID, ticketID string) (bool, error)
}

type PostgresGateway struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewPostgresGateway(db *sql.DB, log logger.Logger) *PostgresGateway {
	return &PostgresGateway{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "delegation-gateway"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (g *PostgresGateway) RequestTeamFill(ctx context.Context, applicationType, ticketID, clientID string) error {
	if ticketID == "" {
		_, err := g.db.ExecContext(ctx, `
			INSERT INTO delegation_requests (application_type, ticket_id, kind, client_id, active, requested_at)
			SELECT $1, NULL, $2, $3, TRUE, $4
			WHERE NOT EXISTS (
				SELECT 1 FROM delegation_requests
				WHERE application_type = $1 AND ticket_id IS NULL AND kind = $2
				  AND client_id = $3 AND active
			)`,
			applicationType, string(models.DelegationTeamFill), clientID, g.now())
		if err != nil {
			return errors.NewGatewayUnavailableError("request_team_fill", err)
		}
		g.logger.Info("ticket-less team fill requested", map[string]interface{}{"clientId": clientID})
		return nil
	}
	return g.request(ctx, "request_team_fill", applicationType, ticketID, clientID, models.DelegationTeamFill)
}

func (g *PostgresGateway) CancelTeamFill(ctx context.Context, applicationType, ticketID, clientID string) error {
	if ticketID == "" {
		_, err := g.db.ExecContext(ctx, `
			UPDATE delegation_requests
			SET active = FALSE, cancelled_at = $4
			WHERE application_type = $1 AND ticket_id IS NULL AND kind = $2
			  AND client_id = $3 AND active`,
			applicationType, string(models.DelegationTeamFill), clientID, g.now())
		if err != nil {
			return errors.NewGatewayUnavailableError("cancel_team_fill", err)
		}
		return nil
	}
	return g.cancel(ctx, "cancel_team_fill", applicationType, ticketID, models.DelegationTeamFill)
}

func (g *PostgresGateway) CheckTeamFillStatus(ctx context.Context, applicationType, ticketID string) (bool, error) {
	return g.exists(ctx, "check_team_fill", applicationType, ticketID, models.DelegationTeamFill)
}

func (g *PostgresGateway) RequestClientFill(ctx context.Context, applicationType, ticketID, clientID string) error {
	if ticketID == "" || clientID == "" {
		return errors.NewMissingIdentifiersError(clientID, ticketID)
	}
	return g.request(ctx, "request_client_fill", applicationType, ticketID, clientID, models.DelegationClientFill)
}

func (g *PostgresGateway) CheckClientFillStatus(ctx context.Context, applicationType, ticketID string) (bool, error) {
	return g.exists(ctx, "check_client_fill", applicationType, ticketID, models.DelegationClientFill)
}

func (g *PostgresGateway) CancelClientFillRequest(ctx context.Context, applicationType, ticketID string) error {
	return g.cancel(ctx, "cancel_client_fill", applicationType, ticketID, models.DelegationClientFill)
}

func (g *PostgresGateway) AttachTicket(ctx context.Context, applicationType, clientID, ticketID string) (bool, error) {
	res, err := g.db.ExecContext(ctx, `
		UPDATE delegation_requests
		SET ticket_id = $4
		WHERE application_type = $1 AND ticket_id IS NULL AND kind = $2
		  AND client_id = $3 AND active`,
		applicationType, string(models.DelegationTeamFill), clientID, ticketID)
	if err != nil {
		return false, errors.NewGatewayUnavailableError("attach_ticket", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewGatewayUnavailableError("attach_ticket", err)
	}
	if affected > 0 {
		g.logger.Info("ticket-less team fill reconciled", map[string]interface{}{
			"clientId": clientID,
			"ticketId": ticketID,
		})
	}
	return affected > 0, nil
}

func (g *PostgresGateway) request(ctx context.Context, op, applicationType, ticketID, clientID string, kind models.DelegationKind) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO delegation_requests (application_type, ticket_id, kind, client_id, active, requested_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (application_type, ticket_id, kind) WHERE active AND ticket_id IS NOT NULL
		DO NOTHING`,
		applicationType, ticketID, string(kind), clientID, g.now())
	if err != nil {
		return errors.NewGatewayUnavailableError(op, err)
	}

	g.logger.Info("delegation requested", map[string]interface{}{
		"kind":     string(kind),
		"ticketId": ticketID,
		"clientId": clientID,
	})
	return nil
}

func (g *PostgresGateway) cancel(ctx context.Context, op, applicationType, ticketID string, kind models.DelegationKind) error {
	_, err := g.db.ExecContext(ctx, `
		UPDATE delegation_requests
		SET active = FALSE, cancelled_at = $4
		WHERE application_type = $1 AND ticket_id = $2 AND kind = $3 AND active`,
		applicationType, ticketID, string(kind), g.now())
	if err != nil {
		return errors.NewGatewayUnavailableError(op, err)
	}

	g.logger.Info("delegation cancelled", map[string]interface{}{
		"kind":     string(kind),
		"ticketId": ticketID,
	})
	return nil
}

func (g *PostgresGateway) exists(ctx context.Context, op, applicationType, ticketID string, kind models.DelegationKind) (bool, error) {
	var exists bool
	err := g.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM delegation_requests
			WHERE application_type = $1 AND ticket_id = $2 AND kind = $3 AND active
		)`, applicationType, ticketID, string(kind)).Scan(&exists)
	if err != nil {
		return false, errors.NewGatewayUnavailableError(op, err)
	}
	return exists, nil
}
