// internal/registration/nameregistration/registrar.go
package nameregistration

import (
	"context"
	"fmt"

	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/models"
)

const DefaultMessageName = "proposed-name-submitted"

// MessagePublisher is satisfied by camunda.Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, variables map[string]interface{}) error
}

// Registrar submits the proposed company name captured on step 1. The call
// is fire-and-forget: the caller never waits for the registry's decision.
type Registrar interface {
	SubmitProposedName(ctx context.Context, app *models.Application) error
}

type ZeebeRegistrar struct {
	publisher   MessagePublisher
	messageName string
	logger      logger.Logger
}

func NewZeebeRegistrar(publisher MessagePublisher, messageName string, log logger.Logger) *ZeebeRegistrar {
	if messageName == "" {
		messageName = DefaultMessageName
	}
	return &ZeebeRegistrar{
		publisher:   publisher,
		messageName: messageName,
		logger:      log.WithFields(map[string]interface{}{"component": "name-registration"}),
	}
}

func (r *ZeebeRegistrar) SubmitProposedName(ctx context.Context, app *models.Application) error {
	step := app.Steps[1]
	correlationKey := app.TicketID
	if correlationKey == "" {
		correlationKey = "owner:" + app.OwnerClientID
	}

	vars := map[string]interface{}{
		"ticketId":        app.TicketID,
		"ownerClientId":   app.OwnerClientID,
		"applicationType": app.ApplicationType,
		"nameApplication": map[string]interface{}(step),
	}

	if err := r.publisher.PublishMessage(ctx, r.messageName, correlationKey, vars); err != nil {
		return fmt.Errorf("publish %s for %s: %w", r.messageName, correlationKey, err)
	}

	r.logger.Info("proposed name submitted", map[string]interface{}{
		"correlationKey": correlationKey,
	})
	return nil
}
