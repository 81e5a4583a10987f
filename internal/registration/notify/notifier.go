// internal/registration/notify/notifier.go
package notify

import (
	"context"
	"fmt"
	"time"

	"registration-workflow/internal/common/aws"
	"registration-workflow/internal/common/config"
	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/models"

	"github.com/google/uuid"
)

const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"

	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Notifier tells the other party that edit authority moved to them.
type Notifier interface {
	DelegationRequested(ctx context.Context, kind models.DelegationKind, ticketID, clientID string) []models.Notification
}

// DelegationNotifier emails the fulfillment team on team-fill requests and
// publishes every delegation to an SNS topic for client-facing fan-out.
// Delivery is best effort; failures come back as failed notifications.
type DelegationNotifier struct {
	ses    aws.SESService
	sns    aws.SNSService
	cfg    config.NotificationConfig
	logger logger.Logger
}

func NewDelegationNotifier(ses aws.SESService, sns aws.SNSService, cfg config.NotificationConfig, log logger.Logger) *DelegationNotifier {
	return &DelegationNotifier{
		ses:    ses,
		sns:    sns,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "delegation-notifier"}),
	}
}

func (n *DelegationNotifier) DelegationRequested(ctx context.Context, kind models.DelegationKind, ticketID, clientID string) []models.Notification {
	subject, body := render(kind, ticketID, clientID)
	var sent []models.Notification

	if kind == models.DelegationTeamFill {
		sent = append(sent, n.email(ctx, kind, ticketID, clientID, subject, body))
	}
	sent = append(sent, n.publish(ctx, kind, ticketID, clientID, subject, body))
	return sent
}

func (n *DelegationNotifier) email(ctx context.Context, kind models.DelegationKind, ticketID, clientID, subject, body string) models.Notification {
	out := newNotification(kind, ticketID, clientID, ChannelEmail)
	if !n.cfg.Email.Enabled || n.ses == nil || n.cfg.Email.FulfillmentTo == "" {
		out.Status = StatusDisabled
		return out
	}

	id, err := aws.SendTextEmail(ctx, n.ses, n.cfg.Email.FromEmail, []string{n.cfg.Email.FulfillmentTo}, subject, body)
	if err != nil {
		n.logger.WithError(errors.NewNotificationSendFailedError(ChannelEmail, err)).Error("delegation email failed", map[string]interface{}{
			"kind":     string(kind),
			"ticketId": ticketID,
		})
		out.Status = StatusFailed
		return out
	}
	out.Status = StatusSent
	out.MessageID = id
	return out
}

func (n *DelegationNotifier) publish(ctx context.Context, kind models.DelegationKind, ticketID, clientID, subject, body string) models.Notification {
	out := newNotification(kind, ticketID, clientID, ChannelSMS)
	if !n.cfg.SMS.Enabled || n.sns == nil || n.cfg.SMS.TopicARN == "" {
		out.Status = StatusDisabled
		return out
	}

	attrs := map[string]string{"kind": string(kind)}
	if ticketID != "" {
		attrs["ticketId"] = ticketID
	}
	if clientID != "" {
		attrs["clientId"] = clientID
	}

	id, err := aws.PublishToTopic(ctx, n.sns, n.cfg.SMS.TopicARN, subject, body, attrs)
	if err != nil {
		n.logger.WithError(errors.NewNotificationSendFailedError(ChannelSMS, err)).Error("delegation publish failed", map[string]interface{}{
			"kind":     string(kind),
			"ticketId": ticketID,
		})
		out.Status = StatusFailed
		return out
	}
	out.Status = StatusSent
	out.MessageID = id
	return out
}

func newNotification(kind models.DelegationKind, ticketID, clientID, channel string) models.Notification {
	return models.Notification{
		ID:       uuid.New().String(),
		TicketID: ticketID,
		ClientID: clientID,
		Kind:     kind,
		Channel:  channel,
		SentAt:   time.Now().UTC(),
	}
}

func render(kind models.DelegationKind, ticketID, clientID string) (string, string) {
	ref := ticketID
	if ref == "" {
		ref = "(no ticket yet)"
	}
	switch kind {
	case models.DelegationTeamFill:
		return "Registration handed to fulfillment team",
			fmt.Sprintf("Client %s asked the fulfillment team to complete registration %s.", clientID, ref)
	default:
		return "Your registration needs your input",
			fmt.Sprintf("Please continue registration %s. Our team has handed it back to you.", ref)
	}
}
