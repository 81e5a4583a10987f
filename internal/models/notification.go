// internal/models/notification.go
package models

import "time"

type DelegationKind string

const (
	DelegationTeamFill   DelegationKind = "team_fill"
	DelegationClientFill DelegationKind = "client_fill"
)

// Notification records one delegation notice sent to the fulfillment team or a client.
type Notification struct {
	ID        string         `json:"id"`
	TicketID  string         `json:"ticketId"`
	ClientID  string         `json:"clientId,omitempty"`
	Kind      DelegationKind `json:"kind"`
	Channel   string         `json:"channel"` // "email", "sms"
	Status    string         `json:"status"`  // "sent", "failed", "disabled"
	MessageID string         `json:"messageId,omitempty"`
	SentAt    time.Time      `json:"sentAt"`
}
