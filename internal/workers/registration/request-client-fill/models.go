// internal/workers/registration/request-client-fill/models.go
package requestclientfill

import "registration-workflow/internal/models"

type Input struct {
	ApplicationType string `json:"applicationType"`
	TicketID        string `json:"ticketId"`
	ClientID        string `json:"clientId"`
}

type Output struct {
	ClientFillRequested bool                  `json:"clientFillRequested"`
	FulfillmentMode     string                `json:"fulfillmentMode"`
	Notifications       []models.Notification `json:"notifications,omitempty"`
}
