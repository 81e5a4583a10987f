// internal/workers/registration/cancel-client-fill/models.go
package cancelclientfill

type Input struct {
	ApplicationType string `json:"applicationType"`
	TicketID        string `json:"ticketId"`
	Reason          string `json:"reason,omitempty"`
}

type Output struct {
	ClientFillRequested bool   `json:"clientFillRequested"`
	CancelledAt         string `json:"cancelledAt"` // ISO 8601
}
