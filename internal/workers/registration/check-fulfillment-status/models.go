// internal/workers/registration/check-fulfillment-status/models.go
package checkfulfillmentstatus

type Input struct {
	ApplicationType string `json:"applicationType"`
	TicketID        string `json:"ticketId"`
}

type Output struct {
	TeamFillRequested   bool   `json:"teamFillRequested"`
	ClientFillRequested bool   `json:"clientFillRequested"`
	FulfillmentMode     string `json:"fulfillmentMode"`
}
