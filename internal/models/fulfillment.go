// internal/models/fulfillment.go
package models

// FulfillmentFlags are the per-application delegation flags.
// FillingOnBehalf is session scoped and never persisted on the record.
type FulfillmentFlags struct {
	TeamFillRequested   bool `json:"teamFillRequested"`
	ClientFillRequested bool `json:"clientFillRequested"`
	FillingOnBehalf     bool `json:"isFillingOnBehalf"`
}

// OnBehalfContext is the (client, ticket) pair an admin operates against.
type OnBehalfContext struct {
	ClientID string `json:"clientId"`
	TicketID string `json:"ticketId"`
}

func (c *OnBehalfContext) Complete() bool {
	return c != nil && c.ClientID != "" && c.TicketID != ""
}
