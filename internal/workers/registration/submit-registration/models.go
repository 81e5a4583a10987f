// internal/workers/registration/submit-registration/models.go
package submitregistration

type Input struct {
	TicketID    string `json:"ticketId"`
	SubmittedBy string `json:"submittedBy"`
	AdminID     string `json:"adminId,omitempty"`
}

type Output struct {
	TicketID         string `json:"ticketId"`
	Status           string `json:"registrationStatus"`
	Route            string `json:"route,omitempty"`
	AlreadySubmitted bool   `json:"alreadySubmitted"`
	SubmittedAt      string `json:"submittedAt,omitempty"` // ISO 8601
}
