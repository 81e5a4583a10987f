// internal/models/application.go
package models

import "time"

// StepPayload is the free-form data captured on one form step.
type StepPayload map[string]interface{}

type NameApplicationStatus string

const (
	NameStatusPending   NameApplicationStatus = "pending"
	NameStatusSubmitted NameApplicationStatus = "submitted"
	NameStatusApproved  NameApplicationStatus = "approved"
	NameStatusRejected  NameApplicationStatus = "rejected"
)

type ApplicationStatus string

const (
	StatusDraft     ApplicationStatus = "draft"
	StatusSubmitted ApplicationStatus = "submitted"
)

// Application is the multi-step registration record.
type Application struct {
	TicketID              string                `json:"ticketId,omitempty"`
	OwnerClientID         string                `json:"ownerClientId"`
	ApplicationType       string                `json:"applicationType"`
	Steps                 map[int]StepPayload   `json:"steps"`
	NameApplicationStatus NameApplicationStatus `json:"nameApplicationStatus"`
	CurrentStep           int                   `json:"currentStep"`
	Status                ApplicationStatus     `json:"status"`
	CreatedAt             time.Time             `json:"createdAt"`
	UpdatedAt             time.Time             `json:"updatedAt"`
	SubmittedAt           *time.Time            `json:"submittedAt,omitempty"`
}

// NewApplication returns an empty draft positioned on step 1.
func NewApplication(ownerClientID, applicationType string) *Application {
	return &Application{
		OwnerClientID:         ownerClientID,
		ApplicationType:       applicationType,
		Steps:                 make(map[int]StepPayload),
		NameApplicationStatus: NameStatusPending,
		CurrentStep:           1,
		Status:                StatusDraft,
	}
}

func (a *Application) IsSubmitted() bool {
	return a.Status == StatusSubmitted
}

// HasSteps reports whether steps 1..n are all present.
func (a *Application) HasSteps(n int) bool {
	for i := 1; i <= n; i++ {
		if _, ok := a.Steps[i]; !ok {
			return false
		}
	}
	return true
}

// Clone copies the record and its step maps one level deep.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	out := *a
	out.Steps = make(map[int]StepPayload, len(a.Steps))
	for k, v := range a.Steps {
		step := make(StepPayload, len(v))
		for f, val := range v {
			step[f] = val
		}
		out.Steps[k] = step
	}
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		out.SubmittedAt = &t
	}
	return &out
}

// Person is a director or shareholder row as shown on the form.
type Person struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	Designation         string `json:"designation"`
	DIN                 string `json:"din"`
	PAN                 string `json:"pan"`
	Nationality         string `json:"nationality"`
	Status              string `json:"status"`
	Shareholding        string `json:"shareholding"`
	HasDIN              string `json:"hasDin"`
	IsResident          string `json:"isResident"`
	IsAlsoShareholder   string `json:"isAlsoShareholder"`
	IdentityDocumentURL string `json:"identityDocumentUrl"`
}
