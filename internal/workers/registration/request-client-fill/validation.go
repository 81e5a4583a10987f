// internal/workers/registration/request-client-fill/validation.go
package requestclientfill

import "registration-workflow/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"applicationType", "ticketId", "clientId"},
		Properties: map[string]validation.Property{
			"applicationType": {
				Type:      "string",
				MinLength: intPtr(1),
			},
			"ticketId": {
				Type:        "string",
				Description: "Draft the client is asked to complete",
				MaxLength:   intPtr(64),
			},
			"clientId": {
				Type:        "string",
				Description: "Client who takes over filling the draft",
				MaxLength:   intPtr(64),
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}
