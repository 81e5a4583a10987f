// internal/workers/registration/check-fulfillment-status/validation.go
package checkfulfillmentstatus

import "registration-workflow/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"applicationType", "ticketId"},
		Properties: map[string]validation.Property{
			"applicationType": {
				Type:        "string",
				Description: "Registration product the ticket belongs to",
				MinLength:   intPtr(1),
			},
			"ticketId": {
				Type:        "string",
				Description: "Draft ticket identifier",
				MinLength:   intPtr(1),
				MaxLength:   intPtr(64),
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}
