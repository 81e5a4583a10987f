// internal/workers/registration/cancel-client-fill/validation.go
package cancelclientfill

import "registration-workflow/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"applicationType", "ticketId"},
		Properties: map[string]validation.Property{
			"applicationType": {
				Type:      "string",
				MinLength: intPtr(1),
			},
			"ticketId": {
				Type:      "string",
				MinLength: intPtr(1),
				MaxLength: intPtr(64),
			},
			"reason": {
				Type:        "string",
				Description: "Why the client hand-off was withdrawn, for the audit trail",
				MaxLength:   intPtr(500),
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}
