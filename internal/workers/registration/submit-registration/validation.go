// internal/workers/registration/submit-registration/validation.go
package submitregistration

import "registration-workflow/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"ticketId", "submittedBy"},
		Properties: map[string]validation.Property{
			"ticketId": {
				Type:      "string",
				MinLength: intPtr(1),
				MaxLength: intPtr(64),
			},
			"submittedBy": {
				Type:        "string",
				Description: "Role the submission is recorded under",
				Enum:        []string{"applicant", "admin"},
			},
			"adminId": {
				Type:      "string",
				MaxLength: intPtr(64),
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}
