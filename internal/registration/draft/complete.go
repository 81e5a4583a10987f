// internal/registration/draft/complete.go
package draft

import (
	"fmt"
	"strconv"
	"strings"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/validation"
	"registration-workflow/internal/models"
)

// StepCount is the number of steps a final submission requires.
const StepCount = 3

const submissionSchema = `{
	"type": "object",
	"required": ["ownerClientId", "applicationType", "steps"],
	"properties": {
		"ownerClientId": {"type": "string", "minLength": 1},
		"applicationType": {"type": "string", "minLength": 1},
		"steps": {
			"type": "object",
			"required": ["1", "2", "3"],
			"properties": {
				"1": {"type": "object", "minProperties": 1},
				"2": {"type": "object", "minProperties": 1},
				"3": {"type": "object", "minProperties": 1}
			}
		}
	}
}`

// CheckComplete reports APPLICATION_INCOMPLETE unless steps 1..3 are present
// and non-empty and the record carries an owner and type.
func CheckComplete(app *models.Application) error {
	steps := make(map[string]interface{}, len(app.Steps))
	for n, payload := range app.Steps {
		if payload == nil {
			continue
		}
		steps[strconv.Itoa(n)] = map[string]interface{}(payload)
	}

	doc := map[string]interface{}{
		"ownerClientId":   app.OwnerClientID,
		"applicationType": app.ApplicationType,
		"steps":           steps,
	}

	result, err := validation.ValidateDocument(submissionSchema, doc)
	if err != nil {
		return fmt.Errorf("completeness check: %w", err)
	}
	if !result.Valid {
		return errors.NewApplicationIncompleteError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}
