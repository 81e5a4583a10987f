// internal/registration/draft/normalize.go
package draft

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"registration-workflow/internal/models"
)

const (
	DefaultNationality = "India"
	DefaultStatus      = "Active"
)

// personCollections are the step fields that hold director/shareholder rows.
var personCollections = []string{"directors", "shareholders"}

// NormalizeApplication rewrites the person collections of every step of a
// loaded draft into ordered, display-ready rows.
func NormalizeApplication(app *models.Application) {
	if app == nil {
		return
	}
	for _, step := range app.Steps {
		for _, field := range personCollections {
			raw, ok := step[field]
			if !ok || raw == nil {
				continue
			}
			step[field] = NormalizePeople(raw)
		}
	}
}

// NormalizePeople accepts a stored list or an index-keyed object and returns
// rows in index order with defaults filled.
func NormalizePeople(raw interface{}) []models.Person {
	var rows []map[string]interface{}

	switch v := raw.(type) {
	case []models.Person:
		out := make([]models.Person, len(v))
		for i, p := range v {
			out[i] = withDefaults(p)
		}
		return out
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				rows = append(rows, m)
			}
		}
	case []map[string]interface{}:
		rows = v
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return indexLess(keys[i], keys[j]) })
		for _, k := range keys {
			if m, ok := v[k].(map[string]interface{}); ok {
				rows = append(rows, m)
			}
		}
	default:
		return nil
	}

	people := make([]models.Person, 0, len(rows))
	for _, row := range rows {
		people = append(people, personFromRow(row))
	}
	return people
}

func personFromRow(row map[string]interface{}) models.Person {
	return withDefaults(models.Person{
		Name:                str(row, "name"),
		Email:               str(row, "email"),
		Phone:               str(row, "phone"),
		Designation:         str(row, "designation"),
		DIN:                 str(row, "din"),
		PAN:                 str(row, "pan"),
		Nationality:         str(row, "nationality"),
		Status:              str(row, "status"),
		Shareholding:        str(row, "shareholding"),
		HasDIN:              YesNo(row["hasDin"]),
		IsResident:          YesNo(row["isResident"]),
		IsAlsoShareholder:   YesNo(row["isAlsoShareholder"]),
		IdentityDocumentURL: str(row, "identityDocumentUrl"),
	})
}

func withDefaults(p models.Person) models.Person {
	if p.Nationality == "" {
		p.Nationality = DefaultNationality
	}
	if p.Status == "" {
		p.Status = DefaultStatus
	}
	p.HasDIN = YesNo(p.HasDIN)
	p.IsResident = YesNo(p.IsResident)
	p.IsAlsoShareholder = YesNo(p.IsAlsoShareholder)
	return p
}

// YesNo maps the boolean-ish values found in stored records onto "Yes"/"No".
func YesNo(v interface{}) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "Yes"
		}
	case float64:
		if t != 0 {
			return "Yes"
		}
	case int:
		if t != 0 {
			return "Yes"
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true", "1":
			return "Yes"
		}
	}
	return "No"
}

func str(row map[string]interface{}, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func indexLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
