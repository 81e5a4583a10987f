// internal/registration/search/indexer.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Indexer feeds submitted applications to the admin list view.
type Indexer interface {
	IndexSubmitted(ctx context.Context, app *models.Application, submittedBy string) error
}

// Document is the shape stored in the admin list index.
type Document struct {
	TicketID              string    `json:"ticketId"`
	OwnerClientID         string    `json:"ownerClientId"`
	ApplicationType       string    `json:"applicationType"`
	ProposedName          string    `json:"proposedName,omitempty"`
	NameApplicationStatus string    `json:"nameApplicationStatus"`
	Status                string    `json:"status"`
	SubmittedBy           string    `json:"submittedBy"`
	SubmittedAt           time.Time `json:"submittedAt"`
}

type ESIndexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewESIndexer(client *elasticsearch.Client, index string, log logger.Logger) *ESIndexer {
	return &ESIndexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search-indexer", "index": index}),
	}
}

func (i *ESIndexer) IndexSubmitted(ctx context.Context, app *models.Application, submittedBy string) error {
	doc := Document{
		TicketID:              app.TicketID,
		OwnerClientID:         app.OwnerClientID,
		ApplicationType:       app.ApplicationType,
		NameApplicationStatus: string(app.NameApplicationStatus),
		Status:                string(models.StatusSubmitted),
		SubmittedBy:           submittedBy,
		SubmittedAt:           time.Now().UTC(),
	}
	if app.SubmittedAt != nil {
		doc.SubmittedAt = *app.SubmittedAt
	}
	if name, ok := app.Steps[1]["proposedName"].(string); ok {
		doc.ProposedName = name
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode search document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: app.TicketID,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return errors.NewIndexingFailedError(i.index, fmt.Errorf("%s: %s", res.Status(), raw))
	}

	i.logger.Debug("application indexed", map[string]interface{}{"ticketId": app.TicketID})
	return nil
}

const indexMapping = `{
	"mappings": {
		"properties": {
			"ticketId":              {"type": "keyword"},
			"ownerClientId":         {"type": "keyword"},
			"applicationType":       {"type": "keyword"},
			"proposedName":          {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"nameApplicationStatus": {"type": "keyword"},
			"status":                {"type": "keyword"},
			"submittedBy":           {"type": "keyword"},
			"submittedAt":           {"type": "date"}
		}
	}
}`

// EnsureIndex creates the admin list index with its mapping unless it exists.
func (i *ESIndexer) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{i.index}}.Do(ctx, i.client)
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: i.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, i.client)
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		// a concurrent instance may have created it first
		if strings.Contains(string(raw), "resource_already_exists_exception") {
			return nil
		}
		return errors.NewIndexingFailedError(i.index, fmt.Errorf("create index: %s: %s", res.Status(), raw))
	}

	i.logger.Info("search index created", nil)
	return nil
}
