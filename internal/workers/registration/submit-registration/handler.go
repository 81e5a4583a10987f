// internal/workers/registration/submit-registration/handler.go
package submitregistration

import (
	"context"
	"fmt"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/common/metrics"
	"registration-workflow/internal/common/validation"
	"registration-workflow/internal/models"
	"registration-workflow/internal/registration/draft"
	"registration-workflow/internal/registration/fulfillment"
	"registration-workflow/internal/registration/guard"
	"registration-workflow/internal/registration/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "submit-registration"

// Handler finalizes a draft from the back-office process through the same
// submission guard the interactive sessions use.
type Handler struct {
	config       *Config
	drafts       draft.Store
	guard        *guard.Guard
	indexer      search.Indexer
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the worker. indexer may be nil.
func NewHandler(cfg *Config, drafts draft.Store, submissions *guard.Guard, indexer search.Indexer, log logger.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       cfg,
		drafts:       drafts,
		guard:        submissions,
		indexer:      indexer,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := parseInput(job)
	if err == nil {
		var output *Output
		output, err = h.execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(started).Seconds())
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("validation errors: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := job.GetVariablesAsObject(&input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("decode variables: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	role, err := fulfillment.ParseRole(input.SubmittedBy)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	app, err := h.drafts.Get(ctx, input.TicketID)
	if err != nil {
		return nil, err
	}
	if app.IsSubmitted() {
		h.logger.Info("registration already submitted", map[string]interface{}{"ticketId": app.TicketID})
		return &Output{
			TicketID:         app.TicketID,
			Status:           string(models.StatusSubmitted),
			AlreadySubmitted: true,
			SubmittedAt:      formatTime(app.SubmittedAt),
		}, nil
	}

	if err := draft.CheckComplete(app); err != nil {
		return nil, err
	}

	res, err := h.guard.Submit(ctx, guard.SubmitRequest{
		Application: app,
		Actor:       role,
		AdminID:     input.AdminID,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	app.TicketID = res.TicketID
	app.Status = models.StatusSubmitted
	app.SubmittedAt = &now

	if h.indexer != nil {
		if err := h.indexer.IndexSubmitted(ctx, app, role.String()); err != nil {
			h.logger.Warn("failed to index submitted registration", map[string]interface{}{
				"ticketId": res.TicketID,
				"error":    err.Error(),
			})
		}
	}

	return &Output{
		TicketID:    res.TicketID,
		Status:      string(models.StatusSubmitted),
		Route:       res.Route,
		SubmittedAt: formatTime(app.SubmittedAt),
	}, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{"jobKey": job.GetKey()})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
