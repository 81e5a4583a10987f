// internal/workers/registration/request-client-fill/handler.go
package requestclientfill

import (
	"context"
	"fmt"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/common/metrics"
	"registration-workflow/internal/common/validation"
	"registration-workflow/internal/models"
	"registration-workflow/internal/registration/delegation"
	"registration-workflow/internal/registration/fulfillment"
	"registration-workflow/internal/registration/notify"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "request-client-fill"

// Handler hands a draft back to its client from the back-office process.
type Handler struct {
	config       *Config
	gateway      delegation.Gateway
	notifier     notify.Notifier
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the worker. notifier may be nil.
func NewHandler(cfg *Config, gateway delegation.Gateway, notifier notify.Notifier, log logger.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       cfg,
		gateway:      gateway,
		notifier:     notifier,
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
	if input.ClientID == "" || input.TicketID == "" {
		return nil, errors.NewMissingIdentifiersError(input.ClientID, input.TicketID)
	}

	if err := h.gateway.RequestClientFill(ctx, input.ApplicationType, input.TicketID, input.ClientID); err != nil {
		return nil, err
	}

	output := &Output{
		ClientFillRequested: true,
		FulfillmentMode:     string(fulfillment.ModeClientFillRequested),
	}
	if h.notifier != nil {
		output.Notifications = h.notifier.DelegationRequested(ctx, models.DelegationClientFill, input.TicketID, input.ClientID)
	}

	h.logger.Info("client fill requested", map[string]interface{}{
		"ticketId":      input.TicketID,
		"clientId":      input.ClientID,
		"notifications": len(output.Notifications),
	})
	return output, nil
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
