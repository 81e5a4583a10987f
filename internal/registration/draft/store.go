// internal/registration/draft/store.go
package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/models"

	"github.com/google/uuid"
)

var ErrAlreadySubmitted = stderrors.New("application already submitted")

// SaveMeta describes a write. Final marks the record submitted, after which
// it only accepts status reads.
type SaveMeta struct {
	Final bool
	Actor string
}

// Store is the durable draft store keyed by ticket.
type Store interface {
	Get(ctx context.Context, ticketID string) (*models.Application, error)
	// Save writes app under ticketID and returns the ticket. An empty
	// ticketID creates a new record with a generated ticket.
	Save(ctx context.Context, ticketID string, app *models.Application, meta SaveMeta) (string, error)
}

type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "draft-store"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresStore) Get(ctx context.Context, ticketID string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ticket_id, owner_client_id, application_type, steps,
		       name_application_status, current_step, status,
		       created_at, updated_at, submitted_at
		FROM registration_applications
		WHERE ticket_id = $1`, ticketID)

	var (
		app         models.Application
		steps       []byte
		nameStatus  string
		status      string
		submittedAt sql.NullTime
	)
	err := row.Scan(&app.TicketID, &app.OwnerClientID, &app.ApplicationType, &steps,
		&nameStatus, &app.CurrentStep, &status, &app.CreatedAt, &app.UpdatedAt, &submittedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewDraftNotFoundError(ticketID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_draft", err)
	}

	app.Steps = make(map[int]models.StepPayload)
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &app.Steps); err != nil {
			return nil, fmt.Errorf("decode steps for %s: %w", ticketID, err)
		}
	}
	app.NameApplicationStatus = models.NameApplicationStatus(nameStatus)
	app.Status = models.ApplicationStatus(status)
	if submittedAt.Valid {
		t := submittedAt.Time
		app.SubmittedAt = &t
	}
	return &app, nil
}

func (s *PostgresStore) Save(ctx context.Context, ticketID string, app *models.Application, meta SaveMeta) (string, error) {
	stepsJSON, err := json.Marshal(app.Steps)
	if err != nil {
		return "", fmt.Errorf("encode steps: %w", err)
	}

	now := s.now()
	status := models.StatusDraft
	var submittedAt *time.Time
	if meta.Final {
		status = models.StatusSubmitted
		submittedAt = &now
	}

	nameStatus := app.NameApplicationStatus
	if nameStatus == "" {
		nameStatus = models.NameStatusPending
	}
	currentStep := app.CurrentStep
	if currentStep < 1 {
		currentStep = 1
	}

	if ticketID == "" {
		ticketID = uuid.New().String()
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO registration_applications (
				ticket_id, owner_client_id, application_type, steps,
				name_application_status, current_step, status,
				created_at, updated_at, submitted_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9)`,
			ticketID,
			app.OwnerClientID,
			app.ApplicationType,
			stepsJSON,
			string(nameStatus),
			currentStep,
			string(status),
			now,
			submittedAt,
		)
		if err != nil {
			return "", errors.NewDatabaseInsertFailedError(err)
		}

		s.logger.Info("draft created", map[string]interface{}{
			"ticketId": ticketID,
			"ownerId":  app.OwnerClientID,
			"final":    meta.Final,
			"actor":    meta.Actor,
		})
		return ticketID, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE registration_applications
		SET steps = $2, name_application_status = $3, current_step = $4,
		    status = $5, updated_at = $6, submitted_at = $7
		WHERE ticket_id = $1 AND status = 'draft'`,
		ticketID,
		stepsJSON,
		string(nameStatus),
		currentStep,
		string(status),
		now,
		submittedAt,
	)
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("update_draft", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("update_draft", err)
	}
	if affected == 0 {
		return "", s.classifyMissedUpdate(ctx, ticketID)
	}

	s.logger.Info("draft saved", map[string]interface{}{
		"ticketId": ticketID,
		"final":    meta.Final,
		"actor":    meta.Actor,
	})
	return ticketID, nil
}

func (s *PostgresStore) classifyMissedUpdate(ctx context.Context, ticketID string) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM registration_applications WHERE ticket_id = $1`, ticketID).Scan(&status)
	if err == sql.ErrNoRows {
		return errors.NewDraftNotFoundError(ticketID)
	}
	if err != nil {
		return errors.NewQueryExecutionFailedError("get_draft_status", err)
	}
	return fmt.Errorf("%w: ticket %s", ErrAlreadySubmitted, ticketID)
}
