// Package errors provides standardized error handling for the registration
// workflow and its BPMN integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Workflow errors
const (
	ErrCodeMissingIdentifiers    ErrorCode = "MISSING_IDENTIFIERS"
	ErrCodeAlreadyInProgress     ErrorCode = "ALREADY_IN_PROGRESS"
	ErrCodeGatewayUnavailable    ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrCodeEntitlementMissing    ErrorCode = "ENTITLEMENT_MISSING"
	ErrCodeSubmitFailed          ErrorCode = "SUBMIT_FAILED"
	ErrCodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	ErrCodeActorNotPermitted     ErrorCode = "ACTOR_NOT_PERMITTED"
	ErrCodeFieldsDisabled        ErrorCode = "FIELDS_DISABLED"
	ErrCodeDraftNotFound         ErrorCode = "DRAFT_NOT_FOUND"
	ErrCodeApplicationIncomplete ErrorCode = "APPLICATION_INCOMPLETE"
	ErrCodeNavigationDenied      ErrorCode = "NAVIGATION_DENIED"
	ErrCodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInvalidInput          ErrorCode = "INVALID_INPUT"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexingFailed                ErrorCode = "INDEXING_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any StandardError carrying the same code, so callers can
// compare against the sentinel values below with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMetadata returns the error with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is.
var (
	ErrMissingIdentifiers    = &StandardError{Code: ErrCodeMissingIdentifiers}
	ErrAlreadyInProgress     = &StandardError{Code: ErrCodeAlreadyInProgress}
	ErrGatewayUnavailable    = &StandardError{Code: ErrCodeGatewayUnavailable}
	ErrEntitlementMissing    = &StandardError{Code: ErrCodeEntitlementMissing}
	ErrSubmitFailed          = &StandardError{Code: ErrCodeSubmitFailed}
	ErrInvalidTransition     = &StandardError{Code: ErrCodeInvalidTransition}
	ErrActorNotPermitted     = &StandardError{Code: ErrCodeActorNotPermitted}
	ErrFieldsDisabled        = &StandardError{Code: ErrCodeFieldsDisabled}
	ErrDraftNotFound         = &StandardError{Code: ErrCodeDraftNotFound}
	ErrApplicationIncomplete = &StandardError{Code: ErrCodeApplicationIncomplete}
	ErrNavigationDenied      = &StandardError{Code: ErrCodeNavigationDenied}
	ErrSessionNotFound       = &StandardError{Code: ErrCodeSessionNotFound}
)

// AsStandardError unwraps err to a StandardError, if it carries one.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain, or
// INTERNAL_ERROR when there is none.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewMissingIdentifiersError is returned when an on-behalf transition lacks the client or ticket.
func NewMissingIdentifiersError(clientID, ticketID string) *StandardError {
	var missing []string
	if clientID == "" {
		missing = append(missing, "clientId")
	}
	if ticketID == "" {
		missing = append(missing, "ticketId")
	}
	return &StandardError{
		Code:      ErrCodeMissingIdentifiers,
		Message:   "Client and ticket are required for this action",
		Details:   fmt.Sprintf("missing: %s", strings.Join(missing, ",")),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyInProgressError reports a duplicate submission attempt.
func NewAlreadyInProgressError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyInProgress,
		Message:   "Submission already in progress",
		Details:   fmt.Sprintf("guardKey: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGatewayUnavailableError creates a retryable delegation gateway error.
func NewGatewayUnavailableError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGatewayUnavailable,
		Message:   "Delegation gateway unavailable",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEntitlementMissingError carries the route the caller must be sent to.
func NewEntitlementMissingError(redirect string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntitlementMissing,
		Message:   "No entitlement to start a new application",
		Details:   "payment reference or ticket required",
		Retryable: false,
		Metadata:  map[string]interface{}{"redirect": redirect},
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmitFailedError creates a retryable submission error.
func NewSubmitFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmitFailed,
		Message:   "Final submission failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidTransitionError(event, state string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Transition not allowed from current fulfillment mode",
		Details:   fmt.Sprintf("event: %s, mode: %s", event, state),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewActorNotPermittedError(event, role string) *StandardError {
	return &StandardError{
		Code:      ErrCodeActorNotPermitted,
		Message:   "Actor may not perform this transition",
		Details:   fmt.Sprintf("event: %s, role: %s", event, role),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewFieldsDisabledError(mode string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFieldsDisabled,
		Message:   "Fields are disabled for this viewer",
		Details:   fmt.Sprintf("mode: %s", mode),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDraftNotFoundError(ticketID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDraftNotFound,
		Message:   "Draft not found",
		Details:   fmt.Sprintf("ticketId: %s", ticketID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewApplicationIncompleteError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationIncomplete,
		Message:   "Application is incomplete",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNavigationDeniedError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNavigationDenied,
		Message:   "Navigation denied",
		Details:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found or expired",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewIndexingFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexingFailed,
		Message:   "Indexing submitted application failed",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by
// boundary events in the fulfillment process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeMissingIdentifiers:            "MISSING_IDENTIFIERS",
	ErrCodeAlreadyInProgress:             "ALREADY_IN_PROGRESS",
	ErrCodeGatewayUnavailable:            "GATEWAY_UNAVAILABLE",
	ErrCodeSubmitFailed:                  "SUBMIT_FAILED",
	ErrCodeInvalidTransition:             "INVALID_TRANSITION",
	ErrCodeDraftNotFound:                 "DRAFT_NOT_FOUND",
	ErrCodeApplicationIncomplete:         "APPLICATION_INCOMPLETE",
	ErrCodeInvalidInput:                  "INVALID_INPUT",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeDatabaseInsertFailed:          "DATABASE_INSERT_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the job retry budget for an error code. Only the
// Zeebe job boundary retries; the workflow core never does.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeGatewayUnavailable,
		ErrCodeSubmitFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout:
		return 2

	case ErrCodeIndexingFailed:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "GATEWAY"):
		return "DELEGATION"
	case strings.Contains(codeStr, "SUBMIT") || strings.Contains(codeStr, "PROGRESS"):
		return "SUBMISSION"
	case strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "ACTOR") ||
		strings.Contains(codeStr, "IDENTIFIERS") || strings.Contains(codeStr, "DISABLED"):
		return "FULFILLMENT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "DRAFT"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "INCOMPLETE"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
