package cancelclientfill

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Gateway
// ==========================

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) RequestTeamFill(ctx context.Context, applicationType, ticketID, clientID string) error {
	return m.Called(ctx, applicationType, ticketID, clientID).Error(0)
}

func (m *mockGateway) CancelTeamFill(ctx context.Context, applicationType, ticketID, clientID string) error {
	return m.Called(ctx, applicationType, ticketID, clientID).Error(0)
}

func (m *mockGateway) CheckTeamFillStatus(ctx context.Context, applicationType, ticketID string) (bool, error) {
	args := m.Called(ctx, applicationType, ticketID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGateway) RequestClientFill(ctx context.Context, applicationType, ticketID, clientID string) error {
	return m.Called(ctx, applicationType, ticketID, clientID).Error(0)
}

func (m *mockGateway) CheckClientFillStatus(ctx context.Context, applicationType, ticketID string) (bool, error) {
	args := m.Called(ctx, applicationType, ticketID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGateway) CancelClientFillRequest(ctx context.Context, applicationType, ticketID string) error {
	return m.Called(ctx, applicationType, ticketID).Error(0)
}

func (m *mockGateway) AttachTicket(ctx context.Context, applicationType, clientID, ticketID string) (bool, error) {
	args := m.Called(ctx, applicationType, clientID, ticketID)
	return args.Bool(0), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createMockJob(variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                1,
		Type:               TaskType,
		ProcessInstanceKey: 10,
		BpmnProcessId:      "registration-fulfillment",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestInput() *Input {
	return &Input{ApplicationType: "company_registration", TicketID: "T-100"}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CancelClientFillRequest", mock.Anything, "company_registration", "T-100").Return(nil)

	h := NewHandler(DefaultConfig(), gw, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.False(t, out.ClientFillRequested)

	cancelledAt, err := time.Parse(time.RFC3339, out.CancelledAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), cancelledAt, time.Minute)
	gw.AssertExpectations(t)
}

func TestHandler_Execute_GatewayUnavailable(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CancelClientFillRequest", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.NewGatewayUnavailableError("cancel_client_fill", stderrors.New("connection reset")))

	h := NewHandler(DefaultConfig(), gw, logger.NewTestLogger(t))
	_, err := h.Execute(context.Background(), createTestInput())

	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.True(t, stdErr.Retryable)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	input, err := parseInput(createMockJob(map[string]interface{}{
		"applicationType": "company_registration",
		"ticketId":        "T-100",
		"reason":          "hand-off expired",
	}))
	require.NoError(t, err)
	assert.Equal(t, "hand-off expired", input.Reason)

	_, err = parseInput(createMockJob(map[string]interface{}{
		"applicationType": "company_registration",
		"ticketId":        "",
	}))
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}
