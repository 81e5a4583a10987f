package checkfulfillmentstatus

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"registration-workflow/internal/common/config"
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

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name       string
		team       bool
		client     bool
		wantMode   string
		wantTeam   bool
		wantClient bool
	}{
		{"self service", false, false, "SELF_SERVICE", false, false},
		{"team fill", true, false, "TEAM_FILL_REQUESTED", true, false},
		{"client fill", false, true, "CLIENT_FILL_REQUESTED", false, true},
		{"both flags keep client fill", true, true, "CLIENT_FILL_REQUESTED", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(mockGateway)
			gw.On("CheckTeamFillStatus", mock.Anything, "company_registration", "T-100").Return(tt.team, nil)
			gw.On("CheckClientFillStatus", mock.Anything, "company_registration", "T-100").Return(tt.client, nil)

			h := NewHandler(DefaultConfig(), gw, logger.NewTestLogger(t))
			out, err := h.Execute(context.Background(), createTestInput())

			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, out.FulfillmentMode)
			assert.Equal(t, tt.wantTeam, out.TeamFillRequested)
			assert.Equal(t, tt.wantClient, out.ClientFillRequested)
			gw.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_GatewayUnavailable(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CheckTeamFillStatus", mock.Anything, mock.Anything, mock.Anything).
		Return(false, errors.NewGatewayUnavailableError("check_team_fill", stderrors.New("connection refused")))
	gw.On("CheckClientFillStatus", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Maybe()

	h := NewHandler(DefaultConfig(), gw, logger.NewTestLogger(t))
	_, err := h.Execute(context.Background(), createTestInput())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGatewayUnavailable, errors.CodeOf(err))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	input, err := parseInput(createMockJob(map[string]interface{}{
		"applicationType": "company_registration",
		"ticketId":        "T-100",
		"processScoped":   "ignored",
	}))
	require.NoError(t, err)
	assert.Equal(t, "T-100", input.TicketID)

	_, err = parseInput(createMockJob(map[string]interface{}{"applicationType": "company_registration"}))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestFromWorkerConfig(t *testing.T) {
	cfg := FromWorkerConfig(config.WorkerConfig{Timeout: 2500})
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)

	assert.Equal(t, DefaultConfig().Timeout, FromWorkerConfig(config.WorkerConfig{}).Timeout)
}
